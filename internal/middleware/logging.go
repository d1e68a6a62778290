package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the global structured logger instance used throughout the application.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
	PeerIDKey    contextKey = "peer_id"
	ThreadIDKey  contextKey = "thread_id"
)

// contextFields are copied from the context onto every record, in this order.
var contextFields = []contextKey{RequestIDKey, TraceIDKey, UserIDKey, PeerIDKey, ThreadIDKey}

// localsToContext maps Fiber locals onto context keys for ContextMiddleware.
var localsToContext = map[string]contextKey{
	"requestid": RequestIDKey,
	"userID":    UserIDKey,
	"traceID":   TraceIDKey,
}

// WithPeer tags ctx with the other user of a relationship or conversation.
func WithPeer(ctx context.Context, peerID uint) context.Context {
	return context.WithValue(ctx, PeerIDKey, peerID)
}

// WithThread tags ctx with the thread being read or written.
func WithThread(ctx context.Context, threadID uint) context.Context {
	return context.WithValue(ctx, ThreadIDKey, threadID)
}

type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextFields {
		switch v := ctx.Value(key).(type) {
		case string:
			if v != "" {
				r.AddAttrs(slog.String(string(key), v))
			}
		case uint:
			if v != 0 {
				r.AddAttrs(slog.Uint64(string(key), uint64(v)))
			}
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// parseLevel reads LOG_LEVEL (debug, info, warn, error); anything else is info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func newHandler(env string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if env == "production" {
		return &ctxHandler{slog.NewJSONHandler(os.Stdout, opts)}
	}
	return &ctxHandler{slog.NewTextHandler(os.Stdout, opts)}
}

func init() {
	Logger = slog.New(newHandler(os.Getenv("APP_ENV"), parseLevel(os.Getenv("LOG_LEVEL"))))
}

// ContextMiddleware copies request id, caller and trace id from Fiber locals
// into the user context so service-layer logs carry them.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for local, key := range localsToContext {
			switch v := c.Locals(local).(type) {
			case string:
				ctx = context.WithValue(ctx, key, v)
			case uint:
				ctx = context.WithValue(ctx, key, v)
			}
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// quietPaths are polled by orchestrators and scrapers; successes are not logged.
var quietPaths = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// StructuredLogger logs one line per request, keyed by route template so ids
// in the path do not explode log cardinality.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err, status)
		}
		if quietPaths[c.Path()] && status < fiber.StatusBadRequest {
			return err
		}

		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
		}

		ctx := c.UserContext()
		switch {
		case status >= fiber.StatusInternalServerError:
			Logger.ErrorContext(ctx, "request failed", fields...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "request rejected", fields...)
		default:
			Logger.InfoContext(ctx, "request processed", fields...)
		}
		return err
	}
}

// statusOf reports the status a returned error will be rendered with.
func statusOf(err error, fallback int) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if fallback < fiber.StatusBadRequest {
		return fiber.StatusInternalServerError
	}
	return fallback
}
