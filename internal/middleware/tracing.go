package middleware

import (
	"murmur/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader echoes the trace id so clients can quote it in bug reports.
const TraceHeader = "X-Trace-ID"

// requestCarrier exposes fasthttp request headers to the OTel propagator
// without copying them into a map first.
type requestCarrier struct {
	c *fiber.Ctx
}

func (rc requestCarrier) Get(key string) string { return rc.c.Get(key) }

func (rc requestCarrier) Set(key, value string) { rc.c.Request().Header.Set(key, value) }

func (rc requestCarrier) Keys() []string {
	var keys []string
	rc.c.Request().Header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

var _ propagation.TextMapCarrier = requestCarrier{}

// TracingMiddleware opens a server span per request, continuing any upstream
// trace. The span is renamed to the matched route once routing is done.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), requestCarrier{c})

		ctx, span := observability.Tracer.Start(ctx, c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
				semconv.ClientAddress(c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set(TraceHeader, traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)

		status := c.Response().StatusCode()
		if err != nil {
			status = statusOf(err, status)
			span.RecordError(err)
		}
		span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fiber.ErrInternalServerError.Message)
		}
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			span.SetAttributes(attribute.Int64("enduser.id", int64(uid)))
		}
		return err
	}
}
