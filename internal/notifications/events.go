package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"murmur/internal/middleware"
)

// EventChatMessage is the inbound event clients send to chat.
const EventChatMessage = "chat-message"

// ErrUnknownEvent is returned by Dispatch for events with no handler.
var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the frame format on the realtime channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEnvelope builds an outbound frame in the same shape clients send.
func EncodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// EventHandler handles one inbound event from client.
type EventHandler func(ctx context.Context, client *Client, data json.RawMessage) error

// EventRegistry maps event names to handlers.
type EventRegistry struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// NewEventRegistry returns an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{handlers: make(map[string]EventHandler)}
}

// NewDefaultRegistry returns a registry that logs chat-message events to logger.
func NewDefaultRegistry(logger *slog.Logger) *EventRegistry {
	r := NewEventRegistry()
	r.Register(EventChatMessage, LogChatMessage(logger))
	return r
}

// Register sets the handler for event, replacing any previous one.
func (r *EventRegistry) Register(event string, h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = h
}

// Dispatch decodes raw as an Envelope and runs its handler.
func (r *EventRegistry) Dispatch(ctx context.Context, client *Client, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	middleware.RealtimeEvents.WithLabelValues(env.Event).Inc()
	return h(ctx, client, env.Data)
}

// LogChatMessage returns a handler that logs the payload and the sender, if known.
func LogChatMessage(logger *slog.Logger) EventHandler {
	return func(ctx context.Context, client *Client, data json.RawMessage) error {
		attrs := []any{slog.String("event", EventChatMessage)}
		if client != nil && client.UserID != 0 {
			attrs = append(attrs, slog.Any("user_id", client.UserID))
		}
		attrs = append(attrs, slog.String("payload", string(data)))
		logger.InfoContext(ctx, "chat message received", attrs...)
		return nil
	}
}
