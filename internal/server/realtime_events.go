package server

import (
	"context"

	"murmur/internal/middleware"
	"murmur/internal/notifications"
)

// Event type constants prevent typos in event names.
const (
	EventMessageReceived        = "message_received"
	EventFriendRequestReceived  = "friend_request_received"
	EventFriendRequestSent      = "friend_request_sent"
	EventFriendRequestAccepted  = "friend_request_accepted"
	EventFriendAdded            = "friend_added"
	EventFriendRequestDeclined  = "friend_request_declined"
	EventFriendRequestCancelled = "friend_request_cancelled"
)

// publishUserEvent delivers an {event, data} frame to every socket userID has open. With
// Redis the event goes through pub/sub so every instance sees it; without it
// the local hub is the only audience.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) {
	eventJSON, err := notifications.EncodeEnvelope(eventType, payload)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event", "event", eventType, "error", err)
		return
	}

	if s.notifier != nil && s.notifier.Enabled() {
		if err := s.notifier.PublishUser(context.WithoutCancel(ctx), userID, string(eventJSON)); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish event, delivering locally",
				"event", eventType, "target_user", userID, "error", err)
			s.hub.Broadcast(userID, eventJSON)
		}
		return
	}
	s.hub.Broadcast(userID, eventJSON)
}
