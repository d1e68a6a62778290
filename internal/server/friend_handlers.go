package server

import (
	"time"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FriendRequest is the body shared by the invite, friend and pending routes.
type FriendRequest struct {
	FriendID uint `json:"friendId"`
}

func parseFriendID(c *fiber.Ctx) (uint, error) {
	var req FriendRequest
	if err := parseBody(c, &req); err != nil {
		return 0, err
	}
	if req.FriendID == 0 {
		return 0, models.NewValidationError("friendId is required")
	}
	return req.FriendID, nil
}

// SendInvite handles PATCH /invite
func (s *Server) SendInvite(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := callerID(c)
	targetID, err := parseFriendID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	state, err := s.friendService.SendInvite(ctx, userID, targetID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if state.Changed {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if requester, err := s.store.Repos().Users.GetByID(ctx, userID); err == nil {
			s.publishUserEvent(ctx, targetID, EventFriendRequestReceived, map[string]interface{}{
				"from_user":  requester.Summary(),
				"created_at": now,
			})
		}
		s.publishUserEvent(ctx, userID, EventFriendRequestSent, map[string]interface{}{
			"to_user":    state.Peer,
			"created_at": now,
		})
	}

	return c.JSON(state)
}

// AcceptInvite handles PATCH /friend
func (s *Server) AcceptInvite(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := callerID(c)
	requesterID, err := parseFriendID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	thread, err := s.friendService.AcceptInvite(ctx, userID, requesterID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	friends, err := s.friendService.ListFriends(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishUserEvent(ctx, requesterID, EventFriendRequestAccepted, map[string]interface{}{
		"friend_id": userID,
		"thread_id": thread.ID,
	})
	for _, pair := range [][2]uint{{userID, requesterID}, {requesterID, userID}} {
		s.publishUserEvent(ctx, pair[0], EventFriendAdded, map[string]interface{}{
			"friend_id": pair[1],
			"thread_id": thread.ID,
		})
	}

	return c.JSON(fiber.Map{
		"friends": friends,
		"thread":  thread,
	})
}

// DeclineInvite handles DELETE /pending: the caller declines an incoming request.
func (s *Server) DeclineInvite(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := callerID(c)
	requesterID, err := parseFriendID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.friendService.DeclineInvite(ctx, userID, requesterID); err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishUserEvent(ctx, requesterID, EventFriendRequestDeclined, map[string]interface{}{
		"user_id": userID,
	})
	return c.JSON(fiber.Map{"state": models.PairNone})
}

// CancelInvite handles DELETE /invite: the caller withdraws an outgoing request.
func (s *Server) CancelInvite(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := callerID(c)
	targetID, err := parseFriendID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.friendService.CancelInvite(ctx, userID, targetID); err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishUserEvent(ctx, targetID, EventFriendRequestCancelled, map[string]interface{}{
		"user_id": userID,
	})
	return c.JSON(fiber.Map{"state": models.PairNone})
}

// GetFriends handles GET /friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	friends, err := s.friendService.ListFriends(c.UserContext(), callerID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(friends)
}

// GetInvites handles GET /invites: requests the caller has received.
func (s *Server) GetInvites(c *fiber.Ctx) error {
	invites, err := s.friendService.ListInvites(c.UserContext(), callerID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(invites)
}

// GetPending handles GET /pending: requests the caller has sent.
func (s *Server) GetPending(c *fiber.Ctx) error {
	pending, err := s.friendService.ListPending(c.UserContext(), callerID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(pending)
}

// GetRelationStatus handles GET /status/:id
func (s *Server) GetRelationStatus(c *fiber.Ctx) error {
	peerID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	state, err := s.friendService.State(c.UserContext(), callerID(c), peerID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"state": state})
}
