package server

import (
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// StartThreadRequest is the body of POST /:id/message.
type StartThreadRequest struct {
	RecipientID uint   `json:"recipId"`
	Text        string `json:"text"`
}

// PostMessageRequest is the body of PATCH /:id/messages. MsgID names the thread.
type PostMessageRequest struct {
	MsgID uint   `json:"msgId"`
	Text  string `json:"text"`
}

// StartThread handles POST /:id/message
func (s *Server) StartThread(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := requireSelf(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req StartThreadRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}
	if req.RecipientID == 0 {
		return models.RespondWithError(c, models.NewValidationError("recipId is required"))
	}

	thread, err := s.threadService.StartThread(ctx, userID, req.RecipientID, req.Text)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if n := len(thread.Messages); n > 0 {
		s.publishUserEvent(ctx, req.RecipientID, EventMessageReceived, map[string]interface{}{
			"thread_id": thread.ID,
			"message":   thread.Messages[n-1],
		})
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// PostMessage handles PATCH /:id/messages
func (s *Server) PostMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := requireSelf(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req PostMessageRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}
	if req.MsgID == 0 {
		return models.RespondWithError(c, models.NewValidationError("msgId is required"))
	}

	msg, err := s.threadService.PostMessage(ctx, req.MsgID, userID, req.Text)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if thread, err := s.store.Repos().Threads.GetByID(ctx, msg.ThreadID); err == nil {
		for _, participant := range thread.Users {
			if participant == userID {
				continue
			}
			s.publishUserEvent(ctx, participant, EventMessageReceived, map[string]interface{}{
				"thread_id": msg.ThreadID,
				"message":   msg,
			})
		}
	}
	return c.JSON(msg)
}

// ListMessages handles GET /:id/messages
func (s *Server) ListMessages(c *fiber.Ctx) error {
	userID, err := requireSelf(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	threads, err := s.threadService.ListMessages(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(threads)
}

// GetThread handles GET /thread/:id
func (s *Server) GetThread(c *fiber.Ctx) error {
	threadID, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	thread, err := s.threadService.GetThread(c.UserContext(), threadID, callerID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(thread)
}
