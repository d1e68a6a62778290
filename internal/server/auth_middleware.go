package server

import (
	"context"
	"strings"

	"murmur/internal/middleware"
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AuthRequired returns the authentication middleware. It accepts
// "Authorization: Bearer <jwt>" and the legacy "auth: <jwt>" header.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := requestToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Authorization required"))
		}

		userID, err := s.tokens.Verify(tokenString)
		if err != nil {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}

		setUserID(c, userID)
		return c.Next()
	}
}

// optionalUserID resolves the caller from a request token if one was sent.
// present is true when a token was supplied, valid or not.
func (s *Server) optionalUserID(c *fiber.Ctx) (userID uint, present bool, err error) {
	tokenString := requestToken(c)
	if tokenString == "" {
		tokenString = strings.TrimSpace(c.Query("token"))
	}
	if tokenString == "" {
		return 0, false, nil
	}

	userID, err = s.tokens.Verify(tokenString)
	if err != nil {
		return 0, true, err
	}
	return userID, true, nil
}

func requestToken(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return strings.TrimSpace(c.Get("auth"))
}

// setUserID stores the caller in locals and syncs it to the user context for logging.
func setUserID(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}
