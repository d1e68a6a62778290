package server

import (
	"net/url"

	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SearchUsers handles GET /search/:query
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid search query"))
	}

	users, err := s.userService.SearchUsers(c.UserContext(), query)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(users)
}

// GetUser handles GET /user/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	profile, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(profile)
}

// ListUsers handles GET /users
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(users)
}
