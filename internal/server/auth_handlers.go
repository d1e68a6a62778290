package server

import (
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.authService.Signup(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	result, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(result)
}

// Validate handles GET /validate: returns the caller and a refreshed token.
func (s *Server) Validate(c *fiber.Ctx) error {
	result, err := s.authService.Validate(c.UserContext(), callerID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(result)
}
