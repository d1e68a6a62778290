package service

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/validation"
)

const (
	maxSearchResults = 50
	defaultPageSize  = 20
	maxPageSize      = 100
)

// PublicProfile is what anyone may see about a user.
type PublicProfile struct {
	models.UserSummary
	Friends  []uint `json:"friends"`
	Messages []uint `json:"messages"`
}

// UserService provides user lookup and search.
type UserService struct {
	users repository.UserRepository
}

// NewUserService returns a new UserService.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// SearchUsers matches pattern literally and case-insensitively against names.
func (s *UserService) SearchUsers(ctx context.Context, pattern string) ([]models.UserSummary, error) {
	normalized, err := validation.NormalizeSearch(pattern)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	users, err := s.users.SearchByName(ctx, validation.EscapeLike(normalized), maxSearchResults)
	if err != nil {
		return nil, err
	}
	return models.Summaries(users), nil
}

// GetUser returns the public profile of a user.
func (s *UserService) GetUser(ctx context.Context, id uint) (*PublicProfile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Hydrate(ctx, user); err != nil {
		return nil, err
	}
	return &PublicProfile{
		UserSummary: user.Summary(),
		Friends:     user.Friends,
		Messages:    user.Messages,
	}, nil
}

// ListUsers pages through all users in id order.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.UserSummary, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return models.Summaries(users), nil
}
