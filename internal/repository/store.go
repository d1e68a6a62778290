// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users     UserRepository
	Relations RelationRepository
	Threads   ThreadRepository
}

// Store hands out repositories and runs units of work in a transaction.
type Store interface {
	Repos() Repositories
	Transaction(ctx context.Context, fn func(tx Repositories) error) error
}

type gormStore struct {
	db    *gorm.DB
	rdb   *redis.Client
	repos Repositories
}

// NewStore returns a Store over db. rdb may be nil, in which case reads are not cached.
func NewStore(db *gorm.DB, rdb *redis.Client) Store {
	return &gormStore{
		db:  db,
		rdb: rdb,
		repos: Repositories{
			Users:     NewUserRepository(db, rdb),
			Relations: NewRelationRepository(db),
			Threads:   NewThreadRepository(db),
		},
	}
}

func (s *gormStore) Repos() Repositories {
	return s.repos
}

// Transaction runs fn with repositories bound to a single database transaction.
// Reads inside the transaction bypass the cache.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repositories{
			Users:     NewUserRepository(tx, nil),
			Relations: NewRelationRepository(tx),
			Threads:   NewThreadRepository(tx),
		})
	})
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
