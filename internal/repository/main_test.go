package repository

import (
	"context"
	"fmt"
	"testing"

	"murmur/internal/database"
	"murmur/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo UserRepository, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}
