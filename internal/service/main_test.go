package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"murmur/internal/auth"
	"murmur/internal/database"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	db      *gorm.DB
	store   repository.Store
	friends *FriendService
	threads *ThreadService
	users   *UserService
	auth    *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := repository.NewStore(db, nil)
	locks := NewPairLocks()
	return &testEnv{
		db:      db,
		store:   store,
		friends: NewFriendService(store, locks),
		threads: NewThreadService(store, locks),
		users:   NewUserService(store.Repos().Users),
		auth:    NewAuthService(store.Repos().Users, auth.NewTokenManager(testSecret, time.Hour)),
	}
}

func (e *testEnv) mkUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: fmt.Sprintf("%s@example.com", name), Password: "hash"}
	require.NoError(t, e.store.Repos().Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) hydrated(t *testing.T, id uint) *models.User {
	t.Helper()
	u, err := e.store.Repos().Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, e.store.Repos().Users.Hydrate(context.Background(), u))
	return u
}

func (e *testEnv) threadCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Thread{}).Count(&n).Error)
	return n
}
