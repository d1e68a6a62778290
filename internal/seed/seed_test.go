package seed

import (
	"context"
	"testing"
	"time"

	"murmur/internal/auth"
	"murmur/internal/cache"
	"murmur/internal/database"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
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

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s := NewSeeder(db, nil, 42)

	summary, err := s.Run(ctx, Options{NumUsers: 8, NumFriendships: 5, NumInvites: 3, MessagesPerThread: 2})
	require.NoError(t, err)
	assert.Equal(t, &Summary{Users: 8, Friendships: 5, Invites: 3, Messages: 10}, summary)

	assert.EqualValues(t, 8, count(t, db, &models.User{}))
	assert.EqualValues(t, 5, count(t, db, &models.Thread{}))
	assert.EqualValues(t, 10, count(t, db, &models.ThreadMessage{}))
	// Two edges per friendship and per invite.
	assert.EqualValues(t, 16, count(t, db, &models.Relation{}))

	var pending, invites int64
	require.NoError(t, db.Model(&models.Relation{}).Where("kind = ?", models.RelationPending).Count(&pending).Error)
	require.NoError(t, db.Model(&models.Relation{}).Where("kind = ?", models.RelationInvite).Count(&invites).Error)
	assert.EqualValues(t, 3, pending)
	assert.EqualValues(t, 3, invites)

	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.True(t, auth.CheckPassword(user.Password, DefaultPassword))
}

func TestRun_InvalidOptions(t *testing.T) {
	s := NewSeeder(openDB(t), nil, 1)

	tests := []struct {
		name string
		opts Options
	}{
		{"too few users", Options{NumUsers: 1}},
		{"too many relationships", Options{NumUsers: 3, NumFriendships: 3, NumInvites: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Run(context.Background(), tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	s := NewSeeder(db, nil, 7)

	_, err := s.Run(ctx, Options{NumUsers: 4, NumFriendships: 2, NumInvites: 1, MessagesPerThread: 1})
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	for _, model := range []interface{}{&models.User{}, &models.Relation{}, &models.Thread{}, &models.ThreadParticipant{}, &models.ThreadMessage{}} {
		assert.Zero(t, count(t, db, model), "%T", model)
	}
}

func TestClearAll_EvictsCachedUsers(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	db := openDB(t)
	s := NewSeeder(db, rdb, 3)
	_, err = s.Run(ctx, Options{NumUsers: 2})
	require.NoError(t, err)

	var first models.User
	require.NoError(t, db.Order("id").First(&first).Error)

	// The API's store shares the cache with the seeder.
	api := repository.NewStore(db, rdb)
	_, err = api.Repos().Users.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.UserKey(first.ID)))

	require.NoError(t, s.ClearAll(ctx))
	assert.False(t, mr.Exists(cache.UserKey(first.ID)))

	_, err = api.Repos().Users.GetByID(ctx, first.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)

	tokens := auth.NewTokenManager("seed-test-secret-0123456789abcdef0123456789", time.Hour)
	_, err = service.NewAuthService(api.Repos().Users, tokens).Validate(ctx, first.ID)
	assert.True(t, models.IsCode(err, models.CodeUnauthorized), "got %v", err)
}
