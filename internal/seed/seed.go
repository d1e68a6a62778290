// Package seed populates the database with demo users, friendships, pending
// invites and conversations. It is intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"

	"murmur/internal/auth"
	"murmur/internal/cache"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "Murmur$eed2024"

// Options configures a seeding run.
type Options struct {
	NumUsers          int
	NumFriendships    int
	NumInvites        int
	MessagesPerThread int
}

// Summary reports what a run created.
type Summary struct {
	Users       int
	Friendships int
	Invites     int
	Messages    int
}

// Seeder drives the friend and thread services so seeded data obeys the same
// rules as live traffic.
type Seeder struct {
	db      *gorm.DB
	rdb     *redis.Client
	store   repository.Store
	friends *service.FriendService
	threads *service.ThreadService
	faker   *gofakeit.Faker
}

// NewSeeder creates a Seeder bound to db. rdb may be nil; when set, ClearAll
// also evicts cached users. A non-zero seed makes the generated names and
// messages reproducible.
func NewSeeder(db *gorm.DB, rdb *redis.Client, seed int64) *Seeder {
	store := repository.NewStore(db, rdb)
	locks := service.NewPairLocks()
	return &Seeder{
		db:      db,
		rdb:     rdb,
		store:   store,
		friends: service.NewFriendService(store, locks),
		threads: service.NewThreadService(store, locks),
		faker:   gofakeit.New(seed),
	}
}

// ClearAll deletes every row the application owns, children first, then
// drops the cached profiles of the deleted users.
func (s *Seeder) ClearAll(ctx context.Context) error {
	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	tables := []interface{}{
		&models.ThreadMessage{},
		&models.ThreadParticipant{},
		&models.Thread{},
		&models.Relation{},
		&models.User{},
	}
	for _, table := range tables {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
			return fmt.Errorf("clear %T: %w", table, err)
		}
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.UserKey(id))
	}
	if err := cache.Invalidate(ctx, s.rdb, keys...); err != nil {
		return fmt.Errorf("evict cached users: %w", err)
	}
	return nil
}

// Run creates users, then friendships with a few messages each, then pending invites.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.NumUsers < 2 {
		return nil, fmt.Errorf("need at least 2 users, got %d", opts.NumUsers)
	}
	maxPairs := opts.NumUsers * (opts.NumUsers - 1) / 2
	if opts.NumFriendships+opts.NumInvites > maxPairs {
		return nil, fmt.Errorf("%d users allow at most %d relationships", opts.NumUsers, maxPairs)
	}

	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := s.CreateUser(ctx, i, hash)
		if err != nil {
			return summary, err
		}
		users = append(users, user)
		summary.Users++
	}

	pairs := s.pickPairs(len(users), opts.NumFriendships+opts.NumInvites)

	for _, p := range pairs[:opts.NumFriendships] {
		a, b := users[p[0]], users[p[1]]
		if _, err := s.friends.SendInvite(ctx, a.ID, b.ID); err != nil {
			return summary, fmt.Errorf("invite %d -> %d: %w", a.ID, b.ID, err)
		}
		thread, err := s.friends.AcceptInvite(ctx, b.ID, a.ID)
		if err != nil {
			return summary, fmt.Errorf("accept %d -> %d: %w", a.ID, b.ID, err)
		}
		summary.Friendships++

		for m := 0; m < opts.MessagesPerThread; m++ {
			author := a.ID
			if m%2 == 1 {
				author = b.ID
			}
			if _, err := s.threads.PostMessage(ctx, thread.ID, author, s.faker.Sentence(s.faker.Number(3, 12))); err != nil {
				return summary, fmt.Errorf("message in thread %d: %w", thread.ID, err)
			}
			summary.Messages++
		}
	}

	for _, p := range pairs[opts.NumFriendships:] {
		a, b := users[p[0]], users[p[1]]
		if _, err := s.friends.SendInvite(ctx, a.ID, b.ID); err != nil {
			return summary, fmt.Errorf("invite %d -> %d: %w", a.ID, b.ID, err)
		}
		summary.Invites++
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		"users", summary.Users, "friendships", summary.Friendships,
		"invites", summary.Invites, "messages", summary.Messages)
	return summary, nil
}

// CreateUser persists a fake user with the given password hash. n keeps the
// email unique across a run.
func (s *Seeder) CreateUser(ctx context.Context, n int, passwordHash string) (*models.User, error) {
	first, last := s.faker.FirstName(), s.faker.LastName()
	user := &models.User{
		Name:     first + " " + last,
		Email:    fmt.Sprintf("%s.%s.%d@murmur.test", strings.ToLower(first), strings.ToLower(last), n),
		Password: passwordHash,
	}
	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// pickPairs returns n distinct unordered index pairs drawn from [0, size).
func (s *Seeder) pickPairs(size, n int) [][2]int {
	seen := make(map[[2]int]bool, n)
	pairs := make([][2]int, 0, n)
	for len(pairs) < n {
		i, j := s.faker.Number(0, size-1), s.faker.Number(0, size-1)
		if i == j {
			continue
		}
		key := [2]int{min(i, j), max(i, j)}
		if seen[key] {
			continue
		}
		seen[key] = true
		pairs = append(pairs, [2]int{i, j})
	}
	return pairs
}
