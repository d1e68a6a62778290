// Command main runs the database seeder for Murmur.
package main

import (
	"context"
	"flag"
	"log"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 30, "Number of users to create")
	numFriendships := flag.Int("friendships", 40, "Number of accepted friendships")
	numInvites := flag.Int("invites", 15, "Number of pending friend requests")
	messages := flag.Int("messages", 4, "Messages per friendship thread")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fakerSeed := flag.Int64("seed", 0, "Faker seed for reproducible data (0 = random)")
	flag.Parse()

	log.Printf("Target: %d users, %d friendships, %d invites, clean=%v",
		*numUsers, *numFriendships, *numInvites, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Production skips auto-migration in Connect; seeding needs the schema.
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// nil when Redis is down; the API then has nothing cached to evict either.
	rdb := cache.InitRedis(cfg.RedisURL)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, rdb, *fakerSeed)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	summary, err := s.Run(ctx, seed.Options{
		NumUsers:          *numUsers,
		NumFriendships:    *numFriendships,
		NumInvites:        *numInvites,
		MessagesPerThread: *messages,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d friendships, %d invites, %d messages",
		summary.Users, summary.Friendships, summary.Invites, summary.Messages)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
