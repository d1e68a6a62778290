// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	"murmur/internal/auth"
	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/notifications"
	"murmur/internal/repository"
	"murmur/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	store          repository.Store
	tokens         *auth.TokenManager
	limiter        *middleware.RateLimiter
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	events         *notifications.EventRegistry
	authService    *service.AuthService
	friendService  *service.FriendService
	threadService  *service.ThreadService
	userService    *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// nil when Redis is unreachable; cache, rate limits and pub/sub degrade.
	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return newServer(cfg, db, redisClient, repository.NewStore(db, redisClient)), nil
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store repository.Store) *Server {
	locks := service.NewPairLocks()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("murmur-api"),
		store:          store,
		tokens:         tokens,
		limiter:        middleware.NewRateLimiter(redisClient, cfg.RateLimitEnabled),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		events:         notifications.NewDefaultRegistry(middleware.Logger),
		authService:    service.NewAuthService(store.Repos().Users, tokens),
		friendService:  service.NewFriendService(store, locks),
		threadService:  service.NewThreadService(store, locks),
		userService:    service.NewUserService(store.Repos().Users),
	}
}

// App returns the configured Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName: "Murmur API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if models.StatusFor(err) >= fiber.StatusInternalServerError {
				middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			}
			return models.RespondWithError(c, err)
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Server span; sets the traceID local read by ContextMiddleware
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS before anything that can short-circuit so error responses carry the headers.
	// Fiber refuses credentials with a wildcard origin.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Auth, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return !s.config.RateLimitEnabled || c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	authRequired := s.AuthRequired()

	// Auth routes
	app.Post("/signup", s.limiter.Limit("signup", 5, 10*time.Minute), s.Signup)
	app.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute), s.Login)
	app.Get("/validate", authRequired, s.Validate)

	// Public user routes
	app.Get("/search/:query", s.limiter.Limit("search", 30, time.Minute), s.SearchUsers)
	app.Get("/users", s.ListUsers)
	app.Get("/user/:id", s.GetUser)

	// Friend routes
	app.Patch("/invite", authRequired, s.limiter.Limit("friend_request", 20, 5*time.Minute), s.SendInvite)
	app.Delete("/invite", authRequired, s.CancelInvite)
	app.Patch("/friend", authRequired, s.AcceptInvite)
	app.Delete("/pending", authRequired, s.DeclineInvite)
	app.Get("/friends", authRequired, s.GetFriends)
	app.Get("/invites", authRequired, s.GetInvites)
	app.Get("/pending", authRequired, s.GetPending)
	app.Get("/status/:id", authRequired, s.GetRelationStatus)

	app.Get("/thread/:id", authRequired, s.GetThread)

	// Realtime channel; identity is optional
	app.Get("/ws", s.WebsocketUpgrade(), s.WebsocketHandler())

	// Generic /:id routes must be last
	app.Post("/:id/message", authRequired, s.limiter.Limit("send_message", 30, time.Minute), s.StartThread)
	app.Patch("/:id/messages", authRequired, s.limiter.Limit("send_message", 30, time.Minute), s.PostMessage)
	app.Get("/:id/messages", authRequired, s.ListMessages)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: a
// missing client reports "unavailable" without failing readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			middleware.Logger.Warn("realtime fan-out disabled, delivering in-process", "error", err)
			s.notifier = notifications.NewNotifier(nil)
		}
	}

	app := s.App()
	addr := ":" + s.config.Port
	middleware.Logger.Info("server starting", "addr", addr, "env", s.config.Env)
	return app.Listen(addr)
}

// Shutdown gracefully shuts down the server and closes connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("hub shutdown failed", "error", err)
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("fiber shutdown: %w", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("redis close failed", "error", err)
		}
	}

	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				return fmt.Errorf("database close: %w", err)
			}
		}
	}
	return nil
}
