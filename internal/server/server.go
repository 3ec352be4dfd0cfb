// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"haven/internal/cache"
	"haven/internal/command"
	"haven/internal/config"
	"haven/internal/database"
	"haven/internal/middleware"
	"haven/internal/models"
	"haven/internal/notifications"
	"haven/internal/repository"
	"haven/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
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

	userRepo       repository.UserRepository
	channelRepo    repository.ChannelRepository
	membershipRepo repository.MembershipRepository
	ledgerRepo     repository.LedgerRepository
	messageRepo    repository.MessageRepository

	registry   *service.ChannelRegistry
	moderation *service.ModerationEngine
	chat       *service.ChatService
	dispatcher *command.Dispatcher

	notifier *notifications.Notifier
	roomHub  *notifications.RoomHub
	connMgr  *notifications.ConnectionManager
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	prom := middleware.InitMetrics("haven-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       repository.NewUserRepository(db),
		channelRepo:    repository.NewChannelRepository(db),
		membershipRepo: repository.NewMembershipRepository(db),
		ledgerRepo:     repository.NewLedgerRepository(db),
		messageRepo:    repository.NewMessageRepository(db),
	}

	server.moderation = service.NewModerationEngine(db, server.userRepo)
	server.registry = service.NewChannelRegistry(db, cfg.ChannelTTL(), server.moderation.Join)
	server.chat = service.NewChatService(db)
	server.dispatcher = command.NewDispatcher(server.registry, server.moderation)

	server.roomHub = notifications.NewRoomHub()
	server.notifier = notifications.NewNotifier(redisClient)
	server.connMgr = notifications.NewConnectionManager(redisClient, notifications.ConnectionManagerConfig{
		OnUserOnline:  func(userID uint) { server.publishPresence(userID, models.UserStatusOnline) },
		OnUserOffline: func(userID uint) { server.publishPresence(userID, models.UserStatusOffline) },
	})

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

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

	// Distributed tracing
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Haven Metrics Dashboard",
	}))

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me/status", s.UpdateMyStatus)

	// Channel routes
	channels := protected.Group("/channels")
	channels.Get("/", s.ListChannels)
	channels.Post("/", middleware.RateLimit(
		s.redis, 5, time.Minute, "join_channel"), s.JoinOrCreateChannel)
	// Specific /:id/:resource routes BEFORE generic /:id route
	channels.Post("/:id/join", middleware.RateLimit(
		s.redis, 5, time.Minute, "join_channel"), s.JoinChannel)
	channels.Get("/:id/members", s.GetChannelMembers)
	channels.Get("/:id/bans", s.GetChannelBans)
	channels.Get("/:id/messages", s.GetChannelMessages)
	channels.Post("/:id/messages", middleware.RateLimit(
		s.redis, 30, time.Minute, "send_message"), s.SendChannelMessage)
	channels.Post("/:id/leave", s.LeaveChannel)
	channels.Post("/:id/invite", s.InviteToChannel)
	channels.Post("/:id/kick", middleware.RateLimit(
		s.redis, 10, time.Minute, "kick"), s.KickFromChannel)
	channels.Post("/:id/revoke", s.RevokeFromChannel)
	channels.Post("/:id/mute", s.MuteInChannel)
	channels.Post("/:id/read", s.MarkChannelRead)
	channels.Get("/:id", s.GetChannel)
	channels.Delete("/:id", s.DeleteChannel)

	// Slash commands over HTTP (the WebSocket path accepts the same syntax)
	protected.Post("/commands", middleware.RateLimit(
		s.redis, 30, time.Minute, "command"), s.ExecuteCommand)

	// Websocket endpoint - protected by AuthRequired
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/chat", s.WebSocketChatHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Post("/sweep", s.TriggerSweep)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The service degrades to single-process fan-out without Redis.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
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

// AuthRequired returns the authentication middleware. Tokens are accepted
// from the Authorization header, or the token query parameter for the
// WebSocket upgrade where headers are awkward for browser clients.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := ""
		if authHeader := c.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenString = authHeader[7:]
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, err := middleware.ParseUserID(tokenString, s.config.JWTSecret)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		c.Locals("userID", userID)
		// Sync to UserContext for logging and downstream services
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isSiteAdmin(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Haven Chat API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the room hub to Redis pub/sub if available
	if s.redis != nil {
		go func() {
			if err := s.roomHub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.roomHub.Name(), err)
			}
		}()
	}

	go s.runSweeper(s.shutdownCtx)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// runSweeper deletes inactive channels on a fixed interval and publishes
// deletion events so connected members get evicted.
func (s *Server) runSweeper(ctx context.Context) {
	interval := s.config.SweepInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Server) sweepOnce(ctx context.Context) []uint {
	swept, err := s.registry.SweepInactive(ctx, time.Now())
	if err != nil {
		log.Printf("inactivity sweep failed: %v", err)
		return nil
	}
	for _, channelID := range swept {
		cache.InvalidateChannel(ctx, channelID)
		s.publishRoomEvent(channelID, notifications.Event{
			Type:      notifications.EventChannelDeleted,
			ChannelID: channelID,
			Payload:   fiber.Map{"reason": "inactive"},
		})
	}
	if len(swept) > 0 {
		log.Printf("inactivity sweep removed %d channel(s)", len(swept))
	}
	return swept
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.roomHub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.roomHub.Name(), err)
	}
	if s.connMgr != nil {
		s.connMgr.Stop()
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
