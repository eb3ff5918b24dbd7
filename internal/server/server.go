// Package server contains the HTTP and WebSocket handlers for the JSON API and
// the session-backed web surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "snapfeed/docs" // swagger docs
	"snapfeed/internal/cache"
	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/mailer"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/notifications"
	"snapfeed/internal/repository"
	"snapfeed/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
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

	userRepo    repository.UserRepository
	notifier    *notifications.Notifier
	hub         *notifications.Hub
	sender      mailer.VerificationSender
	closeSender func() error

	activity       *service.ActivityLogger
	verification   *service.VerificationService
	authService    *service.AuthService
	webAuthService *service.WebAuthService
	postService    *service.PostService
	commentService *service.CommentService
	likeService    *service.LikeService
	profileService *service.ProfileService
}

// NewServer connects to the database and Redis and builds a server on top.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	tx := repository.NewTxRunner(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("snapfeed-api"),
		userRepo:       userRepo,
	}
	s.sender, s.closeSender = newVerificationSender(cfg)

	var sink service.ActivitySink
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		s.hub = notifications.NewHub()
		sink = s.notifier
	}

	s.activity = service.NewActivityLogger(repository.NewActivityLogRepository(db), sink)
	s.verification = service.NewVerificationService(userRepo, tx, s.activity, s.sender, cfg.JWTSecret, cfg.AppURL)
	s.authService = service.NewAuthService(userRepo, tx, s.activity, s.verification,
		cache.NewBlacklist(redisClient), cfg.JWTSecret)
	s.webAuthService = service.NewWebAuthService(userRepo, tx, s.activity, s.verification,
		cache.NewSessionStore(redisClient), cfg.SessionTTL(), cfg.SessionRememberTTL())
	s.postService = service.NewPostService(postRepo, tx, s.activity)
	s.commentService = service.NewCommentService(commentRepo, postRepo, tx, s.activity)
	s.likeService = service.NewLikeService(likeRepo, postRepo, tx, s.activity)
	s.profileService = service.NewProfileService(userRepo)

	return s, nil
}

// newVerificationSender publishes to the broker when one is configured and
// falls back to logging the link otherwise.
func newVerificationSender(cfg *config.Config) (mailer.VerificationSender, func() error) {
	noop := func() error { return nil }
	if cfg.AMQPURL == "" {
		return mailer.LogSender{}, noop
	}
	sender, err := mailer.NewAMQPSender(cfg.AMQPURL, cfg.VerificationQueue)
	if err != nil {
		slog.Warn("amqp unavailable, verification links will be logged", "err", err)
		return mailer.LogSender{}, noop
	}
	return sender, sender.Close
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Request ID, user ID and provenance on the user context
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
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
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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

	// Must stay the last app-wide middleware, see methodOverride.
	app.Use(methodOverride())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	s.setupAPIRoutes(app)
	s.setupWebRoutes(app)
}

func (s *Server) setupAPIRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public
	api.Post("/register", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "register"), s.Register)
	api.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	api.Get("/email/verify/:id/:hash", s.VerifyEmail)

	// Browsers cannot set headers on upgrades, so the stream authenticates
	// on its own before the protected group claims the prefix.
	api.Get("/ws/activity", middleware.WebSocketAuthRequired(s.authService), s.ActivityStreamHandler())

	protected := api.Group("", middleware.AuthRequired(s.authService))

	protected.Post("/email/verification-notification", middleware.RateLimit(
		s.redis, 6, time.Minute, "verification_resend"), s.ResendVerification)
	protected.Post("/logout", s.Logout)
	protected.Get("/user", s.GetCurrentUser)

	posts := protected.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", s.CreatePost)
	// Define specific /:post/:resource routes BEFORE generic /:post route
	posts.Post("/:post/like", s.LikePost)
	posts.Delete("/:post/unlike", s.UnlikePost)
	posts.Get("/:post/comments", s.GetComments)
	posts.Get("/:post/activity", s.GetPostActivity)
	posts.Post("/:post/comments", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:post", s.GetPost)
	posts.Put("/:post", s.UpdatePost)
	posts.Patch("/:post", s.UpdatePost)
	posts.Delete("/:post", s.DeletePost)

	comments := protected.Group("/comments")
	comments.Put("/:comment", s.UpdateComment)
	comments.Patch("/:comment", s.UpdateComment)
	comments.Delete("/:comment", s.DeleteComment)

	protected.Get("/activity-logs", s.GetActivityLogs)
}

func (s *Server) setupWebRoutes(app *fiber.App) {
	// Grouping with an empty prefix would apply these app-wide, so each
	// route lists its own gates.
	load := s.LoadSession()
	guest := s.GuestOnly()
	authed := s.SessionRequired()
	verified := s.VerifiedRequired()

	app.Get("/", load, s.WebWelcome)

	app.Get("/login", load, guest, s.WebShowLogin)
	app.Post("/login", load, guest, middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "web_login"), s.WebLogin)
	app.Get("/register", load, guest, s.WebShowRegister)
	app.Post("/register", load, guest, middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "web_register"), s.WebRegister)

	app.Get("/email/verify", load, authed, s.WebVerifyNotice)
	app.Get("/email/verify/:id/:hash", load, authed, s.WebVerifyEmail)
	app.Post("/email/verification-notification", load, authed, middleware.RateLimit(
		s.redis, 6, time.Minute, "web_verification_resend"), s.WebResendVerification)
	app.Post("/logout", load, authed, s.WebLogout)

	app.Get("/feed", load, authed, verified, s.WebFeed)
	// /posts/create before /posts/:post
	app.Get("/posts/create", load, authed, verified, s.WebCreatePostForm)
	app.Post("/posts", load, authed, verified, s.WebCreatePost)
	app.Get("/posts/:post/edit", load, authed, verified, s.WebEditPostForm)
	app.Post("/posts/:post/like", load, authed, verified, s.WebLikePost)
	app.Delete("/posts/:post/unlike", load, authed, verified, s.WebUnlikePost)
	app.Post("/posts/:post/comments", load, authed, verified, s.WebCreateComment)
	app.Get("/posts/:post", load, authed, verified, s.WebShowPost)
	app.Put("/posts/:post", load, authed, verified, s.WebUpdatePost)
	app.Delete("/posts/:post", load, authed, verified, s.WebDeletePost)
	app.Put("/comments/:comment", load, authed, verified, s.WebUpdateComment)
	app.Delete("/comments/:comment", load, authed, verified, s.WebDeleteComment)
	// /profile/edit before /profile/:user
	app.Get("/profile/edit", load, authed, verified, s.WebEditProfileForm)
	app.Put("/profile", load, authed, verified, s.WebUpdateProfile)
	app.Get("/profile/:user", load, authed, verified, s.WebShowProfile)
	app.Get("/activity", load, authed, verified, s.WebActivity)
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// sessions, revocation and the live stream all need Redis
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
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

// errorHandler renders errors no handler turned into a response.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	slog.ErrorContext(c.UserContext(), "unhandled error",
		"method", c.Method(), "path", c.Path(), "err", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError,
		models.NewInternalError(err))
}

// App builds the Fiber application with all middleware and routes. It is
// called once by Start and directly by tests.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "snapfeed",
		ErrorHandler: errorHandler,
		BodyLimit:    16 * 1024 * 1024, // base64 images inflate by a third
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start wires the activity hub and starts listening.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				slog.Error("failed to start hub wiring", "hub", s.hub.Name(), "err", err)
			}
		}()
	}

	slog.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", "err", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			slog.Error("error shutting down hub", "hub", s.hub.Name(), "err", err)
		}
	}

	if s.closeSender != nil {
		if err := s.closeSender(); err != nil {
			slog.Error("error closing verification sender", "err", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", "err", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", "err", rerr)
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
