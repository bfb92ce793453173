package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solace-app/solace-gateway/internal/config"
	"github.com/solace-app/solace-gateway/internal/handler"
	"github.com/solace-app/solace-gateway/internal/middleware"
	"github.com/solace-app/solace-gateway/internal/quota"
	"github.com/solace-app/solace-gateway/internal/ratelimit"
	"github.com/solace-app/solace-gateway/internal/repository"
	"github.com/solace-app/solace-gateway/internal/service"
	"github.com/solace-app/solace-gateway/internal/storage"
)

type Server struct {
	router           *gin.Engine
	config           *config.Config
	redis            *storage.RedisClient
	postgres         *storage.Postgres
	counterBackend   string
	sqlStore         *quota.SQLStore
	quotaManager     *quota.Manager
	registry         *ratelimit.Registry
	logRepo          *repository.RequestLogRepository
	authHandler      *handler.AuthHandler
	chatHandler      *handler.ChatHandler
	dashboardHandler *handler.DashboardHandler
	settingsHandler  *handler.SettingsHandler
	httpServer       *http.Server
	stop             chan struct{}
}

// New wires the gateway. A nil redis selects the transactional Postgres
// fallback for quota counters; the choice is made once here and holds for
// the process lifetime so accounting never flaps between backends.
func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	userRepo := repository.NewUserRepository(postgres)
	chatRepo := repository.NewChatRepository(postgres)
	logRepo := repository.NewRequestLogRepository(postgres)

	limits := quota.Limits{
		DailyReads:      cfg.Quota.DailyReads,
		DailyWrites:     cfg.Quota.DailyWrites,
		DailyAIRequests: cfg.Quota.DailyAIRequests,
		MonthlyTokens:   cfg.Quota.MonthlyTokens,
	}

	var counterStore quota.CounterStore
	var sqlStore *quota.SQLStore
	counterBackend := "redis"

	if redis != nil {
		counterStore = quota.NewRedisStore(redis)
	} else {
		sqlStore = quota.NewSQLStore(postgres)
		counterStore = sqlStore
		counterBackend = "postgres"
	}

	quotaManager := quota.NewManager(counterStore, userRepo, limits)

	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)

	chatService, err := service.NewChatService(service.ChatConfig{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		MaxInputTokens:  cfg.Quota.MaxInputTokens,
		MaxOutputTokens: cfg.Quota.MaxOutputTokens,
	}, quotaManager, chatRepo, userRepo)
	if err != nil {
		return nil, err
	}

	dashboardService := service.NewDashboardService(userRepo, quotaManager, redis)
	settingsService := service.NewSettingsService(userRepo, quotaManager)

	registry := ratelimit.NewRegistry(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)

	middleware.InitRequestLogger(logRepo, 1000)

	s := &Server{
		router:           router,
		config:           cfg,
		redis:            redis,
		postgres:         postgres,
		counterBackend:   counterBackend,
		sqlStore:         sqlStore,
		quotaManager:     quotaManager,
		registry:         registry,
		logRepo:          logRepo,
		authHandler:      handler.NewAuthHandler(authService),
		chatHandler:      handler.NewChatHandler(chatService),
		dashboardHandler: handler.NewDashboardHandler(dashboardService, quotaManager),
		settingsHandler:  handler.NewSettingsHandler(settingsService),
		stop:             make(chan struct{}),
	}

	s.setupMiddleware()
	s.setupRoutes(authService)
	s.startBackgroundJobs()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.RequestLogger())
}

func (s *Server) setupRoutes(authService *service.AuthService) {
	s.router.GET("/health", s.healthCheck)

	// Anonymous routes throttle by client IP.
	auth := s.router.Group("/api/auth")
	auth.Use(middleware.RateLimit(s.registry))
	{
		auth.POST("/register", s.authHandler.Register)
		auth.POST("/login", s.authHandler.Login)
	}

	// RateLimit sits after RequireAuth so buckets key by subject, not IP.
	api := s.router.Group("/api")
	api.Use(middleware.RequireAuth(authService))
	api.Use(middleware.RateLimit(s.registry))
	api.Use(middleware.Quota(s.quotaManager))
	{
		api.POST("/chat", s.chatHandler.Send)
		api.GET("/chat/history", s.chatHandler.History)
		api.GET("/dashboard", s.dashboardHandler.Get)
		api.GET("/usage/tokens", s.dashboardHandler.TokenUsage)
		api.GET("/settings", s.settingsHandler.Get)
		api.POST("/settings", s.settingsHandler.Update)
	}
}

func (s *Server) startBackgroundJobs() {
	s.registry.StartCleanup(10*time.Minute, s.stop)

	// Request logs are append-only; keep 30 days of history.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				deleted, err := s.logRepo.DeleteOldLogs(ctx, time.Now().AddDate(0, 0, -30))
				cancel()
				if err != nil {
					log.Printf("Request log cleanup failed: %v", err)
				} else if deleted > 0 {
					log.Printf("Request log cleanup removed %d rows", deleted)
				}
			case <-s.stop:
				return
			}
		}
	}()

	// The SQL ledger has no TTL; sweep expired rows hourly.
	if s.sqlStore != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					deleted, err := s.sqlStore.CleanupExpired(ctx)
					cancel()
					if err != nil {
						log.Printf("Ledger cleanup failed: %v", err)
					} else if deleted > 0 {
						log.Printf("Ledger cleanup removed %d expired rows", deleted)
					}
				case <-s.stop:
					return
				}
			}
		}()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := s.redis != nil
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !dbHealthy || (s.counterBackend == "redis" && !redisHealthy) {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":          status,
		"service":         "solace-gateway",
		"counter_backend": s.counterBackend,
		"timestamp":       time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)
	log.Printf("Quota counter backend: %s", s.counterBackend)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	close(s.stop)

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
