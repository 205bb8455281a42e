package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civic_issues/internal/config"
	"github.com/civic_issues/internal/middleware"
	"github.com/civic_issues/internal/repositories"
	"github.com/civic_issues/internal/routes"
	"github.com/civic_issues/internal/seed"
	"github.com/civic_issues/internal/services"
	"github.com/civic_issues/pkg/db"
	"github.com/civic_issues/pkg/logger"
	"github.com/civic_issues/pkg/utils"
)

// @title Civic Issues API
// @version 1.0
// @description Citizens report infrastructure problems; municipal staff triage and resolve them.
// @host localhost:8080
// @BasePath /
func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.MustNew(cfg.LogLevel, cfg.AppEnv)
	defer func() { _ = log.Sync() }()
	for _, notice := range cfg.Notices {
		log.Info("Configuration default applied", zap.String("detail", notice))
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}
	policy, err := services.ParseTransitionPolicy(cfg.TransitionPolicy)
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := utils.RegisterValidators(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	gormDB, err := db.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(gormDB); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	repo := repositories.NewGormIssueRepository(gormDB)
	if cfg.SeedData {
		if _, err := seed.Run(context.Background(), repo, log); err != nil {
			log.Fatal("Failed to seed sample data", zap.Error(err))
		}
	}

	deps := routes.Dependencies{
		DB: gormDB,
		Service: services.NewIssueService(repo,
			services.WithLogger(log.Named("issues")),
			services.WithTransitionPolicy(policy),
		),
		Logger:      log.Named("http"),
		CORSOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.RateLimitEnabled() {
		redisClient, err := middleware.NewRedisClient(context.Background(), cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("address", cfg.RedisAddress), zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		deps.CreateLimiter = middleware.IssueRateLimiter(redisClient, cfg.IssueCreateLimit, cfg.IssueCreateWindow, log.Named("ratelimit"))
		log.Info("Issue creation rate limit enabled",
			zap.Int("limit", cfg.IssueCreateLimit),
			zap.Duration("window", cfg.IssueCreateWindow))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shut down", zap.Error(err))
	}
}
