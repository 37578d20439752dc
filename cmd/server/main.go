package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	_ "civicwatch/docs" // swagger docs

	"civicwatch/internal/auth"
	"civicwatch/internal/cache"
	"civicwatch/internal/config"
	"civicwatch/internal/db"
	"civicwatch/internal/handler"
	"civicwatch/internal/notify"
	"civicwatch/internal/ratelimit"
	"civicwatch/internal/repository"
	"civicwatch/internal/router"
	"civicwatch/internal/service"
	"civicwatch/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// @title CivicWatch API
// @version 1.0
// @description Community issue reporting API with geotagged reports, admin triage and live status notifications.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		log.Fatalf("config: JWT_SECRET is required")
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		log.Println("RESET_DB=true detected, dropping all tables...")
		if err := db.Reset(gormDB); err != nil {
			log.Printf("Warning: failed to drop tables: %v", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, caching disabled and rate limits kept in memory", "addr", cfg.RedisAddr, "error", err)
	}
	cancelPing()

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	adminRepo := repository.NewAdminRepository(gormDB)
	reportRepo := repository.NewReportRepository(gormDB)

	// Initialize auth and notification components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	registry := notify.NewRegistry()
	notifier := notify.NewNotifier(registry, logger)
	hub := notify.NewHub(registry, jwtService, cfg.CORSOrigin, logger)

	// Initialize services
	authService := service.NewAuthService(userRepo, adminRepo, jwtService, cacheClient)
	reportService := service.NewReportService(reportRepo, notifier, store, logger)
	adminService := service.NewAdminService(reportRepo, reportService)

	deps := router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authService),
		ReportHandler:       handler.NewReportHandler(reportService, cfg.UploadMaxBytes),
		AdminHandler:        handler.NewAdminHandler(adminService),
		NotificationHandler: handler.NewNotificationHandler(notifier),
		WebSocket:           hub,
		JWTService:          jwtService,
		AuthLimiter:         ratelimit.New(cacheClient, "auth", cfg.RateLimitWindow, cfg.AuthRateLimitMax),
		APILimiter:          ratelimit.New(cacheClient, "api", cfg.RateLimitWindow, cfg.RateLimitMax),
		Logger:              logger,
	}
	if local, ok := store.(*storage.Local); ok {
		deps.UploadDir = local.Root()
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, deps)

	log.Printf("Swagger documentation available at: %s", swaggerURL(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
