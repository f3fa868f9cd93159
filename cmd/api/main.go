package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openclinic/telemed-portal/internal/api/router"
	"github.com/openclinic/telemed-portal/internal/auth"
	"github.com/openclinic/telemed-portal/internal/calendar"
	appconfig "github.com/openclinic/telemed-portal/internal/config"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/messaging"
	"github.com/openclinic/telemed-portal/internal/observability/metrics"
	"github.com/openclinic/telemed-portal/internal/scheduling"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/internal/video"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

func main() {
	// Load .env in development; ignored when absent
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telemed-portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.SessionSecret == "" {
		logger.Error("SESSION_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	// Redis (sessions)
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	schedulingMetrics := metrics.NewSchedulingMetrics(reg)
	messagingMetrics := metrics.NewMessagingMetrics(reg)

	// Stores
	identityStore := identity.NewStore(pool)
	calendarStore := calendar.NewStore(pool)
	schedulingStore := scheduling.NewStore(pool)
	messagingStore := messaging.NewStore(pool)

	// Sessions
	sessions := session.NewManager(redisClient, cfg.SessionName, cfg.SessionTTL, cfg.Env != "development")

	// Domain services
	coordinator := scheduling.NewCoordinator(schedulingStore, scheduling.Options{
		OpenHour:     cfg.ClinicOpenHour,
		CloseHour:    cfg.ClinicCloseHour,
		OverlapCheck: cfg.AppointmentOverlapCheck,
		OpTimeout:    cfg.StoreTimeout,
	}, schedulingMetrics, logger)
	videoIssuer := video.NewIssuer([]byte(cfg.SessionSecret), cfg.VideoRoomName, cfg.VideoTokenTTL)

	// Handlers
	authHandler := auth.NewHandler(identityStore, sessions, logger)
	accountHandler := auth.NewAccountHandler(identityStore, sessions, logger)
	calendarHandler := calendar.NewHandler(calendarStore, cfg.ClinicOpenHour, cfg.ClinicCloseHour, logger)
	schedulingHandler := scheduling.NewHandler(coordinator, identityStore, logger)
	messagingHandler := messaging.NewHandler(messagingStore, identityStore, messagingMetrics, logger)
	videoHandler := video.NewHandler(videoIssuer, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Sessions:           sessions,
		AuthHandler:        authHandler,
		AccountHandler:     accountHandler,
		CalendarHandler:    calendarHandler,
		SchedulingHandler:  schedulingHandler,
		MessagingHandler:   messagingHandler,
		VideoHandler:       videoHandler,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateLimit:      cfg.AuthRateLimit,
		AuthRateBurst:      cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
