package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/api"
	"github.com/WYOhellboy/WebhookHub/internal/circuitbreaker"
	"github.com/WYOhellboy/WebhookHub/internal/config"
	"github.com/WYOhellboy/WebhookHub/internal/db"
	"github.com/WYOhellboy/WebhookHub/internal/dispatch"
	"github.com/WYOhellboy/WebhookHub/internal/metrics"
	"github.com/WYOhellboy/WebhookHub/internal/normalize"
	"github.com/WYOhellboy/WebhookHub/internal/notify"
	"github.com/WYOhellboy/WebhookHub/internal/observ"
	"github.com/WYOhellboy/WebhookHub/internal/redis"
	"github.com/WYOhellboy/WebhookHub/internal/retention"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting webhookhub",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.Int("ingest_port", cfg.IngestPort),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	// Initialize repository
	repo := db.NewRepository(database, logger)

	// Redis backs the ingest rate limiter; the hub runs without it.
	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var rateLimiter *redis.RateLimiter
	redisClient, err := redis.New(ctx, redisConfig, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	} else {
		defer redisClient.Close()
		if cfg.RateLimit > 0 {
			rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
				Limit:  cfg.RateLimit,
				Window: 1 * time.Minute, // per minute per source IP
			})
		}
	}

	// Destination adapters, each behind its own circuit breaker so a
	// flapping destination cannot stall or spam the others.
	pushover := circuitbreaker.Protect(
		notify.NewPushoverNotifier(notify.PushoverConfig{
			UserKey:  cfg.PushoverUserKey,
			APIToken: cfg.PushoverAPIToken,
		}, logger),
		circuitbreaker.DefaultConfig("pushover"),
		logger,
	)
	discord := circuitbreaker.Protect(
		notify.NewDiscordNotifier(notify.DiscordConfig{
			WebhookURL: cfg.DiscordWebhookURL,
		}, logger),
		circuitbreaker.DefaultConfig("discord"),
		logger,
	)
	mailer := circuitbreaker.Protect(
		notify.NewSMTPNotifier(notify.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
			To:   cfg.SMTPTo,
		}, logger),
		circuitbreaker.DefaultConfig("smtp"),
		logger,
	)

	notifiers := []notify.Notifier{pushover, discord, mailer}

	logger.Info("destinations initialized",
		zap.Bool("pushover", pushover.Configured()),
		zap.Bool("discord", discord.Configured()),
		zap.Bool("smtp", mailer.Configured()),
	)

	dispatcher := dispatch.New(repo, normalize.NewRegistry(), pushover,
		[]notify.Notifier{discord, mailer}, logger)

	// Scheduled purge of aged webhook records
	if cfg.RetentionDays > 0 {
		purger := retention.New(repo, logger, cfg.RetentionDays)
		if err := purger.Start(); err != nil {
			return fmt.Errorf("failed to start retention purge: %w", err)
		}
		defer purger.Stop()
	}

	// Feed the connection pool gauges
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	go pollPoolStats(poolCtx, database, redisClient)

	handler := api.NewHandler(logger, repo, dispatcher, notifiers)

	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}

	// The ingest route carries its own guards; the management API is
	// deliberately open (it sits behind a trusted proxy).
	ingestRoute := func(r chi.Router) {
		r.Use(api.SharedSecretMiddleware(cfg.APIKey, logger))
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.IPKeyFunc))
		r.Post("/webhook/{slug}", handler.ReceiveWebhook)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(api.RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(metrics.Middleware)
	r.Use(api.LoggingMiddleware(logger))

	r.Group(ingestRoute)

	// Management API
	r.Route("/api", func(r chi.Router) {
		r.Get("/channels", handler.ListChannels)
		r.Post("/channels", handler.CreateChannel)
		r.Put("/channels/{slug}", handler.UpdateChannel)
		r.Delete("/channels/{slug}", handler.DeleteChannel)

		r.Get("/webhooks", handler.ListWebhooks)
		r.Delete("/webhooks", handler.ClearWebhooks)
		r.Get("/webhooks/{id}", handler.GetWebhook)
		r.Delete("/webhooks/{id}", handler.DeleteWebhook)

		r.Get("/stats", handler.GetStats)
		r.Get("/settings", handler.GetSettings)
		r.Post("/settings", handler.UpdateSettings)
		r.Get("/notification-status", handler.NotificationStatus)
		r.Post("/test", handler.TestNotification)
	})

	// Health check
	r.Get("/health", healthCheck)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start servers in goroutines
	serverErrors := make(chan error, 2)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Optional ingest-only listener, so the management port can stay
	// firewalled while producers post from anywhere.
	var ingestSrv *http.Server
	if cfg.IngestPort > 0 {
		ir := chi.NewRouter()
		ir.Use(middleware.RealIP)
		ir.Use(api.RequestIDMiddleware)
		ir.Use(middleware.Recoverer)
		ir.Use(middleware.Timeout(30 * time.Second))
		ir.Use(metrics.Middleware)
		ir.Use(api.LoggingMiddleware(logger))
		ir.Group(ingestRoute)
		ir.Get("/health", healthCheck)

		ingestSrv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.IngestPort),
			Handler:      ir,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logger.Info("ingest server listening", zap.String("addr", ingestSrv.Addr))
			serverErrors <- ingestSrv.ListenAndServe()
		}()
	}

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if ingestSrv != nil {
			if err := ingestSrv.Shutdown(ctx); err != nil {
				ingestSrv.Close()
				logger.Warn("ingest server graceful shutdown failed", zap.Error(err))
			}
		}

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}

// pollPoolStats samples the postgres and redis connection pools for the
// Prometheus gauges.
func pollPoolStats(ctx context.Context, database *db.DB, redisClient *redis.Client) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetDBConnections(int(database.Pool().Stat().TotalConns()))
			if redisClient != nil {
				metrics.SetRedisConnections(int(redisClient.PoolStats().TotalConns))
			}
		}
	}
}
