package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/highscore-api/internal/auth"
	"github.com/highscore-api/internal/config"
	"github.com/highscore-api/internal/handler"
	"github.com/highscore-api/internal/kafka"
	"github.com/highscore-api/internal/metrics"
	"github.com/highscore-api/internal/postgres"
	"github.com/highscore-api/internal/ratelimit"
	"github.com/highscore-api/internal/service"
	"github.com/highscore-api/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register Prometheus metrics
	metrics.Init()
	ratelimit.OnRateLimited = metrics.RateLimited.Inc

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	highscoreService := service.NewHighscoreService(repo, &cfg.Leaderboard, logger)
	highscoreService.SetBroadcaster(wsHub)

	resolver := auth.NewResolver(repo, logger)

	// Rate limiting and blocklist
	limits := map[ratelimit.Class]ratelimit.ClassLimit{
		ratelimit.ClassCreateGame:  ratelimit.PerHour(cfg.RateLimit.CreateGamePerHour),
		ratelimit.ClassSubmitScore: ratelimit.PerMinute(cfg.RateLimit.SubmitScorePerMinute),
		ratelimit.ClassLeaderboard: ratelimit.PerMinute(cfg.RateLimit.LeaderboardPerMinute),
		ratelimit.ClassPlayerStats: ratelimit.PerMinute(cfg.RateLimit.StatsPerMinute),
		ratelimit.ClassDefault:     ratelimit.PerMinute(cfg.RateLimit.DefaultPerMinute),
	}
	limiter := ratelimit.NewLimiter(limits, cfg.RateLimit.Enabled, logger)
	blocklist := ratelimit.NewBlocklist(cfg.RateLimit.Blocklist)

	// Initialize Kafka consumer for async score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, resolver, highscoreService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(
		highscoreService,
		resolver,
		wsHub,
		limiter,
		blocklist,
		&cfg.Security,
		logger,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
