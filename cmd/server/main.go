package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/dispatchd/notification-dispatcher/internal/auth"
	"github.com/dispatchd/notification-dispatcher/internal/config"
	"github.com/dispatchd/notification-dispatcher/internal/domain"
	"github.com/dispatchd/notification-dispatcher/internal/handler"
	"github.com/dispatchd/notification-dispatcher/internal/middleware"
	"github.com/dispatchd/notification-dispatcher/internal/repository/postgres"
	"github.com/dispatchd/notification-dispatcher/internal/repository/redis"
	"github.com/dispatchd/notification-dispatcher/internal/service"
	"github.com/dispatchd/notification-dispatcher/internal/worker"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting notification dispatcher",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run pending schema migrations
	if err := runMigrations(cfg.Database, logger); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Initialize repositories
	notificationRepo := postgres.NewNotificationRepository(db)
	queue := redis.NewQueue(redisClient)

	// Initialize the push credential cache and fetch the first token up
	// front so a misconfigured service account fails fast.
	tokens := auth.NewTokenManager(auth.GoogleTokenFetcher(cfg.Push.CredentialsPath), logger)
	if err := tokens.Refresh(ctx); err != nil {
		logger.Error("failed to fetch initial push token", "error", err)
		os.Exit(1)
	}

	// Initialize services
	ingestService := service.NewIngestService(notificationRepo, queue, cfg.Queue.Key, logger)

	// Initialize WebSocket hub
	wsHub := handler.NewWebSocketHub(logger)
	go wsHub.Run()

	metrics := handler.NewMetrics()

	// Initialize channel senders and their worker actors
	pushSender := worker.NewPushSender(cfg.Push, tokens, notificationRepo, logger)
	emailSender := worker.NewEmailSender(cfg.Email, notificationRepo, logger)
	smsSender := worker.NewSMSSender(logger)

	actors := map[domain.Channel]*worker.Actor{
		domain.ChannelPush:  newActor(domain.ChannelPush, pushSender, notificationRepo, queue, cfg.Queue, logger),
		domain.ChannelEmail: newActor(domain.ChannelEmail, emailSender, notificationRepo, queue, cfg.Queue, logger),
		domain.ChannelSMS:   newActor(domain.ChannelSMS, smsSender, notificationRepo, queue, cfg.Queue, logger),
	}

	workers := make(map[domain.Channel]worker.Handle, len(actors))
	for channel, actor := range actors {
		actor.SetMetrics(metrics)
		actor.SetStatusBroadcast(wsHub.BroadcastStatus)
		actor.Start(ctx)
		workers[channel] = actor
	}

	// Initialize queue consumer
	consumer := worker.NewConsumer(
		queue,
		notificationRepo,
		workers,
		cfg.Queue.Key,
		cfg.Queue.IdleBackoff,
		logger,
	)
	consumer.Start(ctx)

	// Initialize handlers
	notificationHandler := handler.NewNotificationHandler(ingestService)
	workerHandler := handler.NewWorkerHandler(consumer)
	healthHandler := handler.NewHealthHandler()
	healthHandler.AddChecker("postgres", db)
	healthHandler.AddChecker("redis", redisClient)

	metricsHandler := handler.NewMetricsHandler(metrics, queue, cfg.Queue.Key)
	wsHandler := handler.NewWebSocketHandler(wsHub)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Compress(5))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoints
	r.Handle("/metrics", metricsHandler.Handler())
	r.Get("/metrics/realtime", metricsHandler.RealtimeMetrics)

	// WebSocket endpoint
	r.Get("/ws", wsHandler.HandleWebSocket)

	// API routes
	r.Route("/notification", func(r chi.Router) {
		notificationHandler.RegisterRoutes(r)
	})
	r.Route("/worker", func(r chi.Router) {
		workerHandler.RegisterRoutes(r)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop the consumer first so no new jobs reach the mailboxes, then
	// drain the actors.
	consumer.Stop()
	for _, actor := range actors {
		actor.Stop()
	}

	cancel()

	logger.Info("server stopped")
}

func newActor(
	channel domain.Channel,
	sender worker.Sender,
	repo domain.NotificationRepository,
	queue domain.Queue,
	cfg config.QueueConfig,
	logger *slog.Logger,
) *worker.Actor {
	return worker.NewActor(
		channel,
		sender,
		repo,
		queue,
		cfg.Key,
		cfg.MaxRetries,
		cfg.MailboxSize,
		logger,
	)
}

func runMigrations(cfg config.DatabaseConfig, logger *slog.Logger) error {
	if cfg.MigrationsPath == "" {
		logger.Warn("no migrations path configured, skipping migrations")
		return nil
	}

	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	logger.Info("migrations applied")
	return nil
}
