package main

import (
	"context"   // Context for shutdown and Redis operations
	"errors"    // Error inspection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"ledger_system/internal/api"       // HTTP handlers
	"ledger_system/internal/cache"     // Read cache
	"ledger_system/internal/clock"     // Time source
	"ledger_system/internal/config"    // Configuration
	"ledger_system/internal/db"        // Database connection
	"ledger_system/internal/ledger"    // Balance Engine
	"ledger_system/internal/lifecycle" // Lifecycle Manager
	"ledger_system/internal/notify"    // Owner notifications
	"ledger_system/internal/scheme"    // Scheme Allocator
	"ledger_system/internal/store"     // Ledger Store
	"ledger_system/internal/sweeper"   // Inactivity Sweeper
	"ledger_system/internal/tasks"     // Deferred task worker

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/joho/godotenv"     // For loading .env files
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	_ = godotenv.Load()             // Load .env file if present
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	log := logrus.StandardLogger()

	// Connect to the database
	conn, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	st := store.New(conn, store.WithMaxTries(cfg.StoreMaxRetries), store.WithLogger(log))

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()
	// The cache is optional; reads fall through to the store when Redis is down
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, serving reads from the database")
	}
	rc := cache.New(redisClient, cfg.CacheTTL)

	// Setup notifications; without a broker URL they are only logged
	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	if cfg.RabbitMQURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.RabbitMQURL, cfg.NotifyExchange, log)
		if err != nil {
			logrus.Fatalf("invalid RABBITMQ_URL: %v", err)
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	} else {
		log.Warn("RABBITMQ_URL is empty, notifications will only be logged")
	}

	clk := clock.Real{}
	lifecycleManager := lifecycle.NewManager(st, clk, log, cfg.DeletionNoticeDelay())
	services := &api.Services{
		Ledger:    ledger.NewEngine(st, clk, log),
		Lifecycle: lifecycleManager,
		Schemes:   scheme.NewAllocator(st, clk, log),
		Cache:     rc,
		Log:       log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background jobs
	sw := sweeper.New(st, lifecycleManager, clk, cfg.InactivityThreshold(), log, sweeper.WithCache(rc))
	if err := sw.Start(cfg.SweepSchedule); err != nil {
		logrus.Fatalf("invalid sweep schedule %q: %v", cfg.SweepSchedule, err)
	}
	worker := tasks.NewWorker(st, notifier, clk, log,
		tasks.WithBatchSize(cfg.TaskBatchSize),
		tasks.WithPollInterval(cfg.TaskPollInterval),
	)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	api.RegisterRoutes(r, services, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
	<-sw.Stop().Done() // Wait for a running sweep
	<-workerDone
}
