package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/deribit-prices/internal/broker"
	"github.com/rickgao/deribit-prices/internal/config"
	"github.com/rickgao/deribit-prices/internal/database"
	"github.com/rickgao/deribit-prices/internal/deribit"
	"github.com/rickgao/deribit-prices/internal/logging"
	"github.com/rickgao/deribit-prices/internal/metrics"
	"github.com/rickgao/deribit-prices/internal/pipeline"
	"github.com/rickgao/deribit-prices/internal/store"
	"github.com/rickgao/deribit-prices/internal/tasks"
	"github.com/rickgao/deribit-prices/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tracker.local.yaml", "path to config file")
	runScheduler := flag.Bool("scheduler", true, "also run the periodic scheduler")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	queueLogger, err := logging.NewZap(cfg.Log)
	if err != nil {
		logger.Error("failed to create task runtime logger", "error", err)
		os.Exit(1)
	}
	defer queueLogger.Sync()

	logger.Info("starting worker",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"scheduler", *runScheduler,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	redis := broker.New(cfg.Redis)
	defer redis.Close()

	prices := store.New(pool, logger)

	// Create exchange client
	client := deribit.NewClient(
		cfg.Exchange.BaseURL,
		deribit.WithLogger(logger),
		deribit.WithTimeout(cfg.Exchange.Timeout),
		deribit.WithRetries(cfg.Exchange.MaxRetries, cfg.Exchange.RetryDelay),
		deribit.WithBackoffFactor(cfg.Exchange.RetryBackoff),
	)

	fetch := pipeline.NewFetchPipeline(pipeline.FetchConfig{
		Symbols:    cfg.Exchange.Symbols,
		Attempts:   cfg.Worker.FetchAttempts,
		RetryDelay: cfg.Worker.FetchRetryDelay,
	}, client, prices, logger)
	health := pipeline.NewHealthPipeline(client, prices, redis, cfg.Exchange.HealthTimeout, logger)
	cleanup := pipeline.NewCleanupPipeline(prices, cfg.Worker.RetentionDays, logger)

	mux, err := tasks.NewMux(&tasks.Handlers{
		Fetch:   fetch,
		Health:  health,
		Cleanup: cleanup,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build task router", "error", err)
		os.Exit(1)
	}

	connOpt := broker.ConnOpt(cfg.Redis)
	level := tasks.LogLevel(cfg.Log.Level)

	// Start task server
	server := tasks.NewServer(connOpt, cfg.Worker, queueLogger, level)
	if err := server.Start(mux); err != nil {
		logger.Error("failed to start task server", "error", err)
		os.Exit(1)
	}
	defer server.Shutdown()
	logger.Info("task server started",
		"concurrency", cfg.Worker.Concurrency,
		"tasks", tasks.Names(),
	)

	// Start periodic scheduler
	if *runScheduler {
		scheduler := tasks.NewScheduler(connOpt, queueLogger, level)
		entries, err := tasks.RegisterPeriodic(scheduler, cfg.Worker, tasks.OptionsFromConfig(cfg.Worker))
		if err != nil {
			logger.Error("failed to register periodic tasks", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer scheduler.Shutdown()
		logger.Info("scheduler started",
			"entries", len(entries),
			"fetch", cfg.Worker.FetchSchedule,
			"health", cfg.Worker.HealthSchedule,
			"cleanup", cfg.Worker.CleanupSchedule,
		)
	}

	// Start metrics and health listener
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(cfg.Metrics.Path, prices, redis),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("worker running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("worker stopped")
}

// createHealthHandler serves worker liveness and metrics.
func createHealthHandler(metricsPath string, db, queue pipeline.Pinger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string            `json:"status"`
			Components map[string]string `json:"components"`
		}{
			Status:     pipeline.HealthHealthy,
			Components: make(map[string]string),
		}

		for name, p := range map[string]pipeline.Pinger{
			pipeline.ComponentDatabase: db,
			pipeline.ComponentRedis:    queue,
		} {
			if err := p.Ping(ctx); err != nil {
				health.Status = pipeline.HealthUnhealthy
				health.Components[name] = err.Error()
				continue
			}
			health.Components[name] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != pipeline.HealthHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
