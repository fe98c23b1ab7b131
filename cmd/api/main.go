package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/rickgao/deribit-prices/internal/broker"
	"github.com/rickgao/deribit-prices/internal/config"
	"github.com/rickgao/deribit-prices/internal/database"
	"github.com/rickgao/deribit-prices/internal/httpapi"
	"github.com/rickgao/deribit-prices/internal/logging"
	"github.com/rickgao/deribit-prices/internal/store"
	"github.com/rickgao/deribit-prices/internal/tasks"
	"github.com/rickgao/deribit-prices/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tracker.local.yaml", "path to config file")
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

	logger.Info("starting api",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"environment", cfg.App.Environment,
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

	// Task queue client
	redis := broker.New(cfg.Redis)
	defer redis.Close()

	connOpt := broker.ConnOpt(cfg.Redis)
	client := asynq.NewClient(connOpt)
	defer client.Close()
	inspector := asynq.NewInspector(connOpt)
	defer inspector.Close()

	dispatcher := tasks.NewDispatcher(client, inspector, redis, redis.Addr(),
		tasks.WithDispatcherLogger(logger),
		tasks.WithTaskOptions(tasks.OptionsFromConfig(cfg.Worker)),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Prices: store.New(pool, logger),
		Tasks:  dispatcher,
		Info: httpapi.ServiceInfo{
			Name:        cfg.App.Name,
			Version:     version.Version,
			Environment: cfg.App.Environment,
		},
		HealthWait:  cfg.HTTP.HealthWait,
		MetricsPath: cfg.Metrics.Path,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting http server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}

	logger.Info("api stopped")
}
