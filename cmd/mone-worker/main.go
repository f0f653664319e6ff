package main

import (
	"context"
	"errors"
	"os"

	"mone/internal/amqp"
	"mone/internal/cli"
	applog "mone/internal/log"
	"mone/internal/storage"
	"mone/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, nil)
	logger.Info("Starting mone-worker", applog.FieldOperation, applog.OpStartup)

	// The export reads the server's database; a memory book lives only in
	// the server process.
	if cfg.DataBackend != "sqlite" {
		logger.Error("mone-worker needs DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("mone-worker needs AMQP_URL")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	events, err := amqp.Dial(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer events.Close()

	w := worker.NewExportWorker(repo, cfg.ExportPath, logger.WithComponent(applog.ComponentWorker).Logger)
	if err := w.Run(ctx, events, cfg.ExportInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
