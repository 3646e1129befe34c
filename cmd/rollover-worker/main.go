package main

import (
	"context"
	"time"

	"alice/internal/cli"
	"alice/internal/log"
	"alice/internal/services"
	"alice/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting rollover-worker")

	be := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	// Carry-over notifications go to the broker so a connected client can
	// pick them up; without one they are only logged.
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	gate := cli.NewNotifier(logger, cfg, amqpClient, nil)

	engine := services.NewRolloverEngine(be.Store, gate, cfg.Location(), logger)
	w := worker.NewRolloverWorker(engine, be.Store, worker.Config{
		Interval:    cfg.RolloverInterval,
		Concurrency: cfg.RolloverConcurrency,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := w.Stop(ctx); err != nil {
			logger.Error("Failed to stop rollover worker", log.FieldError, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start rollover worker", log.FieldError, err)
		return
	}
	logger.Info("Rollover worker configured",
		"interval", cfg.RolloverInterval,
		"concurrency", cfg.RolloverConcurrency,
		"backend", cfg.DataBackend)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Rollover worker stopped")
}
