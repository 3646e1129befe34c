package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"alice/internal/cli"
	apphttp "alice/internal/http"
	"alice/internal/log"
	"alice/internal/notify"
	"alice/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	recent := notify.NewRecorder(cfg.RecentNotifications)
	gate := cli.NewNotifier(logger, cfg, amqpClient, recent)

	session := services.NewSession(be.Store, gate, services.SessionOptions{
		Location:      cfg.Location(),
		NotifyTimeout: cfg.NotifyTimeout,
		Logger:        logger,
	})
	if cfg.SeedTestUser {
		if err := session.EnsureTestUser(ctx); err != nil {
			logger.Error("Failed to seed test user", log.FieldError, err)
			os.Exit(1)
		}
	}
	if restored, err := session.Restore(ctx); err != nil {
		logger.Warn("Failed to restore previous session", log.FieldError, err)
	} else if restored {
		u, _ := session.User()
		logger.Info("Restored previous session", log.FieldEmail, u.Email)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Session:    session,
		Recent:     recent,
		Permission: gate,
		Ready:      be.Store.Ping,
		RateLimit:  cfg.RateLimitPerMinute,
		Logger:     logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting alice server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone,
		"notifications", cfg.NotificationsEnabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
