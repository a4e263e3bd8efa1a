package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"ordertrack/internal/config"
	"ordertrack/internal/database"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/pkg/logger"
	"ordertrack/internal/repository"
)

// One-shot expiry sweep, for deployments that run cleanup from cron instead
// of the API's background ticker.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load failed")
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	db, err := database.Connect(cfg.DB.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	cleanup := notification.NewCleanupService(repository.NewNotificationRepository(db), log)
	if _, err := cleanup.CleanupExpired(context.Background()); err != nil {
		os.Exit(1)
	}
}
