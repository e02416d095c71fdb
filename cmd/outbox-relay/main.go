package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/config"
	"github.com/isassess/isassess/pkg/logging"
	"github.com/isassess/isassess/pkg/notify"
	"github.com/isassess/isassess/pkg/outbox"
	"github.com/isassess/isassess/pkg/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer, err := notify.NewMailer(ctx, cfg.Mail, logger)
	if err != nil {
		logger.Fatal("failed to initialize mailer", zap.Error(err))
	}

	relay := outbox.NewRelay(
		postgres.NewOutboxRepository(db.DB()),
		postgres.NewUserRepository(db.DB()),
		mailer,
		logger,
		outbox.Options{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			AppBaseURL:   cfg.Mail.AppBaseURL,
		},
	)

	go func() {
		if err := relay.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("outbox relay stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("outbox relay shutting down")
}
