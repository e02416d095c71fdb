package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apiserver"
	"github.com/isassess/isassess/pkg/auth"
	"github.com/isassess/isassess/pkg/config"
	"github.com/isassess/isassess/pkg/dashboard"
	"github.com/isassess/isassess/pkg/eventbus"
	"github.com/isassess/isassess/pkg/logging"
	"github.com/isassess/isassess/pkg/scheduler"
	"github.com/isassess/isassess/pkg/storage"
	"github.com/isassess/isassess/pkg/store/postgres"
	redisclient "github.com/isassess/isassess/pkg/store/redis"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize evidence storage", zap.Error(err))
	}

	loc := cfg.App.Location()
	bus := eventbus.NewBus(redis.Client())
	cache := redisclient.NewJSONCache(redis, redisclient.DashboardKey, cfg.Dashboard.CacheTTL)
	stats := dashboard.NewService(postgres.NewStatsRepository(db.DB()), cache, loc, logger)

	go invalidateOnEvents(ctx, bus, stats, logger)

	jobs := scheduler.New(loc, logger)
	if err := jobs.Add("refresh-dashboard-gauges", cfg.Scheduler.StatsCron, stats.RefreshGauges); err != nil {
		logger.Fatal("Failed to schedule dashboard refresh", zap.Error(err))
	}
	jobs.Start()
	defer jobs.Stop()

	server := apiserver.NewServer(cfg, logger, apiserver.Deps{
		Store:     db,
		Redis:     redis,
		Bus:       bus,
		Files:     files,
		Dashboard: stats,
		Tokens:    auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	go func() {
		logger.Info("Starting API server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

// invalidateOnEvents drops the cached dashboard whenever any replica commits
// a change that moves its numbers.
func invalidateOnEvents(ctx context.Context, bus *eventbus.Bus, stats *dashboard.Service, logger *zap.Logger) {
	events, err := bus.Subscribe(ctx, eventbus.ChannelApplication, eventbus.ChannelDepartment)
	if err != nil {
		logger.Error("Failed to subscribe to events", zap.Error(err))
		return
	}
	for event := range events {
		logger.Debug("invalidating dashboard", zap.String("event_type", event.Type))
		stats.Invalidate(ctx)
	}
}
