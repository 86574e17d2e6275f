package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/swarmdesk/swarmdesk/internal/api/http"
	"github.com/swarmdesk/swarmdesk/internal/api/http/handlers"
	"github.com/swarmdesk/swarmdesk/internal/auth"
	"github.com/swarmdesk/swarmdesk/internal/cache"
	"github.com/swarmdesk/swarmdesk/internal/config"
	"github.com/swarmdesk/swarmdesk/internal/events"
	"github.com/swarmdesk/swarmdesk/internal/observability"
	"github.com/swarmdesk/swarmdesk/internal/storage/factory"
	"github.com/swarmdesk/swarmdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := factory.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open storage backend", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	statsCache := cache.NewStatsCache(cfg.Redis, logger)
	defer statsCache.Close()

	dispatcher := events.NewInMemoryDispatcher()
	notifications := worker.NewNotificationWorker(logger, cfg.Notification)
	notifications.Register(dispatcher)

	metrics := observability.NewMetrics()
	adminTokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, string(cfg.Storage.Backend), store),
		Tickets:         handlers.NewTicketsHandler(store, statsCache, dispatcher),
		Comments:        handlers.NewCommentsHandler(store),
		BugReports:      handlers.NewBugReportsHandler(store, dispatcher),
		Stats:           handlers.NewStatsHandler(store, statsCache),
		APIKeys:         handlers.NewAPIKeysHandler(store),
		AdminMiddleware: auth.NewAdminMiddleware(adminTokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
