// Command migrate replays a JSON ticket snapshot into the storage backend
// selected by the environment, preserving ticket identity. Safe to rerun:
// tickets already present at the destination are skipped.
//
// Usage:
//
//	migrate -snapshot data/tickets.json
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/config"
	"github.com/swarmdesk/swarmdesk/internal/migrate"
	"github.com/swarmdesk/swarmdesk/internal/observability"
	"github.com/swarmdesk/swarmdesk/internal/storage/factory"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "path to the source JSON snapshot")
	flag.Parse()

	if *snapshotPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	snapshot, err := migrate.LoadSnapshot(*snapshotPath)
	if err != nil {
		logger.Fatal("failed to load snapshot", zap.Error(err))
	}

	ctx := context.Background()
	target, err := factory.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open target backend", zap.Error(err))
	}
	defer target.Close() //nolint:errcheck

	result, err := migrate.Run(ctx, snapshot, target, logger)
	if err != nil {
		logger.Fatal("migration aborted", zap.Error(err))
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}
