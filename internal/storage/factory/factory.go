// Package factory constructs exactly one storage adapter from
// configuration at process start. Everything above it depends only on the
// storage.Store interface and never learns which backend was selected.
package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/config"
	"github.com/swarmdesk/swarmdesk/internal/storage"
	"github.com/swarmdesk/swarmdesk/internal/storage/file"
	"github.com/swarmdesk/swarmdesk/internal/storage/postgres"
	"github.com/swarmdesk/swarmdesk/internal/storage/sqlite"
)

// Open builds the configured adapter and runs its idempotent Init. A
// misconfigured or unreachable backend fails here, at startup, rather than
// on first use.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	store, err := build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("storage backend ready", zap.String("backend", string(cfg.Backend)))
	return store, nil
}

func build(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return file.New(cfg.FilePath, cfg.BackupDir, cfg.BackupKeep, logger)
	case config.BackendSQLite:
		return sqlite.New(cfg.SQLitePath, logger)
	case config.BackendPostgres:
		return postgres.New(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
