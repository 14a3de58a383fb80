package core

import (
	"context"
	"fmt"

	"slideapp/internal/blob"
	"slideapp/internal/config"
	"slideapp/internal/infra/persistence/memory"
	"slideapp/internal/infra/persistence/postgres"
	"slideapp/internal/infra/persistence/sqlite"
	"slideapp/internal/slidebook"
)

// OpenRunStore opens the run store named by cfg.StorageDriver.
func OpenRunStore(ctx context.Context, cfg *config.Config) (slidebook.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.New(), nil
	case "", config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: storage %q", config.ErrUnknownDriver, cfg.StorageDriver)
	}
}

// OpenExportStore opens the blob store exports are written to.
func OpenExportStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	return blob.Open(ctx, cfg.Blob())
}
