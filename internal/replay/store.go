package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"neoswaps/internal/config"
	"neoswaps/internal/storage"
	"neoswaps/internal/storage/memory"
	"neoswaps/internal/storage/pebble"
	"neoswaps/internal/storage/postgres"
)

// OpenStore opens the configured pool store. Postgres connections are
// retried with backoff and the schema is created when missing.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (storage.PoolStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendPebble:
		store, err := pebble.Open(cfg.PebblePath)
		if err != nil {
			return nil, err
		}
		logger.Info("pebble store opened", zap.String("path", cfg.PebblePath))
		return store, nil
	case config.BackendPostgres:
		var store *postgres.Store
		policy := retryPolicy{attempts: cfg.MaxRetries, backoff: cfg.RetryBackoff, logger: logger}
		err := policy.do(ctx, "connect postgres", func(ctx context.Context) error {
			var err error
			store, err = postgres.NewStore(ctx, cfg.PGDSN)
			if err != nil {
				return err
			}
			if err := store.Ping(ctx); err != nil {
				store.Close()
				return err
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("postgres store opened")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
