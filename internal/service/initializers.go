// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/config"
	"github.com/xkilldash9x/taskpilot/internal/store"
)

// InitializeStore opens the configured configuration store. The returned
// cleanup function is never nil.
func InitializeStore(ctx context.Context, cfg config.Interface, logger *zap.Logger) (store.KeyValue, func(), error) {
	noop := func() {}

	switch strings.ToLower(cfg.Store().Backend) {
	case config.StoreBackendFile, "":
		logger.Debug("Initializing file store.", zap.String("path", cfg.Store().Path))
		kv, err := store.NewFileStore(cfg.Store().Path, logger)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil

	case config.StoreBackendPostgres:
		if cfg.Database().URL == "" {
			return nil, noop, fmt.Errorf("database URL is not configured (hint: check TASKPILOT_DATABASE_URL)")
		}
		poolConfig, err := pgxpool.ParseConfig(cfg.Database().URL)
		if err != nil {
			return nil, noop, fmt.Errorf("unable to parse PGX pool config: %w", err)
		}
		poolConfig.MaxConns = 4
		poolConfig.MinConns = 1
		poolConfig.MaxConnLifetime = 1 * time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, noop, fmt.Errorf("unable to create PGX connection pool: %w", err)
		}

		kv, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		cleanup := func() {
			logger.Debug("Closing PostgreSQL connection pool.")
			pool.Close()
		}
		logger.Info("PostgreSQL store initialized.")
		return kv, cleanup, nil

	default:
		return nil, noop, fmt.Errorf("unsupported store backend: %s", cfg.Store().Backend)
	}
}
