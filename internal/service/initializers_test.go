package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/config"
	"github.com/xkilldash9x/taskpilot/internal/mocks"
)

func TestInitializeStore(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("FileBackend", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		path := filepath.Join(t.TempDir(), "nested", "configurations.json")
		cfg.On("Store").Return(config.StoreConfig{Backend: config.StoreBackendFile, Path: path})

		kv, cleanup, err := InitializeStore(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, cleanup)
		defer cleanup()

		require.NoError(t, kv.Set(ctx, "config_a", "<tasks/>"))
		got, err := kv.Get(ctx, "config_a")
		require.NoError(t, err)
		assert.Equal(t, "<tasks/>", got)
		assert.FileExists(t, path)
	})

	t.Run("PostgresWithoutURL", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		cfg.On("Store").Return(config.StoreConfig{Backend: config.StoreBackendPostgres})
		cfg.On("Database").Return(config.DatabaseConfig{})

		kv, cleanup, err := InitializeStore(ctx, cfg, logger)
		require.Error(t, err)
		assert.Nil(t, kv)
		assert.NotNil(t, cleanup, "cleanup is never nil")
		cfg.AssertExpectations(t)
	})

	t.Run("Unsupported", func(t *testing.T) {
		cfg := new(mocks.MockConfig)
		cfg.On("Store").Return(config.StoreConfig{Backend: "etcd"})

		_, _, err := InitializeStore(ctx, cfg, logger)
		assert.EqualError(t, err, "unsupported store backend: etcd")
	})
}

func TestInitializeStore_FileErrorsSurface(t *testing.T) {
	// A directory where the file should be cannot be loaded.
	dir := t.TempDir()
	cfg := new(mocks.MockConfig)
	cfg.On("Store").Return(config.StoreConfig{Backend: config.StoreBackendFile, Path: dir})

	_, _, err := InitializeStore(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
