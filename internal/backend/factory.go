package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetbeacon/internal/storage"
	"budgetbeacon/internal/storage/memory"
	"budgetbeacon/internal/storage/redisstore"
)

// BackendResult contains the adapter, the store under it and a cleanup function
type BackendResult struct {
	Adapter Adapter
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates an adapter over a store built from config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteStore(config)
	case RedisBackend:
		result, err = f.createRedisStore(ctx, config)
	case MemoryBackend:
		result, err = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	adapter, err := NewAdapter(config.Mode, result.Store)
	if err != nil {
		if result.Cleanup != nil {
			result.Cleanup()
		}
		return nil, err
	}
	result.Adapter = adapter

	f.logger.Info("Initialized storage adapter",
		"backend", config.Type,
		"mode", adapter.Mode())

	return result, nil
}

func (f *DefaultFactory) createSQLiteStore(config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createRedisStore(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := redisstore.Open(ctx, config.RedisURL, config.RedisKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
	}
	queue := NewWriteQueue(store, config.Queue)

	f.logger.Info("Initialized Redis backend",
		"key_prefix", config.RedisKeyPrefix,
		"max_attempts", config.Queue.MaxAttempts,
		"base_delay", config.Queue.BaseDelay)

	return &BackendResult{
		Store: queue,
		Cleanup: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			return errors.Join(queue.Close(ctx), store.Close())
		},
	}, nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir, append([]string{StateKey, OnboardingKey, CloudMirrorKey}, LegacyStateKeys...)...)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store:   store,
		Cleanup: nil,
	}, nil
}
