package backend

import (
	"context"
	"fmt"

	"alice/internal/cache"
	"alice/internal/log"
	"alice/internal/storage"
	"alice/internal/storage/memory"
	"alice/internal/storage/postgres"
	"alice/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		kv  storage.KV
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		kv, err = sqlite.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		kv, err = postgres.Open(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres backend: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
	case MemoryBackend:
		kv = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	result := &BackendResult{Cleanup: kv.Close}
	if config.CacheSize > 0 {
		lru := cache.NewLRUCache[string](config.CacheSize, config.CacheTTL)
		manager := cache.NewManager(f.logger)
		manager.Register(lru)
		manager.StartCleanup(config.CacheTTL)
		kv = storage.NewCachedKV(kv, lru)

		result.Caches = manager
		result.Cleanup = func() error {
			manager.Stop()
			return kv.Close()
		}
		f.logger.Info("Enabled store cache", "size", config.CacheSize, "ttl", config.CacheTTL.String())
	}

	result.Store = storage.NewKVStore(kv, f.logger)
	return result, nil
}
