package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
)

// categoryCacheEntries bounds the cache at two listings per active user.
const categoryCacheEntries = 2048

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// dialPublisher is swapped out in tests.
	dialPublisher func(ctx context.Context, url, exchange, routingKey string) (*amqp.Publisher, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:        logger.WithComponent(log.ComponentBackend),
		dialPublisher: amqp.NewPublisher,
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend opens the configured store and, when AMQP is configured,
// the event publisher. A broker that cannot be reached is logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		store, err = postgres.Connect(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized PostgreSQL backend")
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var cacheManager *cache.Manager
	if config.CategoryCacheTTL > 0 {
		cached := cache.NewCategoryStore(store, categoryCacheEntries, config.CategoryCacheTTL)
		cacheManager = cache.NewManager(f.logger)
		cacheManager.Register(cached)
		cacheManager.StartCleanup(config.CategoryCacheTTL)
		store = cached
		f.logger.InfoContext(ctx, "Category cache enabled", "ttl", config.CategoryCacheTTL.String())
	}

	result := &BackendResult{Store: store}
	var publisher *amqp.Publisher
	if config.AMQPURL != "" {
		publisher, err = f.dialPublisher(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP publisher, continuing without events", log.FieldError, err.Error())
			publisher = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP publisher",
				"exchange", config.AMQPExchange,
				"routing_key", config.AMQPRoutingKey)
			result.Publisher = publisher
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if cacheManager != nil {
			cacheManager.Stop()
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}
	return result, nil
}
