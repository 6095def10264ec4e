// Package backend opens the record store and event publisher selected by
// configuration.
package backend

import (
	"context"
	"fmt"

	"pricewatch/internal/amqp"
	"pricewatch/internal/config"
	"pricewatch/internal/log"
	"pricewatch/internal/services"
	"pricewatch/internal/storage"
	"pricewatch/internal/storage/memory"
	"pricewatch/internal/storage/redis"
)

// OpenStore creates the record store named by cfg.DataBackend. The caller
// owns the returned store and must Close it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.RecordStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBackend)

	switch cfg.DataBackend {
	case config.BackendMemory, "":
		logger.Info("Initialized memory backend")
		return memory.NewStore(), nil

	case config.BackendSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	case config.BackendRedis:
		store, err := redis.NewStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
		}
		logger.Info("Initialized Redis backend")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}

// OpenPublisher connects the invoice-recorded publisher. Publishing is
// optional: with no AMQP_URL, or when the broker cannot be reached, it
// returns a nil Publisher and the service records without announcing.
func OpenPublisher(cfg *config.Config, logger *log.Logger) services.Publisher {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBackend)
	if cfg == nil || cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, sheet mirroring will not run")
		return nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		return nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}
