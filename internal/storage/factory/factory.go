// Package factory selects and builds the configured storage backend.
package factory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mediahub-be/internal/config"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/storage/kv"
	"mediahub-be/internal/storage/kvstore"
	"mediahub-be/internal/storage/memory"
)

const (
	TypeRedis  = "redis"
	TypeBadger = "badger"
	TypeMemory = "memory"
)

// New returns the IStorage named by cfg.Type. Persistent backends are wrapped
// in the retry policy from cfg; an unknown type falls back to memory.
func New(cfg config.StorageConfig, log logger.ILogger) (storage.IStorage, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("Storage", "Using in-memory storage", map[string]interface{}{"type": cfg.Type})
		return memory.New(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		log.Warn("Storage", "Initial backend ping failed, continuing with retry", map[string]interface{}{
			"type":  cfg.Type,
			"error": err.Error(),
		})
	}

	retrying := kv.WithRetry(client, kv.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
	}, log)

	log.Info("Storage", "Key-value storage ready", map[string]interface{}{"type": cfg.Type})
	return kvstore.New(retrying, log, kvstore.WithScanCount(cfg.ScanCount)), nil
}

func newClient(cfg config.StorageConfig) (kv.Client, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeRedis:
		return kv.NewRedisClient(cfg.RedisURL), nil
	case TypeBadger:
		c, err := kv.NewBadgerClient(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}
