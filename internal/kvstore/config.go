// ABOUTME: Builds the configured store driver from host configuration
// ABOUTME: Shared by the widget binaries so they open storage the same way

package kvstore

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/2389/coven-widget/internal/config"
)

// FromConfig opens the driver named by cfg.Driver.
func FromConfig(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	opts := []StoreOption{WithLogger(logger)}

	switch StoreType(cfg.Driver) {
	case StoreTypeSQLite:
		opts = append(opts, WithSQLitePath(cfg.Path))
	case StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, WithRedisClient(client), WithRedisTTL(cfg.Redis.TTL))
		if cfg.Redis.Prefix != "" {
			opts = append(opts, WithRedisPrefix(cfg.Redis.Prefix))
		}
	}

	store, err := NewStore(StoreType(cfg.Driver), opts...)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
