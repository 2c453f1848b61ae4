package storage

import (
	"context"
	"fmt"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/infrastructure/configloader"
)

// NewFromConfig opens the backend selected in cfg. The returned close
// function is never nil.
func NewFromConfig(ctx context.Context, cfg configloader.StorageConfig) (port.StateStorage, func() error, error) {
	switch cfg.Backend {
	case "", "file":
		s, err := NewFileStorage(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case "redis":
		s, err := NewRedisStorage(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
