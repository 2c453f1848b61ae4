package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis state backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStorage keeps state records as plain Redis strings without TTL.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStorageFromClient(client, opts.KeyPrefix), nil
}

// NewRedisStorageFromClient wraps an existing client.
func NewRedisStorageFromClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

// Load implements port.StateStorage.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Save implements port.StateStorage.
func (s *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
