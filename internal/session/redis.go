package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tartampluch/go-contacts/internal/config"
)

// RedisStorage keeps values in Redis so several clients can share a session.
// Keys expire with the session they hold.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to redisURL and checks the connection.
func NewRedisStorage(ctx context.Context, redisURL string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRedisURL, err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, config.RedisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrRedisConnect, err)
	}
	return NewRedisStorageWithClient(client), nil
}

// NewRedisStorageWithClient uses an existing client.
func NewRedisStorageWithClient(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client, prefix: config.RedisKeyPrefix}
}

func (r *RedisStorage) key(k string) string {
	return r.prefix + k
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrSessionRead, err)
	}
	return v, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
			return fmt.Errorf("%s: %w", config.ErrSessionWrite, err)
		}
		return nil
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrSessionWrite, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close closes the Redis connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
