// Package redisclient builds the go-redis client used by the vector
// cache store from the service's REDIS_URL configuration.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/micic-mihajlo/semantic-cache/config"
	"github.com/redis/go-redis/v9"
)

// New parses cfg.RedisURL and returns a go-redis client for it. It
// does not connect or ping eagerly; callers should verify connectivity (Ping)
// before declaring startup successful.
func New(cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Ping verifies the connection within a short timeout, used once at
// startup so a misconfigured Redis URL fails fast.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
