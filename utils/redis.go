// utils/redis.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrEmptyRedisAddress = errors.New("redis address is required")

const redisPingTimeout = 5 * time.Second

// NewRedisClient connects and pings; the caller owns Close.
func NewRedisClient(ctx context.Context, address, password string) (*redis.Client, error) {
	if address == "" {
		return nil, ErrEmptyRedisAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
