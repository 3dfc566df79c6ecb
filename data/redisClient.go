package data

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the quote cache and fails if it does not answer PING.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("Redis connected", slog.String("pong", pong))

	return rdb, nil
}
