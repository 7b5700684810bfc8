package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"geoguess-bot/internal/config"
)

// Redis wraps a go-redis client so it can report health like Pool.
type Redis struct {
	*redis.Client
}

// NewRedis connects to Redis. It returns nil, nil when no address is
// configured; callers then run without Redis.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to Redis")
	return &Redis{Client: client}, nil
}

// Name identifies the client in health reports.
func (r *Redis) Name() string { return "redis" }

// HealthCheck pings Redis.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
