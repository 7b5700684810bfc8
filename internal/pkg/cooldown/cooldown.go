// Package cooldown rate-limits commands per key with a fixed window.
package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter admits one action per key per window. When it refuses, it also
// returns how long until the key frees up.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error)
}

// Redis keeps windows as expiring keys so they survive restarts and are
// shared between bot replicas.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed limiter. Keys are stored as prefix+key.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Allow(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	k := r.prefix + key
	ok, err := r.rdb.SetNX(ctx, k, time.Now().Unix(), window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to set cooldown: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := r.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read cooldown: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return false, ttl, nil
}

// Memory is an in-process limiter for deployments without Redis.
type Memory struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemory creates an empty in-process limiter.
func NewMemory() *Memory {
	return &Memory{until: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Allow(_ context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}

	// Drop stale entries while we hold the lock.
	for k, until := range m.until {
		if !now.Before(until) {
			delete(m.until, k)
		}
	}
	m.until[key] = now.Add(window)
	return true, 0, nil
}
