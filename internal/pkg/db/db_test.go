package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoguess-bot/internal/config"
)

func TestNewRedis_EmptyAddr(t *testing.T) {
	client, err := NewRedis(context.Background(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedis_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(context.Background(), &config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.Equal(t, "redis", client.Name())
	assert.NoError(t, client.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), &config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestNewPool_InvalidDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "localhost", Port: 1, User: "u", Name: "db", PoolSize: 2, ConnectTimeout: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, cfg)
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, time.Second, orDefault(0, time.Second))
	assert.Equal(t, time.Minute, orDefault(time.Minute, time.Second))
}
