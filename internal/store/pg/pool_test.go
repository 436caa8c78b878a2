package pg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolAppliesOptions(t *testing.T) {
	pool, err := NewPool(context.Background(), "postgres://posi@localhost:5432/posi", PoolOptions{
		MaxConns:          3,
		MinConns:          1,
		MaxConnLifetime:   "30m",
		MaxConnIdleTime:   "5m",
		HealthCheckPeriod: "1m",
	})
	require.NoError(t, err)
	defer pool.Close()

	cfg := pool.Config()
	assert.Equal(t, int32(3), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod)
}

func TestNewPoolRejectsBadDuration(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://posi@localhost:5432/posi", PoolOptions{
		MaxConnLifetime: "soon",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_POOL_MAX_CONN_LIFETIME")
}

func TestNewPoolRejectsBadDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "://not-a-dsn", PoolOptions{})
	assert.Error(t, err)
}
