package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"user-api/internal/infrastructure/config"
)

func TestNewOptions(t *testing.T) {
	opts := newOptions(config.RedisConfig{
		Addr:         "cache:6379",
		DB:           2,
		DialTimeout:  5,
		ReadTimeout:  3,
		WriteTimeout: 3,
		PoolSize:     20,
		MaxConnAge:   30,
		IdleTimeout:  5,
	})

	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 30*time.Minute, opts.MaxConnAge)
	assert.Equal(t, 5*time.Minute, opts.IdleTimeout)
}
