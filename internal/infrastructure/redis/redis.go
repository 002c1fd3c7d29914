package redis

import (
	"context"
	"fmt"
	"time"

	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/telemetry"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client wraps redis.Client with additional functionality
type Client struct {
	*redis.Client
	tracer trace.Tracer
}

// NewClient creates a traced Redis client and verifies it with a ping
func NewClient(ctx context.Context, cfg config.RedisConfig, tel *telemetry.Telemetry) (*Client, error) {
	rdb := redis.NewClient(newOptions(cfg))

	hookOpts := []redisotel.Option{
		redisotel.WithAttributes(attribute.Int("db.redis.database_index", cfg.DB)),
	}
	if tel.TracerProvider != nil {
		hookOpts = append(hookOpts, redisotel.WithTracerProvider(tel.TracerProvider))
	}
	rdb.AddHook(redisotel.NewTracingHook(hookOpts...))

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Successfully connected to Redis", nil,
		attribute.String("redis.addr", cfg.Addr),
		attribute.Int("redis.db", cfg.DB),
		attribute.Int("redis.pool_size", cfg.PoolSize),
	)

	return &Client{
		Client: rdb,
		tracer: tel.Tracer,
	}, nil
}

func newOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxConnAge:      time.Duration(cfg.MaxConnAge) * time.Minute,
		PoolTimeout:     time.Duration(cfg.PoolTimeout) * time.Second,
		IdleTimeout:     time.Duration(cfg.IdleTimeout) * time.Minute,
	}
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "redis.health_check")
	defer span.End()

	if err := c.Ping(ctx).Err(); err != nil {
		span.SetAttributes(attribute.Bool("redis.healthy", false))
		return fmt.Errorf("redis health check failed: %w", err)
	}

	stats := c.PoolStats()
	span.SetAttributes(
		attribute.Bool("redis.healthy", true),
		attribute.Int64("redis.pool.total_conns", int64(stats.TotalConns)),
		attribute.Int64("redis.pool.idle_conns", int64(stats.IdleConns)),
	)
	return nil
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
