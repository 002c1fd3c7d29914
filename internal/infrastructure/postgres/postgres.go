package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"user-api/internal/infrastructure/config"
	"user-api/internal/infrastructure/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client wraps gorm.DB with additional functionality
type Client struct {
	*gorm.DB
	sqlDB  *sql.DB
	tracer trace.Tracer
}

// slogWriter routes GORM's printf-style logger into slog
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...interface{}) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "gorm"))
}

// NewClient opens a pooled GORM connection and verifies it with a ping.
// Driver errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey.
func NewClient(ctx context.Context, cfg config.PostgresConfig, tel *telemetry.Telemetry) (*Client, error) {
	gormLogger := logger.New(slogWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	gormDB, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm postgres connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	telemetry.Log(ctx, telemetry.LevelInfo, "Successfully connected to Postgres with GORM", nil,
		attribute.String("postgres.dsn", maskDSN(cfg.DSN)),
		attribute.Int("postgres.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("postgres.max_idle_conns", cfg.MaxIdleConns),
	)

	return &Client{
		DB:     gormDB,
		sqlDB:  sqlDB,
		tracer: tel.Tracer,
	}, nil
}

// HealthCheck performs a health check on the Postgres connection
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "postgres.health_check")
	defer span.End()

	if err := c.sqlDB.PingContext(ctx); err != nil {
		span.SetAttributes(attribute.Bool("postgres.healthy", false))
		return fmt.Errorf("postgres health check failed: %w", err)
	}

	stats := c.sqlDB.Stats()
	span.SetAttributes(
		attribute.Bool("postgres.healthy", true),
		attribute.Int("postgres.open_connections", stats.OpenConnections),
		attribute.Int("postgres.in_use", stats.InUse),
	)
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.sqlDB.Close()
}

// AutoMigrate runs auto migration for given models
func (c *Client) AutoMigrate(ctx context.Context, dst ...interface{}) error {
	ctx, span := c.tracer.Start(ctx, "postgres.auto_migrate")
	defer span.End()

	if err := c.DB.WithContext(ctx).AutoMigrate(dst...); err != nil {
		span.SetAttributes(attribute.Bool("db.error", true))
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	span.SetAttributes(attribute.Bool("migration.success", true))
	telemetry.Log(ctx, telemetry.LevelInfo, "Postgres schema migrated", nil,
		attribute.Int("migration.models", len(dst)),
	)
	return nil
}

// maskDSN hides the password of a URL or key/value DSN
func maskDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		rest := dsn[i+3:]
		at := strings.LastIndex(rest, "@")
		if at < 0 {
			return dsn
		}
		userinfo := rest[:at]
		if colon := strings.Index(userinfo, ":"); colon >= 0 {
			userinfo = userinfo[:colon] + ":***"
		}
		return dsn[:i+3] + userinfo + rest[at:]
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}
