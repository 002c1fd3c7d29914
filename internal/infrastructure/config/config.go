package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Store drivers understood by STORE_DRIVER
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// MinAgeKey is the configuration key for the minimum age at registration.
// Environment variables and .env files spell it USER_MIN_AGE.
const (
	MinAgeKey    = "user.min.age"
	minAgeEnvKey = "USER_MIN_AGE"
)

// Config is the full application configuration
type Config struct {
	App      AppConfig
	Otel     OtelConfig
	User     UserConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// AppConfig holds HTTP server settings
type AppConfig struct {
	Port                string
	ShutdownTimeoutSecs int
}

// OtelConfig holds the configuration for OTel SDK
type OtelConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	ServiceNamespace string
	Protocol         string
	Endpoint         string
	Insecure         bool
	Username         string
	Password         string
	// LogVerbosity controls the verbosity of logs (0 = minimal, 1 = standard, 2 = verbose)
	LogVerbosity int
	// LogOutput is stdout, stderr or otel (exporter only)
	LogOutput string
	// LogFormat is text or json
	LogFormat string
	// TracerName is the name used for the tracer provider
	TracerName string
	// MeterName is the name used for the meter provider
	MeterName string
	// LogBodies controls whether request/response bodies are logged
	LogBodies          bool
	MaxQueueSize       int
	BatchTimeoutSecs   int
	ExportTimeoutSecs  int
	ExportIntervalSecs int
}

// UserConfig holds the user registration rules
type UserConfig struct {
	MinAge int
}

// StoreConfig selects the repository implementation
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds the GORM connection settings
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
	AutoMigrate     bool
}

// RedisConfig holds the go-redis client settings
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  int // seconds
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	PoolSize     int
	MinIdleConns int
	MaxConnAge   int // minutes
	PoolTimeout  int // seconds
	IdleTimeout  int // minutes
	KeyPrefix    string
}

// KafkaConfig holds the franz-go client settings
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	Topic         string
	ConsumerGroup string
	ConnIdleTime  int // seconds
	DialTimeout   int // seconds
	AuditConsumer bool
}

// LoadConfig reads configuration from the file named by CONFIG_FILE
// (default .env), the environment and built-in defaults, in that order of
// precedence from lowest to highest: defaults, file, environment.
func LoadConfig() (Config, error) {
	return Load(viper.New())
}

// Load builds a Config from v. The caller may preconfigure v, for example
// with bound command-line flags.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigFile(v.GetString("CONFIG_FILE"))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, environment variables and defaults apply
		if !isNotFound(err) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		App: AppConfig{
			Port:                v.GetString("APP_PORT"),
			ShutdownTimeoutSecs: v.GetInt("APP_SHUTDOWN_TIMEOUT_SECS"),
		},
		Otel: OtelConfig{
			Enabled:            v.GetBool("OTEL_ENABLED"),
			ServiceName:        v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion:     v.GetString("OTEL_SERVICE_VERSION"),
			ServiceNamespace:   v.GetString("OTEL_SERVICE_NAMESPACE"),
			Protocol:           v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"),
			Endpoint:           v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:           v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			Username:           v.GetString("OTEL_EXPORTER_OTLP_USERNAME"),
			Password:           v.GetString("OTEL_EXPORTER_OTLP_PASSWORD"),
			LogVerbosity:       v.GetInt("OTEL_LOG_VERBOSITY"),
			LogOutput:          v.GetString("LOG_OUTPUT"),
			LogFormat:          v.GetString("LOG_FORMAT"),
			TracerName:         v.GetString("OTEL_TRACER_NAME"),
			MeterName:          v.GetString("OTEL_METER_NAME"),
			LogBodies:          !v.GetBool("DISABLE_BODY_LOGGING"),
			MaxQueueSize:       v.GetInt("OTEL_MAX_QUEUE_SIZE"),
			BatchTimeoutSecs:   v.GetInt("OTEL_BATCH_TIMEOUT_SECS"),
			ExportTimeoutSecs:  v.GetInt("OTEL_EXPORT_TIMEOUT_SECS"),
			ExportIntervalSecs: v.GetInt("OTEL_EXPORT_INTERVAL_SECS"),
		},
		User: UserConfig{
			MinAge: minAge(v),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("STORE_DRIVER")),
		},
		Postgres: PostgresConfig{
			DSN:             v.GetString("POSTGRES_DSN"),
			MaxOpenConns:    v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetInt("POSTGRES_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetInt("POSTGRES_CONN_MAX_IDLE_TIME"),
			AutoMigrate:     v.GetBool("POSTGRES_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:         v.GetString("REDIS_ADDR"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetInt("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetInt("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetInt("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			MaxConnAge:   v.GetInt("REDIS_MAX_CONN_AGE"),
			PoolTimeout:  v.GetInt("REDIS_POOL_TIMEOUT"),
			IdleTimeout:  v.GetInt("REDIS_IDLE_TIMEOUT"),
			KeyPrefix:    v.GetString("REDIS_KEY_PREFIX"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("KAFKA_ENABLED"),
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			Topic:         v.GetString("KAFKA_TOPIC"),
			ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
			ConnIdleTime:  v.GetInt("KAFKA_CONN_IDLE_TIME"),
			DialTimeout:   v.GetInt("KAFKA_DIAL_TIMEOUT"),
			AuditConsumer: v.GetBool("KAFKA_AUDIT_CONSUMER"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CONFIG_FILE", ".env")

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_SHUTDOWN_TIMEOUT_SECS", 5)

	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_SERVICE_NAME", "user-api")
	v.SetDefault("OTEL_SERVICE_VERSION", "v0.1.0")
	v.SetDefault("OTEL_SERVICE_NAMESPACE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_LOG_VERBOSITY", 1)
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OTEL_TRACER_NAME", "user-api-tracer")
	v.SetDefault("OTEL_METER_NAME", "user-api-meter")
	v.SetDefault("DISABLE_BODY_LOGGING", false) // Default to logging bodies
	v.SetDefault("OTEL_MAX_QUEUE_SIZE", 2048)
	v.SetDefault("OTEL_BATCH_TIMEOUT_SECS", 5)
	v.SetDefault("OTEL_EXPORT_TIMEOUT_SECS", 30)
	v.SetDefault("OTEL_EXPORT_INTERVAL_SECS", 1)

	v.SetDefault(minAgeEnvKey, 18)

	v.SetDefault("STORE_DRIVER", StoreMemory)

	v.SetDefault("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=users port=5432 sslmode=disable")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 25)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", 5)
	v.SetDefault("POSTGRES_CONN_MAX_IDLE_TIME", 2)
	v.SetDefault("POSTGRES_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	v.SetDefault("REDIS_READ_TIMEOUT", 3)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_MAX_CONN_AGE", 30)
	v.SetDefault("REDIS_POOL_TIMEOUT", 4)
	v.SetDefault("REDIS_IDLE_TIMEOUT", 5)
	v.SetDefault("REDIS_KEY_PREFIX", "user-api")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "user-events")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "user-api-audit")
	v.SetDefault("KAFKA_CONN_IDLE_TIME", 60)
	v.SetDefault("KAFKA_DIAL_TIMEOUT", 10)
	v.SetDefault("KAFKA_AUDIT_CONSUMER", true)
}

// Validate rejects configurations the application cannot start with
func (c Config) Validate() error {
	if c.User.MinAge < 0 {
		return fmt.Errorf("%s must not be negative, got %d", MinAgeKey, c.User.MinAge)
	}
	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver == StorePostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC is required when Kafka is enabled")
		}
	}
	return nil
}

// minAge prefers an explicit user.min.age (flag or environment) over the
// USER_MIN_AGE spelling used by .env files and defaults
func minAge(v *viper.Viper) int {
	if v.IsSet(MinAgeKey) {
		return v.GetInt(MinAgeKey)
	}
	return v.GetInt(minAgeEnvKey)
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
