package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 18, cfg.User.MinAge)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "user-api", cfg.Otel.ServiceName)
	assert.True(t, cfg.Otel.LogBodies)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MinAgeFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("USER_MIN_AGE", "21")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.User.MinAge)
}

func TestLoad_MinAgeExplicitKeyWins(t *testing.T) {
	isolate(t)
	v := viper.New()
	v.Set(MinAgeKey, 30)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.User.MinAge)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	content := "USER_MIN_AGE=16\nAPP_PORT=9090\nSTORE_DRIVER=Redis\nKAFKA_BROKERS=a:9092, b:9092\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.User.MinAge)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9090\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.App.Port)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	isolate(t)

	t.Run("negative min age", func(t *testing.T) {
		t.Setenv("USER_MIN_AGE", "-1")
		_, err := Load(viper.New())
		assert.ErrorContains(t, err, MinAgeKey)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "cassandra")
		_, err := Load(viper.New())
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})

	t.Run("kafka without brokers", func(t *testing.T) {
		t.Setenv("KAFKA_ENABLED", "true")
		t.Setenv("KAFKA_BROKERS", " , ")
		_, err := Load(viper.New())
		assert.ErrorContains(t, err, "KAFKA_BROKERS")
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
