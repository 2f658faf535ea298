package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  host: "127.0.0.1"
  port: 8081
grpc:
  enabled: true
  port: 9091
database:
  enabled: true
  host: "db"
  user: "revintel"
  password: "secret"
  db_name: "catalog"
redis:
  enabled: true
  addr: "cache:6379"
  default_ttl: 2m
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
log:
  level: debug
  format: console
engine:
  workers: 2
  max_recommendations: 25
  market:
    premium_threshold: 1100
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 9091, cfg.GRPC.Port)
	assert.Equal(t, "catalog", cfg.Database.DBName)
	assert.Equal(t, 2*time.Minute, cfg.Redis.DefaultTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, 25, cfg.Engine.MaxRecommendations)
	assert.Equal(t, 1100.0, cfg.Engine.Market.PremiumThreshold)
	assert.Equal(t, 650.0, cfg.Engine.Market.AverageMonthlySpend)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "invalid_yaml: ["))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REVINTEL_SERVER_PORT", "9999")
	t.Setenv("REVINTEL_ENGINE_MARKET_CHURN_RISK_THRESHOLD", "0.65")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 0.65, cfg.Engine.Market.ChurnRiskThreshold)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REVINTEL_REDIS_ENABLED", "true")
	t.Setenv("REVINTEL_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REVINTEL_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("REVINTEL_ENGINE_ITEM_TIMEOUT", "750ms")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.ItemTimeout)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	t.Setenv("REVINTEL_SERVER_PORT", "8181")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	changed := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	updated := []byte("server:\n  port: 8282\nlog:\n  level: warn\n")
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			// A truncate-then-write can surface an intermediate revision.
			if cfg.Server.Port != 8282 {
				continue
			}
			assert.Equal(t, "warn", cfg.Log.Level)
			return
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}
