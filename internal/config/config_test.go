package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/config"
)

func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Enabled = true
	cfg.Database.User = "revintel"
	cfg.Redis.Enabled = true
	cfg.Kafka.Enabled = true
	cfg.OpenSearch.Enabled = true
	cfg.MinIO.Enabled = true
	cfg.GRPC.Enabled = true
	return cfg
}

func TestConfig_Validate_Valid(t *testing.T) {
	t.Parallel()
	require.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_DefaultsAloneAreValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, config.Default().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"server port", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"grpc port", func(c *config.Config) { c.GRPC.Port = 0 }, "grpc.port"},
		{"grpc port collides", func(c *config.Config) { c.GRPC.Port = c.Server.Port }, "must differ"},
		{"database host", func(c *config.Config) { c.Database.Host = "" }, "database.host"},
		{"database user", func(c *config.Config) { c.Database.User = "" }, "database.user"},
		{"database name", func(c *config.Config) { c.Database.DBName = "" }, "database.db_name"},
		{"database conns", func(c *config.Config) { c.Database.MaxOpenConns = 0 }, "database.max_open_conns"},
		{"redis addr", func(c *config.Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"redis db", func(c *config.Config) { c.Redis.DB = -1 }, "redis.db"},
		{"kafka brokers", func(c *config.Config) { c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"kafka group", func(c *config.Config) { c.Kafka.GroupID = "" }, "kafka.group_id"},
		{"kafka topics", func(c *config.Config) { c.Kafka.ResultTopic = "" }, "kafka.request_topic"},
		{"kafka offset", func(c *config.Config) { c.Kafka.StartOffset = "middle" }, "kafka.start_offset"},
		{"opensearch addresses", func(c *config.Config) { c.OpenSearch.Addresses = nil }, "opensearch.addresses"},
		{"opensearch index", func(c *config.Config) { c.OpenSearch.IndexName = "" }, "opensearch.index_name"},
		{"minio endpoint", func(c *config.Config) { c.MinIO.Endpoint = "" }, "minio.endpoint"},
		{"minio bucket", func(c *config.Config) { c.MinIO.Bucket = "" }, "minio.bucket"},
		{"engine workers", func(c *config.Config) { c.Engine.Workers = -1 }, "engine.workers"},
		{"engine max recs", func(c *config.Config) { c.Engine.MaxRecommendations = 0 }, "engine.max_recommendations"},
		{"engine max offers", func(c *config.Config) { c.Engine.MaxOffersPerCustomer = 0 }, "engine.max_offers_per_customer"},
		{"engine discount", func(c *config.Config) { c.Engine.MaxDiscountRate = 1.5 }, "engine.max_discount_rate"},
		{"engine discount above ceiling", func(c *config.Config) { c.Engine.MaxDiscountRate = 0.6 }, "engine.max_discount_rate"},
		{"engine min score", func(c *config.Config) { c.Engine.MinLeadScore = 101 }, "engine.min_lead_score"},
		{"engine batch timeout", func(c *config.Config) { c.Engine.BatchTimeout = time.Millisecond }, "engine.batch_timeout"},
		{"engine max pending", func(c *config.Config) { c.Engine.MaxPending = -1 }, "engine.max_pending"},
		{"spend tiers", func(c *config.Config) { c.Engine.Market.BudgetThreshold = 700 }, "spend tiers"},
		{"data tiers", func(c *config.Config) { c.Engine.Market.StandardDataGB = 60 }, "standard_data_gb"},
		{"churn threshold", func(c *config.Config) { c.Engine.Market.ChurnRiskThreshold = 2 }, "churn_risk_threshold"},
		{"worker concurrency", func(c *config.Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"worker retries", func(c *config.Config) { c.Worker.MaxRetries = -1 }, "worker.max_retries"},
		{"log level", func(c *config.Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate_DisabledAdaptersSkipped(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Redis.Addr = ""
	cfg.Kafka.Brokers = nil
	cfg.MinIO.Bucket = ""
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()
	d := config.DatabaseConfig{
		Host: "db", Port: 5433, User: "rev", Password: "p@ss", DBName: "catalog", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://rev:p%40ss@db:5433/catalog?sslmode=disable", d.DSN())
}

func TestServerConfig_Addr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0.0.0.0:8080", config.ServerConfig{Host: "0.0.0.0", Port: 8080}.Addr())
}
