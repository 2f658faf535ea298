// Package config defines all configuration structures for the Revenue-Intelligence
// service.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`

	// CORSAllowedOrigins lists the dashboard origins allowed to call the API.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	// RateLimitRPS is the sustained per-client request rate; 0 disables
	// rate limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	Port           int  `mapstructure:"port"`
	MaxRecvMsgSize int  `mapstructure:"max_recv_msg_size"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the product catalog.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SeedCatalog     bool          `mapstructure:"seed_catalog"`
}

// DSN renders a postgres:// URL accepted by both pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig holds Redis connection parameters for the recommendation cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ClientID        string        `mapstructure:"client_id"`
	RequestTopic    string        `mapstructure:"request_topic"`
	ResultTopic     string        `mapstructure:"result_topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	StartOffset     string        `mapstructure:"start_offset"` // "earliest" | "latest"
}

// OpenSearchConfig holds the recommendation index connection parameters.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	IndexName          string   `mapstructure:"index_name"`
}

// MinIOConfig holds export bundle storage parameters.
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Prefix        string        `mapstructure:"prefix"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Path                 string `mapstructure:"path"`
	Namespace            string `mapstructure:"namespace"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
}

// MarketConfig carries the market calibration thresholds used by feature
// extraction and segmentation.
type MarketConfig struct {
	AverageMonthlySpend float64 `mapstructure:"average_monthly_spend"`
	PremiumThreshold    float64 `mapstructure:"premium_threshold"`
	BudgetThreshold     float64 `mapstructure:"budget_threshold"`
	HighUsageDataGB     float64 `mapstructure:"high_usage_data_gb"`
	StandardDataGB      float64 `mapstructure:"standard_data_gb"`
	HighVoiceMinutes    float64 `mapstructure:"high_voice_minutes"`
	ChurnRiskThreshold  float64 `mapstructure:"churn_risk_threshold"`
	UpsellThreshold     float64 `mapstructure:"upsell_threshold"`
}

// EngineConfig carries the recommendation engine knobs.
type EngineConfig struct {
	// Workers bounds the per-customer pool; 0 means runtime.NumCPU().
	Workers              int           `mapstructure:"workers"`
	MaxRecommendations   int           `mapstructure:"max_recommendations"`
	MaxOffersPerCustomer int           `mapstructure:"max_offers_per_customer"`
	ItemTimeout          time.Duration `mapstructure:"item_timeout"`
	BatchTimeout         time.Duration `mapstructure:"batch_timeout"`
	// MaxPending caps the customers in flight across concurrent batches.
	MaxPending           int           `mapstructure:"max_pending"`
	MaxDiscountRate      float64       `mapstructure:"max_discount_rate"`
	MinLeadScore         float64       `mapstructure:"min_lead_score"`
	MaxPrioritizedLeads  int           `mapstructure:"max_prioritized_leads"`
	Market               MarketConfig  `mapstructure:"market"`
}

// WorkerConfig holds the Kafka worker execution parameters.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	ExportBatch  bool          `mapstructure:"export_batch"`
	IndexResults bool          `mapstructure:"index_results"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure shared by revintel, apiserver
// and worker.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	GRPC       GRPCConfig        `mapstructure:"grpc"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch"`
	MinIO      MinIOConfig       `mapstructure:"minio"`
	Log        logging.LogConfig `mapstructure:"log"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Engine     EngineConfig      `mapstructure:"engine"`
	Worker     WorkerConfig      `mapstructure:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and
// returns the first error found.  Adapters that are disabled are not checked.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}
	if c.GRPC.Enabled && c.GRPC.Port == c.Server.Port {
		return fmt.Errorf("config: grpc.port and server.port must differ, both are %d", c.Server.Port)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required")
		}
		if c.Database.MaxOpenConns < 1 {
			return fmt.Errorf("config: database.max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
		if c.Kafka.RequestTopic == "" || c.Kafka.ResultTopic == "" {
			return fmt.Errorf("config: kafka.request_topic and kafka.result_topic are required")
		}
		switch c.Kafka.StartOffset {
		case "earliest", "latest":
		default:
			return fmt.Errorf("config: kafka.start_offset %q is invalid; expected earliest|latest", c.Kafka.StartOffset)
		}
	}

	if c.OpenSearch.Enabled {
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: opensearch.addresses must contain at least one address")
		}
		if c.OpenSearch.IndexName == "" {
			return fmt.Errorf("config: opensearch.index_name is required")
		}
	}

	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required")
		}
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.bucket is required")
		}
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("config: worker.max_retries must be >= 0, got %d", c.Worker.MaxRetries)
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// Validate checks the engine knobs.  Market thresholds are checked again, in
// more detail, when the engine builds its parameter tables.
func (e EngineConfig) Validate() error {
	if e.Workers < 0 {
		return fmt.Errorf("config: engine.workers must be >= 0, got %d", e.Workers)
	}
	if e.MaxPending < 0 {
		return fmt.Errorf("config: engine.max_pending must be >= 0, got %d", e.MaxPending)
	}
	if e.BatchTimeout > 0 && e.BatchTimeout < e.ItemTimeout {
		return fmt.Errorf("config: engine.batch_timeout %s is shorter than item_timeout %s", e.BatchTimeout, e.ItemTimeout)
	}
	if e.MaxRecommendations < 1 {
		return fmt.Errorf("config: engine.max_recommendations must be >= 1, got %d", e.MaxRecommendations)
	}
	if e.MaxOffersPerCustomer < 1 {
		return fmt.Errorf("config: engine.max_offers_per_customer must be >= 1, got %d", e.MaxOffersPerCustomer)
	}
	if e.MaxDiscountRate <= 0 || e.MaxDiscountRate > MaxDiscountCeiling {
		return fmt.Errorf("config: engine.max_discount_rate %.2f must be in (0, %.2f]", e.MaxDiscountRate, MaxDiscountCeiling)
	}
	if e.MinLeadScore < 0 || e.MinLeadScore > 100 {
		return fmt.Errorf("config: engine.min_lead_score %.2f must be in [0, 100]", e.MinLeadScore)
	}
	m := e.Market
	if !(m.BudgetThreshold < m.AverageMonthlySpend && m.AverageMonthlySpend < m.PremiumThreshold) {
		return fmt.Errorf("config: engine.market spend tiers must satisfy budget < average < premium")
	}
	if m.StandardDataGB >= m.HighUsageDataGB {
		return fmt.Errorf("config: engine.market.standard_data_gb must be below high_usage_data_gb")
	}
	if m.ChurnRiskThreshold <= 0 || m.ChurnRiskThreshold > 1 {
		return fmt.Errorf("config: engine.market.churn_risk_threshold must be in (0, 1]")
	}
	return nil
}
