package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080
	DefaultGRPCPort   = 9090

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "revintel"
	DefaultDBMaxOpenConns = 10

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "revintel:"
	DefaultCacheTTL       = 15 * time.Minute

	DefaultKafkaBroker     = "localhost:9092"
	DefaultKafkaGroupID    = "revintel-worker"
	DefaultRequestTopic    = "revintel.customer.batches"
	DefaultResultTopic     = "revintel.recommendations"
	DefaultDeadLetterTopic = "revintel.customer.batches.dlq"

	DefaultOpenSearchAddr  = "http://localhost:9200"
	DefaultOpenSearchIndex = "revintel-recommendations"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "revintel-exports"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "revintel"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMaxRecommendations   = 50
	DefaultMaxOffersPerCustomer = 3
	DefaultItemTimeout          = 5 * time.Second
	DefaultBatchTimeout         = 5 * time.Minute
	DefaultMaxPending           = 10000
	DefaultMaxDiscountRate      = 0.30
	DefaultMinLeadScore         = 20
	DefaultMaxPrioritizedLeads  = 100

	DefaultWorkerConcurrency = 4

	// MaxDiscountCeiling bounds engine.max_discount_rate.
	MaxDiscountCeiling = 0.30
)

// DefaultMarket returns the market calibration used when none is configured.
func DefaultMarket() MarketConfig {
	return MarketConfig{
		AverageMonthlySpend: 650,
		PremiumThreshold:    1000,
		BudgetThreshold:     300,
		HighUsageDataGB:     50,
		StandardDataGB:      20,
		HighVoiceMinutes:    500,
		ChurnRiskThreshold:  0.7,
		UpsellThreshold:     0.6,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Explicit values always win.  It must run after unmarshalling and before
// Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 20 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 8 << 20
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(2 * cfg.Server.RateLimitRPS)
	}

	// ── gRPC ──────────────────────────────────────────────────────────────────
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = DefaultGRPCPort
	}
	if cfg.GRPC.MaxRecvMsgSize == 0 {
		cfg.GRPC.MaxRecvMsgSize = 16 << 20
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns / 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultCacheTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "revintel"
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultResultTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultDeadLetterTopic
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = 100
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}
	if cfg.Kafka.MaxAttempts == 0 {
		cfg.Kafka.MaxAttempts = 3
	}
	if cfg.Kafka.StartOffset == "" {
		cfg.Kafka.StartOffset = "earliest"
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddr}
	}
	if cfg.OpenSearch.IndexName == "" {
		cfg.OpenSearch.IndexName = DefaultOpenSearchIndex
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.Prefix == "" {
		cfg.MinIO.Prefix = "exports/"
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = time.Hour
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.MaxRecommendations == 0 {
		cfg.Engine.MaxRecommendations = DefaultMaxRecommendations
	}
	if cfg.Engine.MaxOffersPerCustomer == 0 {
		cfg.Engine.MaxOffersPerCustomer = DefaultMaxOffersPerCustomer
	}
	if cfg.Engine.ItemTimeout == 0 {
		cfg.Engine.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Engine.BatchTimeout == 0 {
		cfg.Engine.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.Engine.MaxPending == 0 {
		cfg.Engine.MaxPending = DefaultMaxPending
	}
	if cfg.Engine.MaxDiscountRate == 0 {
		cfg.Engine.MaxDiscountRate = DefaultMaxDiscountRate
	}
	if cfg.Engine.MinLeadScore == 0 {
		cfg.Engine.MinLeadScore = DefaultMinLeadScore
	}
	if cfg.Engine.MaxPrioritizedLeads == 0 {
		cfg.Engine.MaxPrioritizedLeads = DefaultMaxPrioritizedLeads
	}
	applyMarketDefaults(&cfg.Engine.Market)

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 500 * time.Millisecond
	}
}

func applyMarketDefaults(m *MarketConfig) {
	d := DefaultMarket()
	if m.AverageMonthlySpend == 0 {
		m.AverageMonthlySpend = d.AverageMonthlySpend
	}
	if m.PremiumThreshold == 0 {
		m.PremiumThreshold = d.PremiumThreshold
	}
	if m.BudgetThreshold == 0 {
		m.BudgetThreshold = d.BudgetThreshold
	}
	if m.HighUsageDataGB == 0 {
		m.HighUsageDataGB = d.HighUsageDataGB
	}
	if m.StandardDataGB == 0 {
		m.StandardDataGB = d.StandardDataGB
	}
	if m.HighVoiceMinutes == 0 {
		m.HighVoiceMinutes = d.HighVoiceMinutes
	}
	if m.ChurnRiskThreshold == 0 {
		m.ChurnRiskThreshold = d.ChurnRiskThreshold
	}
	if m.UpsellThreshold == 0 {
		m.UpsellThreshold = d.UpsellThreshold
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
