// Package bootstrap opens the backing stores named by the configuration and
// assembles the recommendation service on top of them.  It is shared by the
// apiserver and worker binaries; every adapter is optional and a disabled
// one simply leaves its sink unset.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/Revenue-Intelligence/internal/intelligence/common"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

const connectTimeout = 30 * time.Second

// Infrastructure holds the opened adapters.  Nil fields are disabled.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
	Pipeline  common.PipelineMetrics

	DB       *postgres.Connection
	Products offer.ProductRepository
	Catalog  *offer.Catalog

	Redis *redis.Client
	Cache redis.Cache

	Producer  *kafka.Producer
	Publisher *kafka.RecommendationPublisher

	Search   *opensearch.Client
	Indexer  *opensearch.Indexer
	Searcher *opensearch.Searcher

	Storage *minio.MinIOClient
	Exports *minio.ExportStore

	component string
	closers   []func() error
}

// Open connects every enabled adapter in dependency order.  component names
// the binary in event envelopes and logs.  On failure the adapters opened
// so far are closed again.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger, component string) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config:    cfg,
		Logger:    logging.OrNop(logger),
		component: component,
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"metrics", infra.openMetrics},
		{"postgres", infra.openCatalog},
		{"redis", infra.openCache},
		{"kafka", infra.openPublisher},
		{"opensearch", infra.openSearch},
		{"minio", infra.openExports},
	}
	for _, step := range steps {
		stepCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := step.fn(stepCtx)
		cancel()
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	infra.Logger.Info("infrastructure ready",
		logging.Component(component),
		logging.Int("products", infra.Catalog.Len()),
		logging.Bool("postgres", infra.DB != nil),
		logging.Bool("redis", infra.Cache != nil),
		logging.Bool("kafka", infra.Producer != nil),
		logging.Bool("opensearch", infra.Search != nil),
		logging.Bool("minio", infra.Storage != nil))
	return infra, nil
}

func (i *Infrastructure) openMetrics(context.Context) error {
	mc := i.Config.Metrics
	if !mc.Enabled {
		i.Collector = prometheus.NewNoopCollector()
		i.Metrics = prometheus.NewAppMetrics(i.Collector)
		i.Pipeline = common.NewNoopPipelineMetrics()
		return nil
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            mc.Namespace,
		EnableGoMetrics:      mc.EnableGoMetrics,
		EnableProcessMetrics: mc.EnableProcessMetrics,
		ConstLabels:          map[string]string{"service": i.component},
	}, i.Logger)
	if err != nil {
		return err
	}
	pipeline, err := common.NewPrometheusPipelineMetrics(collector.Registerer())
	if err != nil {
		return err
	}
	i.Collector = collector
	i.Metrics = prometheus.NewAppMetrics(collector)
	i.Pipeline = pipeline
	return nil
}

func (i *Infrastructure) openCatalog(ctx context.Context) error {
	dc := i.Config.Database
	if !dc.Enabled {
		i.Catalog = offer.MustDefaultCatalog()
		return nil
	}

	conn, err := OpenDatabase(dc, i.Logger)
	if err != nil {
		return err
	}
	i.DB = conn
	i.closers = append(i.closers, conn.Close)

	if dc.AutoMigrate {
		if err := conn.RunMigrations(ctx); err != nil {
			return err
		}
	}

	i.Products = newMeteredProducts(repositories.NewPostgresProductRepo(conn, i.Logger), i.Metrics)
	if dc.SeedCatalog {
		n, err := i.Products.Seed(ctx, offer.DefaultProducts())
		if err != nil {
			return err
		}
		if n > 0 {
			i.Logger.Info("seeded product catalog", logging.Int("inserted", n))
		}
	}

	catalog, err := offer.LoadCatalog(ctx, i.Products)
	if err != nil {
		return err
	}
	i.Catalog = catalog
	return nil
}

func (i *Infrastructure) openCache(context.Context) error {
	rc := i.Config.Redis
	if !rc.Enabled {
		return nil
	}
	client, err := redis.NewClient(&redis.RedisConfig{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Redis = client
	i.closers = append(i.closers, client.Close)
	i.Cache = redis.NewRedisCache(client, i.Logger,
		redis.WithPrefix(rc.KeyPrefix),
		redis.WithDefaultTTL(rc.DefaultTTL))
	return nil
}

func (i *Infrastructure) openPublisher(context.Context) error {
	kc := i.Config.Kafka
	if !kc.Enabled {
		return nil
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		ClientID:     kc.ClientID,
		MaxRetries:   kc.MaxAttempts,
		BatchSize:    kc.BatchSize,
		BatchTimeout: kc.BatchTimeout,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Producer = producer
	i.closers = append(i.closers, producer.Close)
	i.Publisher = kafka.NewRecommendationPublisher(producer, kc.ResultTopic, i.component, i.Logger)
	return nil
}

func (i *Infrastructure) openSearch(ctx context.Context) error {
	oc := i.Config.OpenSearch
	if !oc.Enabled {
		return nil
	}
	client, err := opensearch.NewClient(opensearch.ClientConfig{
		Addresses:          oc.Addresses,
		Username:           oc.User,
		Password:           oc.Password,
		InsecureSkipVerify: oc.InsecureSkipVerify,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Search = client
	i.closers = append(i.closers, client.Close)

	i.Indexer = opensearch.NewIndexer(client, opensearch.IndexerConfig{IndexName: oc.IndexName}, i.Logger)
	if err := i.Indexer.EnsureIndex(ctx); err != nil {
		return err
	}
	i.Searcher = opensearch.NewSearcher(client, i.Indexer.IndexName(), i.Logger)
	return nil
}

func (i *Infrastructure) openExports(context.Context) error {
	mc := i.Config.MinIO
	if !mc.Enabled {
		return nil
	}
	client, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        mc.Endpoint,
		AccessKeyID:     mc.AccessKey,
		SecretAccessKey: mc.SecretKey,
		UseSSL:          mc.UseSSL,
		Bucket:          mc.Bucket,
		Prefix:          mc.Prefix,
		PresignExpiry:   mc.PresignExpiry,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Storage = client
	i.closers = append(i.closers, client.Close)
	i.Exports = minio.NewExportStore(client, i.Logger)
	return nil
}

// OpenDatabase connects to the catalog database.  It is also used by the
// CLI's db commands, which run without the rest of the infrastructure.
func OpenDatabase(dc config.DatabaseConfig, logger logging.Logger) (*postgres.Connection, error) {
	if !dc.Enabled {
		return nil, errors.Configuration("database is disabled (set database.enabled)")
	}
	return postgres.NewConnection(postgres.PostgresConfig{
		Host:            dc.Host,
		Port:            dc.Port,
		Database:        dc.DBName,
		Username:        dc.User,
		Password:        dc.Password,
		SSLMode:         dc.SSLMode,
		MaxOpenConns:    dc.MaxOpenConns,
		MaxIdleConns:    dc.MaxIdleConns,
		ConnMaxLifetime: dc.ConnMaxLifetime,
	}, logger)
}

// NewService builds the engine over the loaded catalog and attaches every
// enabled sink.  opts are applied after the defaults.
func (i *Infrastructure) NewService(opts ...recommendation.ServiceOption) (recommendation.Service, error) {
	engine, err := recommendation.NewEngine(
		recommendation.SettingsFromConfig(i.Config.Engine),
		i.Catalog,
		recommendation.WithLogger(i.Logger),
		recommendation.WithMetrics(i.Pipeline),
	)
	if err != nil {
		return nil, err
	}

	svcOpts := []recommendation.ServiceOption{recommendation.WithServiceMetrics(i.Pipeline)}
	if i.Cache != nil {
		svcOpts = append(svcOpts, recommendation.WithCache(newMeteredCache(i.Cache, i.Metrics), i.Config.Redis.DefaultTTL))
	}
	if i.Publisher != nil {
		svcOpts = append(svcOpts, recommendation.WithPublisher(i.Publisher))
	}
	if i.Indexer != nil {
		svcOpts = append(svcOpts, recommendation.WithIndexer(newMeteredIndexer(i.Indexer, i.Metrics)))
	}
	if i.Exports != nil {
		svcOpts = append(svcOpts, recommendation.WithExportStore(newMeteredExports(i.Exports, i.Metrics)))
	}
	return recommendation.NewService(engine, i.Logger, append(svcOpts, opts...)...), nil
}

// Close releases the adapters in reverse order of opening.
func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			i.Logger.Warn("close failed", logging.Err(err))
		}
	}
	i.closers = nil
}
