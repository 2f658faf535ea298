//go:build integration

// Integration tests against a real PostgreSQL started with testcontainers.
// They require Docker and are gated behind the "integration" build tag.
package repositories_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
)

// startPostgres launches a PostgreSQL 16 container and returns a migrated
// connection.
func startPostgres(t *testing.T) *postgres.Connection {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("revintel_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	conn, err := postgres.NewConnection(postgres.PostgresConfig{
		Host:     host,
		Port:     portNum,
		Database: "revintel_test",
		Username: "test",
		Password: "test",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.RunMigrations(ctx))
	return conn
}

func TestMigrations_Lifecycle(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	version, dirty, err := conn.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Already up to date.
	require.NoError(t, conn.RunMigrations(ctx))

	require.NoError(t, conn.Rollback(ctx, 1))
	version, _, err = conn.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)

	var exists bool
	require.NoError(t, conn.DB().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'products')`).Scan(&exists))
	assert.False(t, exists)

	// The pool must survive the migrator being closed.
	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.RunMigrations(ctx))
}

func TestProductRepo_SeedAndLoadCatalog(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewPostgresProductRepo(conn, nil)

	_, err := offer.LoadCatalog(ctx, repo)
	require.Error(t, err)

	defaults := offer.DefaultProducts()
	n, err := repo.Seed(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, len(defaults), n)

	n, err = repo.Seed(ctx, defaults)
	require.NoError(t, err)
	assert.Zero(t, n, "reseeding leaves existing rows alone")

	catalog, err := offer.LoadCatalog(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, len(defaults), catalog.Len())

	products := catalog.Products()
	for i := 1; i < len(products); i++ {
		assert.Less(t, products[i-1].ID, products[i].ID)
	}
}

func TestProductRepo_Upsert(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()
	repo := repositories.NewPostgresProductRepo(conn, nil)

	p := offer.DefaultProducts()[0]
	require.NoError(t, repo.Upsert(ctx, p))

	p.MonthlyPrice = decimal.RequireFromString("42.50")
	require.NoError(t, repo.Upsert(ctx, p))

	products, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].MonthlyPrice.Equal(decimal.RequireFromString("42.50")))

	var price string
	require.NoError(t, conn.DB().QueryRowContext(ctx,
		`SELECT monthly_price::text FROM products WHERE id = $1`, p.ID).Scan(&price))
	assert.Equal(t, "42.50", price)
}
