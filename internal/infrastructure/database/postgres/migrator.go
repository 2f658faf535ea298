package postgres

import (
	"context"
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationsTable records applied versions.  It is prefixed so the service
// can share a database with other schemas.
const MigrationsTable = "revintel_schema_migrations"

// ─────────────────────────────────────────────────────────────────────────────
// Migrator construction
// ─────────────────────────────────────────────────────────────────────────────

// newMigrator binds the embedded migrations to a dedicated connection taken
// from the pool.  Closing the returned migrator releases that connection
// only; the pool stays open.
func (c *Connection) newMigrator(ctx context.Context) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open embedded migrations")
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to acquire migration connection")
	}
	drv, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		_ = drv.Close()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Up
// ─────────────────────────────────────────────────────────────────────────────

// RunMigrations applies every pending migration.  An up-to-date schema is
// not an error.
func (c *Connection) RunMigrations(ctx context.Context) error {
	m, err := c.newMigrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}

	version, dirty, _ := m.Version()
	c.logger.Info("Database migrations applied",
		logging.Int("version", int(version)),
		logging.Bool("dirty", dirty))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Rollback
// ─────────────────────────────────────────────────────────────────────────────

// Rollback reverts the last steps migrations.
func (c *Connection) Rollback(ctx context.Context, steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("steps must be greater than 0").WithDetailf("got %d", steps)
	}

	m, err := c.newMigrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeConflict, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations").WithDetailf("steps=%d", steps)
	}
	c.logger.Warn("Database migrations rolled back", logging.Int("steps", steps))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Status
// ─────────────────────────────────────────────────────────────────────────────

// MigrationStatus returns the applied version (0 when none) and whether a
// previous migration left the schema dirty.
func (c *Connection) MigrationStatus(ctx context.Context) (version uint, dirty bool, err error) {
	m, err := c.newMigrator(ctx)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}

// ForceVersion marks version as applied without running it.  It is the
// recovery path for a dirty schema; -1 clears the version.
func (c *Connection) ForceVersion(ctx context.Context, version int) error {
	m, err := c.newMigrator(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version").WithDetailf("version=%d", version)
	}
	c.logger.Warn("Database migration version forced", logging.Int("version", version))
	return nil
}
