package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/Revenue-Intelligence/internal/bootstrap"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// openDatabase is replaced in tests.
var openDatabase = bootstrap.OpenDatabase

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the catalog database schema and seed data",
		Long: "db talks to the PostgreSQL catalog configured under database.*.\n" +
			"database.enabled must be true; --server is ignored.",
	}
	cmd.AddCommand(
		newDBMigrateCmd(),
		newDBRollbackCmd(),
		newDBStatusCmd(),
		newDBForceCmd(),
		newDBSeedCmd(),
	)
	return cmd
}

// withDatabase opens the catalog database for the duration of fn.
func withDatabase(cmd *cobra.Command, fn func(cliCtx *CLIContext, conn *postgres.Connection) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	conn, err := openDatabase(cliCtx.Config.Database, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(cliCtx, conn)
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(cliCtx *CLIContext, conn *postgres.Connection) error {
				ctx, cancel := commandContext(cmd, cliCtx)
				defer cancel()
				if err := conn.RunMigrations(ctx); err != nil {
					return err
				}
				return printMigrationStatus(cmd, cliCtx, conn)
			})
		},
	}
}

func newDBRollbackCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return errors.InvalidParam("--steps must be greater than 0").WithDetailf("got %d", steps)
			}
			return withDatabase(cmd, func(cliCtx *CLIContext, conn *postgres.Connection) error {
				ctx, cancel := commandContext(cmd, cliCtx)
				defer cancel()
				if err := conn.Rollback(ctx, steps); err != nil {
					return err
				}
				return printMigrationStatus(cmd, cliCtx, conn)
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	return cmd
}

func newDBStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(cliCtx *CLIContext, conn *postgres.Connection) error {
				return printMigrationStatus(cmd, cliCtx, conn)
			})
		},
	}
}

func newDBForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Mark a migration version as applied without running it",
		Long: "force clears a dirty schema after a failed migration has been repaired\n" +
			"by hand.  Use \"force -- -1\" to reset to no version.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < -1 {
				return errors.InvalidParam("version must be an integer >= -1").WithDetail(args[0])
			}
			return withDatabase(cmd, func(cliCtx *CLIContext, conn *postgres.Connection) error {
				ctx, cancel := commandContext(cmd, cliCtx)
				defer cancel()
				if err := conn.ForceVersion(ctx, version); err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("migration version forced to %d", version))
				return nil
			})
		},
	}
}

func newDBSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default product catalog, keeping existing products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(cliCtx *CLIContext, conn *postgres.Connection) error {
				ctx, cancel := commandContext(cmd, cliCtx)
				defer cancel()

				products := offer.DefaultProducts()
				n, err := repositories.NewPostgresProductRepo(conn, cliCtx.Logger).Seed(ctx, products)
				if err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("seeded %d of %d default products", n, len(products)))
				return nil
			})
		},
	}
}

type migrationStatusView struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (v migrationStatusView) String() string {
	if v.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", v.Version)
	}
	return fmt.Sprintf("schema version %d", v.Version)
}

func (v migrationStatusView) TableHeaders() []string { return []string{"VERSION", "DIRTY"} }

func (v migrationStatusView) TableRows() [][]string {
	return [][]string{{strconv.FormatUint(uint64(v.Version), 10), strconv.FormatBool(v.Dirty)}}
}

func printMigrationStatus(cmd *cobra.Command, cliCtx *CLIContext, conn *postgres.Connection) error {
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()
	version, dirty, err := conn.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationStatusView{Version: version, Dirty: dirty})
}
