package cli

import (
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/domain/offer"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

func stubDatabase(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	orig := openDatabase
	openDatabase = func(config.DatabaseConfig, logging.Logger) (*postgres.Connection, error) {
		return postgres.NewConnectionWithDB(db, nil), nil
	}
	t.Cleanup(func() {
		openDatabase = orig
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return mock
}

func TestDBCmd_DatabaseDisabled(t *testing.T) {
	t.Setenv("REVINTEL_DATABASE_ENABLED", "false")
	res := runCLI(t, newTestBackend(t), "", "db", "status")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrCodeConfiguration))
}

func TestDBCmd_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"force non-numeric", []string{"db", "force", "latest"}},
		{"force below -1", []string{"db", "force", "--", "-2"}},
		{"rollback zero steps", []string{"db", "rollback", "--steps", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, newTestBackend(t), "", tt.args...)
			assert.True(t, errors.IsCode(res.err, errors.ErrCodeBadRequest), "got %v", res.err)
		})
	}
}

func TestDBSeedCmd(t *testing.T) {
	mock := stubDatabase(t)
	products := offer.DefaultProducts()

	mock.ExpectBegin()
	for i := range products {
		affected := int64(1)
		if i == 0 {
			affected = 0
		}
		mock.ExpectExec(`INSERT INTO products .* ON CONFLICT \(id\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, affected))
	}
	mock.ExpectCommit()
	mock.ExpectClose()

	res := runCLI(t, newTestBackend(t), "", "db", "seed")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, fmt.Sprintf("OK: seeded %d of %d default products", len(products)-1, len(products)))
}

func TestMigrationStatusView(t *testing.T) {
	v := migrationStatusView{Version: 3, Dirty: true}
	assert.Equal(t, "schema version 3 (dirty)", v.String())
	assert.Equal(t, [][]string{{"3", "true"}}, v.TableRows())
	assert.Equal(t, "schema version 1", migrationStatusView{Version: 1}.String())
}
