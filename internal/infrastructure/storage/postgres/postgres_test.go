package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"deadlock", &pgconn.PgError{Code: pgDeadlockDetected, TableName: "debts"}, apperror.CodeConcurrentModification},
		{"serialization", &pgconn.PgError{Code: pgSerializationFailure}, apperror.CodeConcurrentModification},
		{"lock not available", fmt.Errorf("lock: %w", &pgconn.PgError{Code: pgLockNotAvailable}), apperror.CodeConcurrentModification},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation, TableName: "tracked_units"}, apperror.CodeDuplicate},
		{"check", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "debts_quantity_range"}, apperror.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapError(tt.err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
			var pgErr *pgconn.PgError
			assert.True(t, errors.As(err, &pgErr), "cause is kept")
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, MapError(nil))

	appErr := apperror.NewOverReturn("d", "2", "1")
	assert.Same(t, appErr, MapError(appErr))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, MapError(plain))

	other := &pgconn.PgError{Code: "42P01"}
	assert.Equal(t, error(other), MapError(other))
}

func TestMapError_Retryable(t *testing.T) {
	err := MapError(&pgconn.PgError{Code: pgDeadlockDetected})
	assert.True(t, apperror.IsRetryable(err))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, Backoff(0))
	assert.Equal(t, 30*time.Second, Backoff(1))
	assert.Equal(t, time.Minute, Backoff(2))
	assert.Equal(t, 4*time.Minute, Backoff(4))
	assert.Equal(t, time.Hour, Backoff(20))
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/ledger?sslmode=disable", migrateURL("postgres://u:p@db:5432/ledger?sslmode=disable"))
	assert.Equal(t, "pgx5://db/ledger", migrateURL("postgresql://db/ledger"))
	assert.Equal(t, "pgx5://db/ledger", migrateURL("pgx5://db/ledger"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/ledger")
	assert.Equal(t, "ispledger", cfg.ApplicationName)
	assert.Greater(t, cfg.MaxConns, cfg.MinConns)
}
