package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"ispledger/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// MapError converts driver errors into application errors. Lock conflicts
// become ConcurrentModification so the caller can retry; constraint
// violations become conflicts. Application errors pass through.
func MapError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return apperror.NewConcurrentModification(pgErr.TableName, pgErr.ConstraintName).WithCause(err)
	case pgUniqueViolation:
		return apperror.NewDuplicate(pgErr.TableName, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
	case pgForeignKeyViolation, pgCheckViolation:
		return apperror.NewConflict(pgErr.Message).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return err
}
