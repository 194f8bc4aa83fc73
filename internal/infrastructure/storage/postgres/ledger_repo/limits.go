package ledger_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/infrastructure/storage/postgres"
)

const limitsTable = "technician_debt_limits"

// LimitRepo stores per-technician debt limit overrides.
type LimitRepo struct {
	base
}

var _ debtpolicy.LimitProvider = (*LimitRepo)(nil)

func NewLimitRepo(txm *postgres.TxManager) *LimitRepo {
	return &LimitRepo{base: newBase(txm)}
}

// LimitOverride returns nil when the technician has no override.
func (r *LimitRepo) LimitOverride(ctx context.Context, technicianID string) (*types.Money, error) {
	q := r.builder.Select("debt_limit").From(limitsTable).Where(squirrel.Eq{"technician_id": technicianID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build limit query: %w", err)
	}

	var limit decimal.Decimal
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("limit override %s: %w", technicianID, err))
	}
	return &limit, nil
}

// SetLimit upserts the override.
func (r *LimitRepo) SetLimit(ctx context.Context, technicianID string, limit types.Money) error {
	if limit.IsNegative() {
		return apperror.NewValidation("debt limit cannot be negative").WithDetail("field", "debtLimit")
	}
	q := r.builder.Insert(limitsTable).
		Columns("technician_id", "debt_limit", "updated_at").
		Values(technicianID, limit, squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (technician_id) DO UPDATE SET debt_limit = EXCLUDED.debt_limit, updated_at = NOW()")
	_, err := r.exec(ctx, q, "technician_debt_limit")
	return err
}
