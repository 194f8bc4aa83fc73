// Package ledger_repo provides the PostgreSQL repositories of the ledger.
//
// Every repository reads the active transaction from the context through
// TxManager, so calls made inside RunInTransaction share one pgx.Tx.
// Row locks are taken with SELECT ... FOR UPDATE; callers lock debts before
// tracked units and tracked units before assets.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"ispledger/internal/core/apperror"
	"ispledger/internal/infrastructure/storage/postgres"
)

// defaultListLimit caps list queries without an explicit limit.
const defaultListLimit = 100

// base carries what every repository needs.
type base struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func newBase(txm *postgres.TxManager) base {
	return base{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (b base) querier(ctx context.Context) postgres.Querier {
	return b.txm.GetQuerier(ctx)
}

// get scans a single row into dst; no row becomes NotFound(entity, key).
func (b base) get(ctx context.Context, dst any, q squirrel.Sqlizer, entity string, key any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", entity, err)
	}
	if err := pgxscan.Get(ctx, b.querier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, key)
		}
		return postgres.MapError(fmt.Errorf("get %s: %w", entity, err))
	}
	return nil
}

// list scans all rows into dst (a pointer to a slice).
func (b base) list(ctx context.Context, dst any, q squirrel.Sqlizer, entity string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", entity, err)
	}
	if err := pgxscan.Select(ctx, b.querier(ctx), dst, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("list %s: %w", entity, err))
	}
	return nil
}

// exec runs a statement and returns the affected row count.
func (b base) exec(ctx context.Context, q squirrel.Sqlizer, entity string) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s statement: %w", entity, err)
	}
	tag, err := b.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("write %s: %w", entity, err))
	}
	return tag.RowsAffected(), nil
}

// execOne runs a statement that must touch exactly one row.
func (b base) execOne(ctx context.Context, q squirrel.Sqlizer, entity string, key any) error {
	n, err := b.exec(ctx, q, entity)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound(entity, key)
	}
	return nil
}

// insert writes every db-tagged field of v listed in columns.
func (b base) insert(ctx context.Context, table string, columns []string, v any, entity string) error {
	_, err := b.exec(ctx, b.builder.Insert(table).Columns(columns...).Values(rowValues(columns, v)...), entity)
	return err
}

// rowValues lays out v's db fields in column order.
func rowValues(columns []string, v any) []any {
	data := postgres.StructToMap(v)
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = data[c]
	}
	return out
}

func paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit <= 0 {
		limit = defaultListLimit
	}
	q = q.Limit(uint64(limit))
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}
