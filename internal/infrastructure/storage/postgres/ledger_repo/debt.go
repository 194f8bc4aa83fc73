package ledger_repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/infrastructure/storage/postgres"
)

const (
	debtsTable           = "debts"
	settlementsTable     = "settlements"
	settlementLinesTable = "settlement_lines"
)

var (
	debtColumns           = postgres.ExtractDBColumns[ledger.Debt]()
	settlementColumns     = postgres.ExtractDBColumns[ledger.Settlement]()
	settlementLineColumns = postgres.ExtractDBColumns[ledger.SettlementLine]()
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	base
	batch *postgres.BatchInserter
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates the debt and settlement repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		base:  newBase(txm),
		batch: postgres.NewBatchInserter(txm),
	}
}

// LockTechnician takes a transaction-scoped advisory lock keyed by the technician.
func (r *LedgerRepo) LockTechnician(ctx context.Context, technicianID string) error {
	if _, err := r.querier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", technicianID); err != nil {
		return postgres.MapError(fmt.Errorf("lock technician %s: %w", technicianID, err))
	}
	return nil
}

// CreateDebts queues one insert per debt and sends them in a single batch.
func (r *LedgerRepo) CreateDebts(ctx context.Context, debts []*ledger.Debt) error {
	if len(debts) == 0 {
		return nil
	}
	queries := make([]postgres.BatchQuery, 0, len(debts))
	for _, d := range debts {
		sql, args, err := r.builder.Insert(debtsTable).
			Columns(debtColumns...).
			Values(rowValues(debtColumns, d)...).
			ToSql()
		if err != nil {
			return fmt.Errorf("build debt insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return postgres.MapError(fmt.Errorf("insert debts: %w", err))
	}
	return nil
}

func (r *LedgerRepo) selectDebts() squirrel.SelectBuilder {
	return r.builder.Select(debtColumns...).From(debtsTable)
}

func (r *LedgerRepo) GetDebt(ctx context.Context, debtID id.ID) (*ledger.Debt, error) {
	var d ledger.Debt
	if err := r.get(ctx, &d, r.selectDebts().Where(squirrel.Eq{"id": debtID}), "debt", debtID); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDebtsForUpdate locks the rows in ID order so concurrent callers
// acquire them in the same sequence.
func (r *LedgerRepo) GetDebtsForUpdate(ctx context.Context, debtIDs []id.ID) ([]*ledger.Debt, error) {
	if len(debtIDs) == 0 {
		return nil, nil
	}
	q := r.selectDebts().
		Where(squirrel.Eq{"id": debtIDs}).
		OrderBy("id").
		Suffix("FOR UPDATE")

	var out []*ledger.Debt
	if err := r.list(ctx, &out, q, "debt"); err != nil {
		return nil, err
	}

	found := make(map[id.ID]bool, len(out))
	for _, d := range out {
		found[d.ID] = true
	}
	for _, want := range debtIDs {
		if !found[want] {
			return nil, apperror.NewNotFound("debt", want)
		}
	}
	return out, nil
}

func (r *LedgerRepo) OpenDebtsForUnit(ctx context.Context, unitID id.ID) ([]*ledger.Debt, error) {
	q := r.selectDebts().
		Where(squirrel.Eq{
			"tracked_unit_id": unitID,
			"status":          statusStrings(ledger.OpenStatuses),
		}).
		OrderBy("id")

	var out []*ledger.Debt
	if err := r.list(ctx, &out, q, "debt"); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LedgerRepo) UpdateDebt(ctx context.Context, d *ledger.Debt) error {
	q := r.builder.Update(debtsTable).
		Set("current_debt_quantity", d.CurrentDebtQuantity).
		Set("current_debt_value", d.CurrentDebtValue).
		Set("status", d.Status).
		Set("write_off_reason", d.WriteOffReason).
		Set("updated_at", d.UpdatedAt).
		Where(squirrel.Eq{"id": d.ID})
	return r.execOne(ctx, q, "debt", d.ID)
}

func (r *LedgerRepo) ListDebts(ctx context.Context, f ledger.DebtFilter) ([]*ledger.Debt, error) {
	var out []*ledger.Debt
	if err := r.list(ctx, &out, r.debtListQuery(f), "debt"); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LedgerRepo) debtListQuery(f ledger.DebtFilter) squirrel.SelectBuilder {
	q := r.selectDebts().OrderBy("id")
	if f.TechnicianID != nil {
		q = q.Where(squirrel.Eq{"technician_id": *f.TechnicianID})
	}
	if f.AssetID != nil {
		q = q.Where(squirrel.Eq{"asset_id": *f.AssetID})
	}
	if f.TrackedUnitID != nil {
		q = q.Where(squirrel.Eq{"tracked_unit_id": *f.TrackedUnitID})
	}
	if f.CheckoutID != nil {
		q = q.Where(squirrel.Eq{"checkout_id": *f.CheckoutID})
	}
	if len(f.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": statusStrings(f.Statuses)})
	}
	return paginate(q, f.Limit, f.Offset)
}

func (r *LedgerRepo) OutstandingDebt(ctx context.Context, technicianID string) (types.Money, error) {
	sql, args, err := r.outstandingQuery(technicianID).ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build outstanding debt query: %w", err)
	}
	var total decimal.Decimal
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return types.Zero(), postgres.MapError(fmt.Errorf("outstanding debt %s: %w", technicianID, err))
	}
	return total, nil
}

func (r *LedgerRepo) outstandingQuery(technicianID string) squirrel.SelectBuilder {
	return r.builder.Select("COALESCE(SUM(current_debt_value), 0)").
		From(debtsTable).
		Where(squirrel.Eq{
			"technician_id": technicianID,
			"status":        statusStrings(ledger.OpenStatuses),
		})
}

// CreateSettlement writes the header and its lines.
func (r *LedgerRepo) CreateSettlement(ctx context.Context, s *ledger.Settlement) error {
	if err := r.insert(ctx, settlementsTable, settlementColumns, s, "settlement"); err != nil {
		return err
	}
	if len(s.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(settlementLinesTable).Columns(settlementLineColumns...)
	for i := range s.Lines {
		s.Lines[i].SettlementID = s.ID
		if id.IsNil(s.Lines[i].ID) {
			s.Lines[i].ID = id.New()
		}
		q = q.Values(rowValues(settlementLineColumns, &s.Lines[i])...)
	}
	_, err := r.exec(ctx, q, "settlement_line")
	return err
}

func (r *LedgerRepo) GetSettlement(ctx context.Context, settlementID id.ID) (*ledger.Settlement, error) {
	var s ledger.Settlement
	q := r.builder.Select(settlementColumns...).From(settlementsTable).Where(squirrel.Eq{"id": settlementID})
	if err := r.get(ctx, &s, q, "settlement", settlementID); err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, []*ledger.Settlement{&s}); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *LedgerRepo) ListSettlements(ctx context.Context, f ledger.SettlementFilter) ([]*ledger.Settlement, error) {
	q := r.builder.Select(settlementColumns...).From(settlementsTable).OrderBy("created_at", "id")
	if f.TechnicianID != nil {
		q = q.Where(squirrel.Eq{"technician_id": *f.TechnicianID})
	}

	var out []*ledger.Settlement
	if err := r.list(ctx, &out, paginate(q, f.Limit, f.Offset), "settlement"); err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadLines fills Lines for every settlement with a single query.
func (r *LedgerRepo) loadLines(ctx context.Context, settlements []*ledger.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}
	byID := make(map[id.ID]*ledger.Settlement, len(settlements))
	ids := make([]id.ID, 0, len(settlements))
	for _, s := range settlements {
		byID[s.ID] = s
		ids = append(ids, s.ID)
		s.Lines = []ledger.SettlementLine{}
	}

	q := r.builder.Select(settlementLineColumns...).
		From(settlementLinesTable).
		Where(squirrel.Eq{"settlement_id": ids}).
		OrderBy("settlement_id", "debt_id")

	var lines []ledger.SettlementLine
	if err := r.list(ctx, &lines, q, "settlement_line"); err != nil {
		return err
	}
	for _, l := range lines {
		if s, ok := byID[l.SettlementID]; ok {
			s.Lines = append(s.Lines, l)
		}
	}
	for _, s := range settlements {
		slices.SortFunc(s.Lines, func(a, b ledger.SettlementLine) int { return id.Compare(a.DebtID, b.DebtID) })
	}
	return nil
}
