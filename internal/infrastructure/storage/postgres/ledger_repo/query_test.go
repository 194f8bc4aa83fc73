package ledger_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/ledger"
)

func TestAvailableUnitQuery(t *testing.T) {
	repo := NewInventoryRepo(nil)
	asset, wh := id.New(), id.New()

	sql, args, err := repo.availableUnitQuery(asset, wh).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT id, asset_id,"), sql)
	assert.Contains(t, sql, "FROM tracked_units WHERE asset_id = $1 AND current_status = $2 AND current_warehouse_id = $3")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED"), sql)
	assert.Equal(t, []any{asset.String(), "available", wh.String()}, args)
}

func TestDebtListQuery(t *testing.T) {
	repo := NewLedgerRepo(nil)
	tech := "tech-1"

	t.Run("default page", func(t *testing.T) {
		sql, args, err := repo.debtListQuery(ledger.DebtFilter{}).ToSql()
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(sql, "FROM debts ORDER BY id LIMIT 100"), sql)
		assert.Empty(t, args)
	})

	t.Run("technician and statuses", func(t *testing.T) {
		f := ledger.DebtFilter{
			TechnicianID: &tech,
			Statuses:     ledger.OpenStatuses,
			Limit:        10,
			Offset:       20,
		}
		sql, args, err := repo.debtListQuery(f).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "WHERE technician_id = $1 AND status IN ($2,$3)")
		assert.True(t, strings.HasSuffix(sql, "LIMIT 10 OFFSET 20"), sql)
		assert.Equal(t, []any{"tech-1", "active", "partially_returned"}, args)
	})

	t.Run("checkout", func(t *testing.T) {
		co := id.New()
		sql, args, err := repo.debtListQuery(ledger.DebtFilter{CheckoutID: &co}).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "WHERE checkout_id = $1")
		assert.Equal(t, []any{co.String()}, args)
	})
}

func TestOutstandingQuery(t *testing.T) {
	repo := NewLedgerRepo(nil)

	sql, args, err := repo.outstandingQuery("tech-9").ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COALESCE(SUM(current_debt_value), 0) FROM debts WHERE status IN ($1,$2) AND technician_id = $3",
		sql)
	assert.Equal(t, []any{"active", "partially_returned", "tech-9"}, args)
}

func TestColumnsMatchSchema(t *testing.T) {
	assert.NotContains(t, settlementColumns, "lines")
	assert.NotContains(t, checkoutColumns, "debt_ids")
	assert.Contains(t, writeOffColumns, "debt_ids")
	assert.Equal(t, "id", debtColumns[0])
}

func TestRowValuesFollowColumnOrder(t *testing.T) {
	line := ledger.SettlementLine{ID: id.New(), SettlementID: id.New(), DebtID: id.New()}
	values := rowValues(settlementLineColumns, &line)

	require.Len(t, values, len(settlementLineColumns))
	for i, c := range settlementLineColumns {
		switch c {
		case "id":
			assert.Equal(t, line.ID, values[i])
		case "debt_id":
			assert.Equal(t, line.DebtID, values[i])
		}
	}
}

func TestPaginate(t *testing.T) {
	b := newBase(nil)
	sql, _, err := paginate(b.builder.Select("id").From("debts"), 0, 0).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM debts LIMIT 100", sql)

	sql, _, err = paginate(b.builder.Select("id").From("debts"), 5, 15).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM debts LIMIT 5 OFFSET 15", sql)
}
