package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "ispledger/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = m.val
	}
	return nil
}

// mockQuerier simulates sys_sequences keyed by the first argument.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
	err    error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	key := args[0].(string)
	switch {
	case strings.Contains(sql, "current_value + $2"):
		m.values[key] += args[1].(int64)
	case strings.Contains(sql, "current_value = $2"):
		m.values[key] = args[1].(int64)
	default:
		m.values[key]++
	}
	return &mockRow{val: m.values[key]}
}

var period = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	first, err := svc.GetNextNumber(ctx, corenumerator.SettlementConfig, nil, period)
	require.NoError(t, err)
	second, err := svc.GetNextNumber(ctx, corenumerator.SettlementConfig, nil, period)
	require.NoError(t, err)

	assert.Equal(t, "ST-2026-00001", first)
	assert.Equal(t, "ST-2026-00002", second)
	assert.Equal(t, int64(2), q.values["ST_2026"])
}

func TestGetNextNumber_StrictUsesCallerTransaction(t *testing.T) {
	tx, pool := newMockQuerier(), newMockQuerier()
	svc := NewWithTx(func(context.Context) Querier { return tx }, pool)

	_, err := svc.GetNextNumber(context.Background(), corenumerator.SettlementConfig, nil, period)
	require.NoError(t, err)

	assert.Equal(t, 1, tx.calls)
	assert.Zero(t, pool.calls)
}

func TestGetNextNumber_CachedReservesOnPool(t *testing.T) {
	tx, pool := newMockQuerier(), newMockQuerier()
	svc := NewWithTx(func(context.Context) Querier { return tx }, pool)
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}
	ctx := context.Background()

	num, err := svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "CO-2026-00001", num)
	assert.Zero(t, tx.calls)
	assert.Equal(t, int64(10), pool.values["CO_2026"])

	for i := 0; i < 9; i++ {
		_, err = svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, opts, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, pool.calls, "range of 10 served from memory")

	num, err = svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "CO-2026-00011", num)
	assert.Equal(t, int64(20), pool.values["CO_2026"])
}

func TestGetNextNumber_ResetsPerYear(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	_, err := svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, nil, period)
	require.NoError(t, err)
	next, err := svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, nil, period.AddDate(1, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, "CO-2027-00001", next)
}

func TestGetNextNumber_Error(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection refused")

	_, err := New(q).GetNextNumber(context.Background(), corenumerator.CheckoutConfig, nil, period)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CO_2026")
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}
	ctx := context.Background()

	_, err := svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, opts, period)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, corenumerator.CheckoutConfig, period, 100))

	num, err := svc.GetNextNumber(ctx, corenumerator.CheckoutConfig, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "CO-2026-00100", num)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		cfg  corenumerator.Config
		num  int64
		want string
	}{
		{"yearly", corenumerator.DefaultConfig("CO"), 17, "CO-2026-00017"},
		{"no year", corenumerator.Config{Prefix: "ST", PadWidth: 3}, 4, "ST-004"},
		{"default pad", corenumerator.Config{Prefix: "X"}, 1, "X-00001"},
		{"overflow pad", corenumerator.Config{Prefix: "X", PadWidth: 2}, 1234, "X-1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatNumber(tt.cfg, period, tt.num))
		})
	}
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(17), ParseNumber("CO-2026-00017"))
	assert.Equal(t, int64(-1), ParseNumber("CO-2026-"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}
