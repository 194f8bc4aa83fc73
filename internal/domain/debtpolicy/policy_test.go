package debtpolicy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/types"
)

type staticDebts map[string]types.Money

func (s staticDebts) OutstandingDebt(_ context.Context, technicianID string) (types.Money, error) {
	if v, ok := s[technicianID]; ok {
		return v, nil
	}
	return types.Zero(), nil
}

type failingDebts struct{}

func (failingDebts) OutstandingDebt(context.Context, string) (types.Money, error) {
	return types.Zero(), errors.New("db down")
}

type staticLimits map[string]types.Money

func (s staticLimits) LimitOverride(_ context.Context, technicianID string) (*types.Money, error) {
	if v, ok := s[technicianID]; ok {
		return &v, nil
	}
	return nil, nil
}

func (s staticLimits) SetLimit(_ context.Context, technicianID string, limit types.Money) error {
	s[technicianID] = limit
	return nil
}

type readOnlyLimits struct{}

func (readOnlyLimits) LimitOverride(context.Context, string) (*types.Money, error) { return nil, nil }

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		current    int64
		additional int64
		limit      int64
		exceeds    bool
		newTotal   int64
		credit     int64
	}{
		{"under limit", 500_000, 300_000, 2_000_000, false, 800_000, 1_500_000},
		{"exactly at limit", 1_700_000, 300_000, 2_000_000, false, 2_000_000, 300_000},
		{"over limit", 1_900_000, 300_000, 2_000_000, true, 2_200_000, 100_000},
		{"already over", 2_500_000, 0, 2_000_000, true, 2_500_000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Compute(types.NewMoneyFromInt(tt.current), types.NewMoneyFromInt(tt.additional), types.NewMoneyFromInt(tt.limit))
			assert.Equal(t, tt.exceeds, ev.Exceeds)
			assert.True(t, types.NewMoneyFromInt(tt.newTotal).Equal(ev.NewTotal), "newTotal %s", ev.NewTotal)
			assert.True(t, types.NewMoneyFromInt(tt.credit).Equal(ev.AvailableCredit), "credit %s", ev.AvailableCredit)
		})
	}
}

func TestEvaluate_ScenarioD(t *testing.T) {
	p := New(DefaultConfig(), staticDebts{"tech-1": types.NewMoneyFromInt(1_900_000)})

	ev, err := p.Evaluate(context.Background(), "tech-1", types.NewMoneyFromInt(300_000))
	require.NoError(t, err)

	assert.True(t, ev.Exceeds)
	assert.True(t, types.NewMoneyFromInt(2_200_000).Equal(ev.NewTotal))
	assert.True(t, p.RequiresApproval(context.Background(), ev))
}

func TestEvaluate_LimitOverride(t *testing.T) {
	p := New(DefaultConfig(),
		staticDebts{"tech-1": types.NewMoneyFromInt(1_900_000)},
		WithLimitProvider(staticLimits{"tech-1": types.NewMoneyFromInt(5_000_000)}),
	)

	ev, err := p.Evaluate(context.Background(), "tech-1", types.NewMoneyFromInt(300_000))
	require.NoError(t, err)
	assert.False(t, ev.Exceeds)
	assert.True(t, types.NewMoneyFromInt(5_000_000).Equal(ev.Limit))

	other, err := p.Evaluate(context.Background(), "tech-2", types.Zero())
	require.NoError(t, err)
	assert.True(t, types.NewMoneyFromInt(2_000_000).Equal(other.Limit))
}

func TestEvaluate_SourceError(t *testing.T) {
	p := New(DefaultConfig(), failingDebts{})
	_, err := p.Evaluate(context.Background(), "tech-1", types.Zero())
	require.Error(t, err)
}

func TestRequiresApproval_SettingOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireApprovalAboveLimit = false
	p := New(cfg, staticDebts{})

	ev := Compute(types.NewMoneyFromInt(1_900_000), types.NewMoneyFromInt(300_000), cfg.DefaultLimit)
	assert.True(t, ev.Exceeds)
	assert.False(t, p.RequiresApproval(context.Background(), ev))
}

func TestRule(t *testing.T) {
	rule, err := NewRule("exceeds && new_total - limit > 100000.0")
	require.NoError(t, err)

	p := New(DefaultConfig(), staticDebts{}, WithRule(rule))
	limit := types.NewMoneyFromInt(2_000_000)

	slightly := Compute(types.NewMoneyFromInt(1_950_000), types.NewMoneyFromInt(100_000), limit)
	assert.True(t, slightly.Exceeds)
	assert.False(t, p.RequiresApproval(context.Background(), slightly))

	far := Compute(types.NewMoneyFromInt(1_900_000), types.NewMoneyFromInt(300_000), limit)
	assert.True(t, p.RequiresApproval(context.Background(), far))
}

func TestNewRule_Invalid(t *testing.T) {
	_, err := NewRule("exceeds &&")
	require.Error(t, err)

	_, err = NewRule("new_total + 1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must return bool")
}

func TestSetLimit(t *testing.T) {
	ctx := context.Background()
	limits := staticLimits{}
	p := New(DefaultConfig(), staticDebts{}, WithLimitProvider(limits))

	require.NoError(t, p.SetLimit(ctx, "tech-3", types.MustMoney("500000")))
	got, err := p.LimitFor(ctx, "tech-3")
	require.NoError(t, err)
	assert.True(t, types.MustMoney("500000").Equal(got))

	assert.True(t, apperror.IsValidation(p.SetLimit(ctx, "tech-3", types.MustMoney("-5"))))
	assert.True(t, apperror.IsValidation(p.SetLimit(ctx, "", types.MustMoney("5"))))

	readOnly := New(DefaultConfig(), staticDebts{}, WithLimitProvider(readOnlyLimits{}))
	err = readOnly.SetLimit(ctx, "tech-3", types.MustMoney("1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}
