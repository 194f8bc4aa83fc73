package checkout_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain"
	"ispledger/internal/domain/checkout"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/notify"
	"ispledger/internal/infrastructure/storage/memory"
)

const tech = "tech-1"

func setup(t *testing.T, cfg debtpolicy.Config) (*domain.Services, *memory.Store, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	svc, store := memory.NewServices(cfg, rec)
	return svc, store, rec
}

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got)
}

func TestCheckout_BulkReservesAndCreatesDebt(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := setup(t, debtpolicy.DefaultConfig())
	wh := id.New()
	asset := store.SeedBulkAsset(ctx, "CONN-RJ45", types.MustMoney("50000"), types.NewQuantity(10))

	res, err := svc.Checkout.Checkout(ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  wh,
		Lines:        []checkout.Line{{AssetID: asset.ID, Quantity: types.NewQuantity(3)}},
	})
	require.NoError(t, err)
	require.Len(t, res.DebtIDs, 1)

	co := res.Checkout
	assert.NotEmpty(t, co.Number)
	assertMoney(t, "150000", co.TotalValue)
	assert.False(t, co.ExceedLimit)
	assert.Equal(t, checkout.ApprovalNotRequired, co.ApprovalStatus)

	a, err := svc.Inventory.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(7), a.AvailableQuantity)

	d, err := svc.Ledger.GetDebt(ctx, res.DebtIDs[0])
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(3), d.QuantityTaken)
	assert.Equal(t, types.NewQuantity(3), d.CurrentDebtQuantity)
	assertMoney(t, "150000", d.TotalDebtValue)
	assert.Equal(t, ledger.DebtActive, d.Status)
	require.NotNil(t, d.CheckoutID)
	assert.Equal(t, co.ID, *d.CheckoutID)

	assert.Equal(t, []notify.EventType{notify.EventCheckoutCreated}, rec.Types())

	stored, err := svc.Checkout.Get(ctx, co.ID)
	require.NoError(t, err)
	assert.Equal(t, res.DebtIDs, stored.DebtIDs)
}

func TestCheckout_TrackedAndCable(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, debtpolicy.DefaultConfig())
	wh := id.New()
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	picked := store.SeedUnit(ctx, router, inventory.UnitAvailable, &wh, 0)
	cable := store.SeedCableAsset(ctx, "FO-2C", types.MustMoney("5000"))
	reel := store.SeedUnit(ctx, cable, inventory.UnitAvailable, &wh, types.NewQuantity(305))

	res, err := svc.Checkout.Checkout(ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  wh,
		Lines: []checkout.Line{
			{AssetID: router.ID},
			{AssetID: cable.ID, TrackedUnitID: &reel.ID},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.DebtIDs, 2)
	assertMoney(t, "1675000", res.Checkout.TotalValue)

	unitDebt, err := svc.Ledger.GetDebt(ctx, res.DebtIDs[0])
	require.NoError(t, err)
	require.NotNil(t, unitDebt.TrackedUnitID)
	assert.Equal(t, picked.ID, *unitDebt.TrackedUnitID)
	assert.Equal(t, types.NewQuantity(1), unitDebt.QuantityTaken)
	assert.False(t, unitDebt.LengthDenominated)

	reelDebt, err := svc.Ledger.GetDebt(ctx, res.DebtIDs[1])
	require.NoError(t, err)
	assert.True(t, reelDebt.LengthDenominated)
	assert.Equal(t, types.NewQuantity(305), reelDebt.QuantityTaken)
	assertMoney(t, "1525000", reelDebt.TotalDebtValue)

	for _, unitID := range []id.ID{picked.ID, reel.ID} {
		u, err := svc.Inventory.GetUnit(ctx, unitID)
		require.NoError(t, err)
		assert.Equal(t, inventory.UnitLoaned, u.Status)
		assert.Nil(t, u.WarehouseID)
	}
}

func TestCheckout_ExceedingLimitFlagsButSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := setup(t, debtpolicy.DefaultConfig())
	wh := id.New()
	olt := store.SeedBulkAsset(ctx, "OLT-CARD", types.MustMoney("1900000"), types.NewQuantity(2))
	onu := store.SeedBulkAsset(ctx, "ONU", types.MustMoney("300000"), types.NewQuantity(5))

	_, err := svc.Checkout.Checkout(ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  wh,
		Lines:        []checkout.Line{{AssetID: olt.ID, Quantity: types.NewQuantity(1)}},
	})
	require.NoError(t, err)

	ev, err := svc.Policy.Evaluate(ctx, tech, types.MustMoney("300000"))
	require.NoError(t, err)
	assert.True(t, ev.Exceeds)
	assertMoney(t, "2200000", ev.NewTotal)

	res, err := svc.Checkout.Checkout(ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  wh,
		Lines:        []checkout.Line{{AssetID: onu.ID, Quantity: types.NewQuantity(1)}},
	})
	require.NoError(t, err)

	co := res.Checkout
	assert.True(t, co.ExceedLimit)
	assert.True(t, co.RequiresApproval)
	assert.Equal(t, checkout.ApprovalPending, co.ApprovalStatus)
	assertMoney(t, "1900000", co.CurrentDebt)
	assertMoney(t, "2000000", co.DebtLimit)
	assert.Contains(t, rec.Types(), notify.EventCheckoutLimitExceeded)

	outstanding, err := svc.Ledger.OutstandingDebt(ctx, tech)
	require.NoError(t, err)
	assertMoney(t, "2200000", outstanding)
}

func TestCheckout_ApprovalSettingOff(t *testing.T) {
	ctx := context.Background()
	cfg := debtpolicy.DefaultConfig()
	cfg.RequireApprovalAboveLimit = false
	svc, store, _ := setup(t, cfg)
	asset := store.SeedBulkAsset(ctx, "OLT-CARD", types.MustMoney("2500000"), types.NewQuantity(1))

	res, err := svc.Checkout.Checkout(ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  id.New(),
		Lines:        []checkout.Line{{AssetID: asset.ID, Quantity: types.NewQuantity(1)}},
	})
	require.NoError(t, err)
	assert.True(t, res.Checkout.ExceedLimit)
	assert.False(t, res.Checkout.RequiresApproval)
	assert.Equal(t, checkout.ApprovalNotRequired, res.Checkout.ApprovalStatus)
}

func TestCheckout_LimitOverride(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, debtpolicy.DefaultConfig())
	asset := store.SeedBulkAsset(ctx, "CLIP", types.MustMoney("100"), types.NewQuantity(10))
	require.NoError(t, store.Limits().SetLimit(ctx, tech, types.MustMoney("250")))

	res, err := svc.Checkout.Checkout(ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  id.New(),
		Lines:        []checkout.Line{{AssetID: asset.ID, Quantity: types.NewQuantity(3)}},
	})
	require.NoError(t, err)
	assert.True(t, res.Checkout.ExceedLimit)
	assertMoney(t, "250", res.Checkout.DebtLimit)
}

func TestCheckout_FailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, store, rec := setup(t, debtpolicy.DefaultConfig())
	wh := id.New()
	bulk := store.SeedBulkAsset(ctx, "CONN-RJ45", types.MustMoney("500"), types.NewQuantity(10))
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	free := store.SeedUnit(ctx, router, inventory.UnitAvailable, &wh, 0)
	busy := store.SeedUnit(ctx, router, inventory.UnitLoaned, nil, 0)

	tests := []struct {
		name  string
		lines []checkout.Line
		code  string
	}{
		{
			name: "unit already loaned",
			lines: []checkout.Line{
				{AssetID: bulk.ID, Quantity: types.NewQuantity(4)},
				{AssetID: router.ID, TrackedUnitID: &free.ID},
				{AssetID: router.ID, TrackedUnitID: &busy.ID},
			},
			code: apperror.CodeAssetNotAvailable,
		},
		{
			name: "not enough stock",
			lines: []checkout.Line{
				{AssetID: router.ID, TrackedUnitID: &free.ID},
				{AssetID: bulk.ID, Quantity: types.NewQuantity(11)},
			},
			code: apperror.CodeInsufficientStock,
		},
		{
			name: "no unit left to pick",
			lines: []checkout.Line{
				{AssetID: router.ID, TrackedUnitID: &free.ID},
				{AssetID: router.ID},
			},
			code: apperror.CodeAssetNotAvailable,
		},
		{
			name:  "unknown asset",
			lines: []checkout.Line{{AssetID: id.New(), Quantity: types.NewQuantity(1)}},
			code:  apperror.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Checkout.Checkout(ctx, checkout.Request{TechnicianID: tech, WarehouseID: wh, Lines: tt.lines})
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)

			a, err := svc.Inventory.GetAsset(ctx, bulk.ID)
			require.NoError(t, err)
			assert.Equal(t, types.NewQuantity(10), a.AvailableQuantity)

			u, err := svc.Inventory.GetUnit(ctx, free.ID)
			require.NoError(t, err)
			assert.Equal(t, inventory.UnitAvailable, u.Status)

			debts, err := svc.Ledger.ListDebts(ctx, ledger.DebtFilter{TechnicianID: ptr(tech)})
			require.NoError(t, err)
			assert.Empty(t, debts)

			list, err := svc.Checkout.List(ctx, checkout.Filter{})
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
	assert.Empty(t, rec.Events)
}

func TestCheckout_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, debtpolicy.DefaultConfig())
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	bulk := store.SeedBulkAsset(ctx, "CLIP", types.MustMoney("10"), types.NewQuantity(10))
	unitID := id.New()

	tests := []struct {
		name string
		req  checkout.Request
	}{
		{"no technician", checkout.Request{WarehouseID: id.New(), Lines: []checkout.Line{{AssetID: bulk.ID}}}},
		{"no lines", checkout.Request{TechnicianID: tech, WarehouseID: id.New()}},
		{"zero bulk quantity", checkout.Request{TechnicianID: tech, WarehouseID: id.New(), Lines: []checkout.Line{{AssetID: bulk.ID}}}},
		{"two of a tracked unit", checkout.Request{TechnicianID: tech, WarehouseID: id.New(), Lines: []checkout.Line{{AssetID: router.ID, Quantity: types.NewQuantity(2)}}}},
		{"same unit twice", checkout.Request{TechnicianID: tech, WarehouseID: id.New(), Lines: []checkout.Line{
			{AssetID: router.ID, TrackedUnitID: &unitID},
			{AssetID: router.ID, TrackedUnitID: &unitID},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Checkout.Checkout(ctx, tt.req)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}
}

func TestApproveReject(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, debtpolicy.DefaultConfig())
	big := store.SeedBulkAsset(ctx, "OLT-CARD", types.MustMoney("2500000"), types.NewQuantity(3))
	small := store.SeedBulkAsset(ctx, "CLIP", types.MustMoney("10"), types.NewQuantity(3))

	take := func(technicianID string, assetID id.ID) *checkout.Checkout {
		res, err := svc.Checkout.Checkout(ctx, checkout.Request{
			TechnicianID: technicianID,
			WarehouseID:  id.New(),
			Lines:        []checkout.Line{{AssetID: assetID, Quantity: types.NewQuantity(1)}},
		})
		require.NoError(t, err)
		return res.Checkout
	}

	pending := take("tech-a", big.ID)
	approved, err := svc.Checkout.Approve(ctx, pending.ID, "seasonal rollout")
	require.NoError(t, err)
	assert.Equal(t, checkout.ApprovalApproved, approved.ApprovalStatus)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.ApprovalNotes)

	_, err = svc.Checkout.Reject(ctx, pending.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	rejected, err := svc.Checkout.Reject(ctx, take("tech-b", big.ID).ID, "")
	require.NoError(t, err)
	assert.Equal(t, checkout.ApprovalRejected, rejected.ApprovalStatus)
	assert.Nil(t, rejected.ApprovalNotes)

	_, err = svc.Checkout.Approve(ctx, take("tech-c", small.ID).ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	list, err := svc.Checkout.List(ctx, checkout.Filter{ApprovalStatus: ptr(checkout.ApprovalApproved)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)
}

func ptr[T any](v T) *T { return &v }
