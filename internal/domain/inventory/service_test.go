package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (*inventory.Service, *memory.Store) {
	t.Helper()
	svc, store := memory.NewServices(debtpolicy.DefaultConfig(), nil)
	return svc.Inventory, store
}

func TestReserveRelease(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	asset := store.SeedBulkAsset(ctx, "CONN-RJ45", types.MustMoney("500"), types.NewQuantity(10))

	got, err := inv.Reserve(ctx, asset.ID, types.NewQuantity(3))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(7), got.AvailableQuantity)

	_, err = inv.Reserve(ctx, asset.ID, types.NewQuantity(8))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	stored, err := inv.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(7), stored.AvailableQuantity)

	// Never above total.
	got, err = inv.Release(ctx, asset.ID, types.NewQuantity(5))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), got.AvailableQuantity)
	assert.Equal(t, types.NewQuantity(10), got.TotalQuantity)
}

func TestReserve_RejectsTrackedAndNonPositive(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))

	_, err := inv.Reserve(ctx, router.ID, types.NewQuantity(1))
	assert.True(t, apperror.IsValidation(err))

	bulk := store.SeedBulkAsset(ctx, "CLIP", types.MustMoney("10"), types.NewQuantity(5))
	_, err = inv.Reserve(ctx, bulk.ID, 0)
	assert.True(t, apperror.IsValidation(err))
}

func TestReceiveStock(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	asset := store.SeedBulkAsset(ctx, "SPLITTER", types.MustMoney("2000"), types.NewQuantity(4))

	_, err := inv.Reserve(ctx, asset.ID, types.NewQuantity(4))
	require.NoError(t, err)

	got, err := inv.ReceiveStock(ctx, asset.ID, types.NewQuantity(6))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), got.TotalQuantity)
	assert.Equal(t, types.NewQuantity(6), got.AvailableQuantity)
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	asset := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	wh := id.New()
	unit := store.SeedUnit(ctx, asset, inventory.UnitAvailable, &wh, 0)

	t.Run("wrong current status", func(t *testing.T) {
		_, err := inv.Transition(ctx, unit.ID, []inventory.UnitStatus{inventory.UnitLoaned}, inventory.UnitAvailable, inventory.Unchanged())
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
	})

	t.Run("move not in table", func(t *testing.T) {
		_, err := inv.Transition(ctx, unit.ID, nil, inventory.UnitInRepair, inventory.Unchanged())
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
	})

	t.Run("loan clears warehouse", func(t *testing.T) {
		got, err := inv.Transition(ctx, unit.ID, []inventory.UnitStatus{inventory.UnitAvailable}, inventory.UnitLoaned, inventory.InField())
		require.NoError(t, err)
		assert.Equal(t, inventory.UnitLoaned, got.Status)
		assert.Nil(t, got.WarehouseID)

		assert.NotEmpty(t, store.Audit().Entries(ctx, unit.ID))
	})
}

func TestFindAvailableTrackedUnit(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	asset := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	whA, whB := id.New(), id.New()
	unit := store.SeedUnit(ctx, asset, inventory.UnitAvailable, &whA, 0)
	loaned := store.SeedUnit(ctx, asset, inventory.UnitLoaned, nil, 0)

	got, err := inv.FindAvailableTrackedUnit(ctx, asset.ID, whA, nil)
	require.NoError(t, err)
	assert.Equal(t, unit.ID, got.ID)

	_, err = inv.FindAvailableTrackedUnit(ctx, asset.ID, whB, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeAssetNotAvailable))

	_, err = inv.FindAvailableTrackedUnit(ctx, asset.ID, whA, &loaned.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeAssetNotAvailable))

	other := store.SeedTrackedAsset(ctx, "ROUTER-Z", types.MustMoney("90000"))
	_, err = inv.FindAvailableTrackedUnit(ctx, other.ID, whA, &unit.ID)
	assert.True(t, apperror.IsValidation(err))
}

func TestConsumeLength(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	cable := store.SeedCableAsset(ctx, "FO-2C", types.MustMoney("5000"))
	reel := store.SeedUnit(ctx, cable, inventory.UnitLoaned, nil, types.NewQuantity(305))

	got, err := inv.ConsumeLength(ctx, reel.ID, types.NewQuantity(120))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(185), got.RemainingLength())
	assert.Equal(t, inventory.UnitLoaned, got.Status)

	_, err = inv.ConsumeLength(ctx, reel.ID, types.NewQuantity(200))
	assert.True(t, apperror.HasCode(err, apperror.CodeLengthExceedsRemaining))

	got, err = inv.ConsumeLength(ctx, reel.ID, types.NewQuantity(185))
	require.NoError(t, err)
	assert.True(t, got.RemainingLength().IsZero())
	assert.Equal(t, inventory.UnitInstalled, got.Status)
}

func TestConsumeLength_RequiresLoanedReel(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	wh := id.New()
	cable := store.SeedCableAsset(ctx, "FO-2C", types.MustMoney("5000"))
	reel := store.SeedUnit(ctx, cable, inventory.UnitAvailable, &wh, types.NewQuantity(100))
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	unit := store.SeedUnit(ctx, router, inventory.UnitLoaned, nil, 0)

	_, err := inv.ConsumeLength(ctx, reel.ID, types.NewQuantity(10))
	assert.True(t, apperror.HasCode(err, apperror.CodeAssetNotAvailable))

	_, err = inv.ConsumeLength(ctx, unit.ID, types.NewQuantity(1))
	assert.True(t, apperror.IsValidation(err))
}

func TestAuditReelLength(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	wh := id.New()
	cable := store.SeedCableAsset(ctx, "FO-2C", types.MustMoney("5000"))
	inStock := store.SeedUnit(ctx, cable, inventory.UnitAvailable, &wh, types.NewQuantity(305))
	loaned := store.SeedUnit(ctx, cable, inventory.UnitLoaned, nil, types.NewQuantity(305))

	got, err := inv.AuditReelLength(ctx, inStock.ID, types.NewQuantity(298))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(298), got.RemainingLength())

	_, err = inv.AuditReelLength(ctx, inStock.ID, types.NewQuantity(400))
	assert.True(t, apperror.IsValidation(err))

	_, err = inv.AuditReelLength(ctx, loaned.ID, types.NewQuantity(300))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestRegisterUnit(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	wh := id.New()
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	cable := store.SeedCableAsset(ctx, "FO-2C", types.MustMoney("5000"))
	bulk := store.SeedBulkAsset(ctx, "CLIP", types.MustMoney("10"), types.NewQuantity(5))
	serial := "ZTE-0001"

	t.Run("no identifier", func(t *testing.T) {
		err := inv.RegisterUnit(ctx, &inventory.TrackedUnit{AssetID: router.ID, WarehouseID: &wh})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("bulk asset", func(t *testing.T) {
		err := inv.RegisterUnit(ctx, &inventory.TrackedUnit{AssetID: bulk.ID, SerialNumber: &serial, WarehouseID: &wh})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("cable without length", func(t *testing.T) {
		err := inv.RegisterUnit(ctx, &inventory.TrackedUnit{AssetID: cable.ID, SerialNumber: &serial, WarehouseID: &wh})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("reel starts full", func(t *testing.T) {
		length := types.NewQuantity(305)
		qr := "QR-REEL-1"
		unit := &inventory.TrackedUnit{AssetID: cable.ID, QRCode: &qr, WarehouseID: &wh, InitialLength: &length}
		require.NoError(t, inv.RegisterUnit(ctx, unit))

		got, err := inv.GetUnit(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.UnitAvailable, got.Status)
		assert.Equal(t, length, got.RemainingLength())
	})
}

func TestDispatchAndReceiveTransfer(t *testing.T) {
	ctx := context.Background()
	inv, store := setup(t)
	whA, whB := id.New(), id.New()
	router := store.SeedTrackedAsset(ctx, "ONT-X1", types.MustMoney("150000"))
	unit := store.SeedUnit(ctx, router, inventory.UnitAvailable, &whA, 0)

	got, err := inv.DispatchUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitInTransit, got.Status)

	_, err = inv.DispatchUnit(ctx, unit.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	got, err = inv.ReceiveTransfer(ctx, unit.ID, whB)
	require.NoError(t, err)
	assert.Equal(t, inventory.UnitAvailable, got.Status)
	require.NotNil(t, got.WarehouseID)
	assert.Equal(t, whB, *got.WarehouseID)

	units, err := inv.ListUnits(ctx, inventory.UnitFilter{WarehouseID: &whB})
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestCreateAsset(t *testing.T) {
	ctx := context.Background()
	inv, _ := setup(t)

	bulk := inventory.NewAsset("DROP-CLAMP", "Drop clamp", inventory.TypeConsumable, types.MustMoney("75"))
	bulk.TotalQuantity = types.NewQuantity(40)
	require.NoError(t, inv.CreateAsset(ctx, bulk))

	got, err := inv.GetAsset(ctx, bulk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(40), got.AvailableQuantity)
	assert.Equal(t, inventory.UoMPiece, got.UnitOfMeasure)

	dup := inventory.NewAsset("DROP-CLAMP", "Another", inventory.TypeConsumable, types.MustMoney("1"))
	err = inv.CreateAsset(ctx, dup)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	tracked := inventory.NewAsset("ONT-Z", "ONT", inventory.TypeFixed, types.MustMoney("90000"))
	tracked.Tracked = true
	tracked.TotalQuantity = types.NewQuantity(1)
	assert.True(t, apperror.IsValidation(inv.CreateAsset(ctx, tracked)))

	cable := inventory.NewAsset("FIBER-2C", "Drop fiber", inventory.TypeConsumable, types.MustMoney("12"))
	cable.Cable = true
	assert.True(t, apperror.IsValidation(inv.CreateAsset(ctx, cable)))
}
