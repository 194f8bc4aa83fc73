package installation_test

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
	"ispledger/internal/domain/installation"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/notify"
	"ispledger/internal/infrastructure/storage/memory"
)

const tech = "tech-1"

type fixture struct {
	ctx       context.Context
	svc       *domain.Services
	store     *memory.Store
	events    *notify.Recorder
	warehouse id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := &notify.Recorder{}
	svc, store := memory.NewServices(debtpolicy.DefaultConfig(), rec)
	return &fixture{ctx: context.Background(), svc: svc, store: store, events: rec, warehouse: id.New()}
}

// loan checks one line out to tech and returns its debt.
func (f *fixture) loan(t *testing.T, line checkout.Line) *ledger.Debt {
	t.Helper()
	res, err := f.svc.Checkout.Checkout(f.ctx, checkout.Request{
		TechnicianID: tech,
		WarehouseID:  f.warehouse,
		Lines:        []checkout.Line{line},
	})
	require.NoError(t, err)
	return f.debt(t, res.DebtIDs[0])
}

func (f *fixture) debt(t *testing.T, debtID id.ID) *ledger.Debt {
	t.Helper()
	d, err := f.svc.Ledger.GetDebt(f.ctx, debtID)
	require.NoError(t, err)
	return d
}

func (f *fixture) unit(t *testing.T, unitID id.ID) *inventory.TrackedUnit {
	t.Helper()
	u, err := f.svc.Inventory.GetUnit(f.ctx, unitID)
	require.NoError(t, err)
	return u
}

func (f *fixture) loanedUnit(t *testing.T, asset *inventory.Asset) (*inventory.TrackedUnit, *ledger.Debt) {
	t.Helper()
	u := f.store.SeedUnit(f.ctx, asset, inventory.UnitAvailable, &f.warehouse, 0)
	return u, f.loan(t, checkout.Line{AssetID: asset.ID, TrackedUnitID: &u.ID})
}

func installReq(d *ledger.Debt) installation.InstallRequest {
	return installation.InstallRequest{
		TicketID:          "TCK-1001",
		CustomerID:        "cust-1",
		ServiceLocationID: "loc-1",
		TechnicianID:      d.TechnicianID,
		AssetID:           d.AssetID,
		TrackedUnitID:     d.TrackedUnitID,
		SourceDebtID:      d.ID,
	}
}

func metres(n int64) *types.Quantity {
	q := types.NewQuantity(n)
	return &q
}

func condition(s inventory.UnitStatus) *inventory.UnitStatus { return &s }

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.True(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got)
}

func TestInstall_CableReel(t *testing.T) {
	f := newFixture(t)
	cable := f.store.SeedCableAsset(f.ctx, "FO-2C", types.MustMoney("5000"))
	reel := f.store.SeedUnit(f.ctx, cable, inventory.UnitAvailable, &f.warehouse, types.NewQuantity(305))
	debt := f.loan(t, checkout.Line{AssetID: cable.ID, TrackedUnitID: &reel.ID})

	req := installReq(debt)
	req.InstalledLength = metres(120)
	row, err := f.svc.Installation.Install(f.ctx, req)
	require.NoError(t, err)

	require.NotNil(t, row.InstalledLength)
	assert.Equal(t, types.NewQuantity(120), *row.InstalledLength)
	assert.Equal(t, installation.StatusInstalled, row.Status)
	assertMoney(t, "600000", row.TotalAssetValue)

	u := f.unit(t, reel.ID)
	assert.Equal(t, types.NewQuantity(185), u.RemainingLength())
	assert.Equal(t, inventory.UnitLoaned, u.Status)

	d := f.debt(t, debt.ID)
	assert.Equal(t, types.NewQuantity(185), d.CurrentDebtQuantity)
	assertMoney(t, "925000", d.CurrentDebtValue)
	assert.Equal(t, ledger.DebtPartiallyReturned, d.Status)

	t.Run("longer than the reel", func(t *testing.T) {
		req := installReq(debt)
		req.InstalledLength = metres(200)
		_, err := f.svc.Installation.Install(f.ctx, req)
		assert.True(t, apperror.HasCode(err, apperror.CodeLengthExceedsRemaining))
		assert.Equal(t, types.NewQuantity(185), f.unit(t, reel.ID).RemainingLength())
		assert.Equal(t, types.NewQuantity(185), f.debt(t, debt.ID).CurrentDebtQuantity)
	})

	t.Run("rest of the reel", func(t *testing.T) {
		req := installReq(debt)
		req.InstalledLength = metres(185)
		_, err := f.svc.Installation.Install(f.ctx, req)
		require.NoError(t, err)

		u := f.unit(t, reel.ID)
		assert.True(t, u.RemainingLength().IsZero())
		assert.Equal(t, inventory.UnitInstalled, u.Status)
		assert.Equal(t, ledger.DebtFullySettled, f.debt(t, debt.ID).Status)

		_, err = f.svc.Installation.Install(f.ctx, req)
		assert.True(t, apperror.HasCode(err, apperror.CodeDebtNotReturnable))
	})

	t.Run("length required", func(t *testing.T) {
		other := f.store.SeedUnit(f.ctx, cable, inventory.UnitAvailable, &f.warehouse, types.NewQuantity(100))
		d := f.loan(t, checkout.Line{AssetID: cable.ID, TrackedUnitID: &other.ID})
		_, err := f.svc.Installation.Install(f.ctx, installReq(d))
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestInstall_TrackedUnit(t *testing.T) {
	f := newFixture(t)
	router := f.store.SeedTrackedAsset(f.ctx, "ONT-X1", types.MustMoney("150000"))
	unit, debt := f.loanedUnit(t, router)

	row, err := f.svc.Installation.Install(f.ctx, installReq(debt))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(1), row.QuantityInstalled)
	assertMoney(t, "150000", row.TotalAssetValue)
	require.NotNil(t, row.TicketID)
	assert.Equal(t, "TCK-1001", *row.TicketID)

	assert.Equal(t, inventory.UnitInstalled, f.unit(t, unit.ID).Status)
	assert.Equal(t, ledger.DebtFullySettled, f.debt(t, debt.ID).Status)
	assert.Contains(t, f.events.Types(), notify.EventInstallationCreated)

	list, err := f.svc.Installation.List(f.ctx, installation.Filter{CustomerID: &row.CustomerID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInstall_BulkPartial(t *testing.T) {
	f := newFixture(t)
	clip := f.store.SeedBulkAsset(f.ctx, "CLIP", types.MustMoney("200"), types.NewQuantity(50))
	debt := f.loan(t, checkout.Line{AssetID: clip.ID, Quantity: types.NewQuantity(20)})

	req := installReq(debt)
	req.Quantity = types.NewQuantity(12)
	row, err := f.svc.Installation.Install(f.ctx, req)
	require.NoError(t, err)
	assertMoney(t, "2400", row.TotalAssetValue)

	d := f.debt(t, debt.ID)
	assert.Equal(t, types.NewQuantity(8), d.CurrentDebtQuantity)
	assert.Equal(t, ledger.DebtPartiallyReturned, d.Status)

	req.Quantity = types.NewQuantity(9)
	_, err = f.svc.Installation.Install(f.ctx, req)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientDebtQty))

	req.Quantity = 0
	_, err = f.svc.Installation.Install(f.ctx, req)
	assert.True(t, apperror.IsValidation(err))
}

func TestInstall_Rejected(t *testing.T) {
	f := newFixture(t)
	router := f.store.SeedTrackedAsset(f.ctx, "ONT-X1", types.MustMoney("150000"))
	clip := f.store.SeedBulkAsset(f.ctx, "CLIP", types.MustMoney("200"), types.NewQuantity(50))
	unit, debt := f.loanedUnit(t, router)

	tests := []struct {
		name   string
		mutate func(r *installation.InstallRequest)
		code   string
	}{
		{"missing customer", func(r *installation.InstallRequest) { r.CustomerID = "" }, apperror.CodeValidation},
		{"other technician", func(r *installation.InstallRequest) { r.TechnicianID = "tech-2" }, apperror.CodeDebtOwnershipMismatch},
		{"asset mismatch", func(r *installation.InstallRequest) { r.AssetID = clip.ID }, apperror.CodeValidation},
		{"unit mismatch", func(r *installation.InstallRequest) { other := id.New(); r.TrackedUnitID = &other }, apperror.CodeValidation},
		{"two units", func(r *installation.InstallRequest) { r.Quantity = types.NewQuantity(2) }, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := installReq(debt)
			tt.mutate(&req)
			_, err := f.svc.Installation.Install(f.ctx, req)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)

			assert.Equal(t, inventory.UnitLoaned, f.unit(t, unit.ID).Status)
			assert.Equal(t, ledger.DebtActive, f.debt(t, debt.ID).Status)
		})
	}
}

func TestRemove_TrackedUnit(t *testing.T) {
	tests := []struct {
		name          string
		condition     *inventory.UnitStatus
		warehouse     bool
		wantStatus    inventory.UnitStatus
		wantWarehouse bool
	}{
		{"back in stock", condition(inventory.UnitAvailable), true, inventory.UnitAvailable, true},
		{"default is damaged", nil, true, inventory.UnitDamaged, true},
		{"scrap", condition(inventory.UnitScrap), true, inventory.UnitScrap, true},
		{"no warehouse means lost", condition(inventory.UnitAvailable), false, inventory.UnitLost, false},
		{"reported lost", condition(inventory.UnitLost), true, inventory.UnitLost, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			router := f.store.SeedTrackedAsset(f.ctx, "ONT-X1", types.MustMoney("150000"))
			unit, debt := f.loanedUnit(t, router)
			row, err := f.svc.Installation.Install(f.ctx, installReq(debt))
			require.NoError(t, err)

			req := installation.RemoveRequest{InstalledID: row.ID, Condition: tt.condition, Reason: "customer churned"}
			if tt.warehouse {
				req.WarehouseID = &f.warehouse
			}
			removed, err := f.svc.Installation.Remove(f.ctx, req)
			require.NoError(t, err)
			assert.Equal(t, installation.StatusRemoved, removed.Status)
			assert.True(t, removed.TotalAssetValue.IsZero())
			require.NotNil(t, removed.RemovedAt)

			u := f.unit(t, unit.ID)
			assert.Equal(t, tt.wantStatus, u.Status)
			assert.Equal(t, tt.wantWarehouse, u.WarehouseID != nil)

			_, err = f.svc.Installation.Remove(f.ctx, req)
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
		})
	}
}

func TestRemove_BulkAndCable(t *testing.T) {
	f := newFixture(t)
	clip := f.store.SeedBulkAsset(f.ctx, "CLIP", types.MustMoney("200"), types.NewQuantity(10))
	cable := f.store.SeedCableAsset(f.ctx, "FO-2C", types.MustMoney("5000"))
	reel := f.store.SeedUnit(f.ctx, cable, inventory.UnitAvailable, &f.warehouse, types.NewQuantity(100))

	clipDebt := f.loan(t, checkout.Line{AssetID: clip.ID, Quantity: types.NewQuantity(4)})
	req := installReq(clipDebt)
	req.Quantity = types.NewQuantity(2)
	clipRow, err := f.svc.Installation.Install(f.ctx, req)
	require.NoError(t, err)

	reelDebt := f.loan(t, checkout.Line{AssetID: cable.ID, TrackedUnitID: &reel.ID})
	req = installReq(reelDebt)
	req.InstalledLength = metres(40)
	cableRow, err := f.svc.Installation.Install(f.ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Installation.Remove(f.ctx, installation.RemoveRequest{
		InstalledID: clipRow.ID,
		Condition:   condition(inventory.UnitAvailable),
		WarehouseID: &f.warehouse,
	})
	require.NoError(t, err)
	a, err := f.svc.Inventory.GetAsset(f.ctx, clip.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(8), a.AvailableQuantity)

	removed, err := f.svc.Installation.Remove(f.ctx, installation.RemoveRequest{
		InstalledID: cableRow.ID,
		Condition:   condition(inventory.UnitAvailable),
		WarehouseID: &f.warehouse,
	})
	require.NoError(t, err)
	assert.Nil(t, removed.CurrentLength)
	u := f.unit(t, reel.ID)
	assert.Equal(t, inventory.UnitLoaned, u.Status)
	assert.Equal(t, types.NewQuantity(60), u.RemainingLength())
}

func TestRemove_InvalidCondition(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Installation.Remove(f.ctx, installation.RemoveRequest{
		InstalledID: id.New(),
		Condition:   condition(inventory.UnitInRepair),
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	router := f.store.SeedTrackedAsset(f.ctx, "ONT-X1", types.MustMoney("150000"))
	oldUnit, oldDebt := f.loanedUnit(t, router)
	old, err := f.svc.Installation.Install(f.ctx, installReq(oldDebt))
	require.NoError(t, err)
	newUnit, newDebt := f.loanedUnit(t, router)

	t.Run("same debt", func(t *testing.T) {
		_, err := f.svc.Installation.Replace(f.ctx, installation.ReplaceRequest{
			Removal: installation.RemoveRequest{InstalledID: old.ID},
			Install: installReq(oldDebt),
		})
		assert.True(t, apperror.IsValidation(err))
	})

	install := installReq(newDebt)
	install.CustomerID, install.ServiceLocationID = "", ""
	res, err := f.svc.Installation.Replace(f.ctx, installation.ReplaceRequest{
		Removal: installation.RemoveRequest{InstalledID: old.ID, WarehouseID: &f.warehouse, Reason: "faulty optics"},
		Install: install,
	})
	require.NoError(t, err)

	assert.Equal(t, installation.StatusReplaced, res.Removed.Status)
	require.NotNil(t, res.Removed.ReplacedByID)
	assert.Equal(t, res.Installed.ID, *res.Removed.ReplacedByID)
	assert.Equal(t, old.CustomerID, res.Installed.CustomerID)
	assert.Equal(t, old.ServiceLocationID, res.Installed.ServiceLocationID)

	assert.Equal(t, inventory.UnitDamaged, f.unit(t, oldUnit.ID).Status)
	assert.Equal(t, inventory.UnitInstalled, f.unit(t, newUnit.ID).Status)
	assert.Equal(t, ledger.DebtFullySettled, f.debt(t, newDebt.ID).Status)
	assert.Contains(t, f.events.Types(), notify.EventInstallationReplaced)

	stored, err := f.svc.Installation.Get(f.ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, installation.StatusReplaced, stored.Status)

	// The replaced row can still be closed out; its unit is left alone.
	closed, err := f.svc.Installation.Remove(f.ctx, installation.RemoveRequest{InstalledID: old.ID})
	require.NoError(t, err)
	assert.Equal(t, installation.StatusRemoved, closed.Status)
	assert.Equal(t, inventory.UnitDamaged, f.unit(t, oldUnit.ID).Status)
}

func TestReplace_FailureRollsBackRemoval(t *testing.T) {
	f := newFixture(t)
	router := f.store.SeedTrackedAsset(f.ctx, "ONT-X1", types.MustMoney("150000"))
	oldUnit, oldDebt := f.loanedUnit(t, router)
	old, err := f.svc.Installation.Install(f.ctx, installReq(oldDebt))
	require.NoError(t, err)
	_, newDebt := f.loanedUnit(t, router)

	install := installReq(newDebt)
	install.TechnicianID = "tech-2"
	_, err = f.svc.Installation.Replace(f.ctx, installation.ReplaceRequest{
		Removal: installation.RemoveRequest{InstalledID: old.ID, WarehouseID: &f.warehouse},
		Install: install,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeDebtOwnershipMismatch))

	stored, err := f.svc.Installation.Get(f.ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, installation.StatusInstalled, stored.Status)
	assert.Equal(t, inventory.UnitInstalled, f.unit(t, oldUnit.ID).Status)
}

func TestAuditInstalledLength(t *testing.T) {
	f := newFixture(t)
	cable := f.store.SeedCableAsset(f.ctx, "FO-2C", types.MustMoney("5000"))
	reel := f.store.SeedUnit(f.ctx, cable, inventory.UnitAvailable, &f.warehouse, types.NewQuantity(305))
	debt := f.loan(t, checkout.Line{AssetID: cable.ID, TrackedUnitID: &reel.ID})
	req := installReq(debt)
	req.InstalledLength = metres(120)
	row, err := f.svc.Installation.Install(f.ctx, req)
	require.NoError(t, err)

	got, err := f.svc.Installation.AuditInstalledLength(f.ctx, row.ID, types.NewQuantity(115))
	require.NoError(t, err)
	require.NotNil(t, got.CurrentLength)
	assert.Equal(t, types.NewQuantity(115), *got.CurrentLength)
	assert.Equal(t, types.NewQuantity(120), *got.InstalledLength)

	_, err = f.svc.Installation.AuditInstalledLength(f.ctx, row.ID, types.NewQuantity(121))
	assert.True(t, apperror.IsValidation(err))
}
