package features

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/core/types"
	"ispledger/internal/domain"
	"ispledger/internal/domain/checkout"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/installation"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/infrastructure/storage/memory"
)

type ledgerTestContext struct {
	ctx       context.Context
	svc       *domain.Services
	store     *memory.Store
	warehouse id.ID

	assets map[string]*inventory.Asset
	units  map[string]*inventory.TrackedUnit

	lastDebt      id.ID
	lastCheckout  *checkout.Checkout
	lastInstalled *installation.InstalledAsset
	err           error
}

func (c *ledgerTestContext) reset() {
	c.ctx = context.Background()
	c.svc, c.store = memory.NewServices(debtpolicy.DefaultConfig(), nil)
	c.warehouse = id.New()
	c.assets = make(map[string]*inventory.Asset)
	c.units = make(map[string]*inventory.TrackedUnit)
	c.lastDebt = id.Nil()
	c.lastCheckout = nil
	c.lastInstalled = nil
	c.err = nil
}

// --- Given ---

func (c *ledgerTestContext) aBulkAsset(code string, price string, stock int) error {
	c.assets[code] = c.store.SeedBulkAsset(c.ctx, code, types.MustMoney(price), types.NewQuantity(int64(stock)))
	return nil
}

func (c *ledgerTestContext) aTrackedAsset(code, price string) error {
	c.assets[code] = c.store.SeedTrackedAsset(c.ctx, code, types.MustMoney(price))
	return nil
}

func (c *ledgerTestContext) aCableAsset(code, price string) error {
	c.assets[code] = c.store.SeedCableAsset(c.ctx, code, types.MustMoney(price))
	return nil
}

func (c *ledgerTestContext) aUnit(name, code string) error {
	return c.aReel(name, code, 0)
}

func (c *ledgerTestContext) aReel(name, code string, metres int) error {
	asset, ok := c.assets[code]
	if !ok {
		return fmt.Errorf("unknown asset %q", code)
	}
	c.units[name] = c.store.SeedUnit(c.ctx, asset, inventory.UnitAvailable, &c.warehouse, types.NewQuantity(int64(metres)))
	return nil
}

func (c *ledgerTestContext) aDebtLimit(technicianID, limit string) error {
	return c.store.Limits().SetLimit(c.ctx, technicianID, types.MustMoney(limit))
}

func (c *ledgerTestContext) checkedOutBulk(technicianID string, qty int, code string) error {
	if err := c.checksOutBulk(technicianID, qty, code); err != nil {
		return err
	}
	return c.err
}

func (c *ledgerTestContext) checkedOutUnit(technicianID, name string) error {
	unit, ok := c.units[name]
	if !ok {
		return fmt.Errorf("unknown unit %q", name)
	}
	c.checkout(technicianID, checkout.Line{AssetID: unit.AssetID, TrackedUnitID: &unit.ID})
	return c.err
}

func (c *ledgerTestContext) reportedIncident(technicianID, condition string) error {
	_, err := c.svc.Ledger.ReportIncident(c.ctx, ledger.IncidentRequest{
		TechnicianID: technicianID,
		DebtID:       c.lastDebt,
		Condition:    inventory.UnitStatus(condition),
	})
	return err
}

func (c *ledgerTestContext) unitInRepair(name string) error {
	_, err := c.svc.Maintenance.StartRepair(c.ctx, c.units[name].ID, "")
	return err
}

// --- When ---

func (c *ledgerTestContext) checksOutBulk(technicianID string, qty int, code string) error {
	asset, ok := c.assets[code]
	if !ok {
		return fmt.Errorf("unknown asset %q", code)
	}
	c.checkout(technicianID, checkout.Line{AssetID: asset.ID, Quantity: types.NewQuantity(int64(qty))})
	return nil
}

func (c *ledgerTestContext) checkout(technicianID string, line checkout.Line) {
	res, err := c.svc.Checkout.Checkout(c.ctx, checkout.Request{
		TechnicianID: technicianID,
		WarehouseID:  c.warehouse,
		Lines:        []checkout.Line{line},
	})
	c.err = err
	if err == nil {
		c.lastCheckout = res.Checkout
		c.lastDebt = res.DebtIDs[0]
	}
}

func (c *ledgerTestContext) returnsOfLastDebt(technicianID string, qty int) error {
	_, c.err = c.svc.Ledger.Return(c.ctx, ledger.ReturnRequest{
		TechnicianID: technicianID,
		WarehouseID:  c.warehouse,
		Lines:        []ledger.ReturnLine{{DebtID: c.lastDebt, Quantity: types.NewQuantity(int64(qty))}},
	})
	return nil
}

func (c *ledgerTestContext) installsMetres(technicianID string, metres int, customerID string) error {
	d, err := c.svc.Ledger.GetDebt(c.ctx, c.lastDebt)
	if err != nil {
		return err
	}
	length := types.NewQuantity(int64(metres))
	c.lastInstalled, c.err = c.svc.Installation.Install(c.ctx, installation.InstallRequest{
		CustomerID:        customerID,
		ServiceLocationID: customerID + "-main",
		TechnicianID:      technicianID,
		AssetID:           d.AssetID,
		TrackedUnitID:     d.TrackedUnitID,
		SourceDebtID:      d.ID,
		InstalledLength:   &length,
	})
	return nil
}

func (c *ledgerTestContext) settlesEveryOpenDebt(technicianID, salary, cash string) error {
	debts, err := c.svc.Ledger.ListDebts(c.ctx, ledger.DebtFilter{
		TechnicianID: &technicianID,
		Statuses:     ledger.OpenStatuses,
	})
	if err != nil {
		return err
	}
	ids := make([]id.ID, 0, len(debts))
	for _, d := range debts {
		ids = append(ids, d.ID)
	}
	_, c.err = c.svc.Ledger.Settle(c.ctx, ledger.SettleRequest{
		TechnicianID:    technicianID,
		DebtIDs:         ids,
		SalaryDeduction: types.MustMoney(salary),
		CashPayment:     types.MustMoney(cash),
	})
	return nil
}

func (c *ledgerTestContext) repairFails(name, outcome string) error {
	_, c.err = c.svc.Maintenance.FailRepair(c.ctx, c.units[name].ID, inventory.UnitStatus(outcome), "")
	return nil
}

func (c *ledgerTestContext) repairCompletes(name string) error {
	_, c.err = c.svc.Maintenance.CompleteRepair(c.ctx, c.units[name].ID, c.warehouse, nil, "")
	return nil
}

// --- Then ---

func (c *ledgerTestContext) theRequestSucceeds() error {
	if c.err != nil {
		return fmt.Errorf("expected success but got: %w", c.err)
	}
	return nil
}

func (c *ledgerTestContext) theRequestFailsWith(code string) error {
	if c.err == nil {
		return errors.New("expected the request to fail but it succeeded")
	}
	if !apperror.HasCode(c.err, code) {
		return fmt.Errorf("expected %s, got: %v", code, c.err)
	}
	return nil
}

func (c *ledgerTestContext) assetHasAvailable(code string, want int) error {
	a, err := c.svc.Inventory.GetAsset(c.ctx, c.assets[code].ID)
	if err != nil {
		return err
	}
	if a.AvailableQuantity != types.NewQuantity(int64(want)) {
		return fmt.Errorf("expected %d available, got %s", want, a.AvailableQuantity)
	}
	return nil
}

func (c *ledgerTestContext) lastDebtHas(qty int, value, status string) error {
	d, err := c.svc.Ledger.GetDebt(c.ctx, c.lastDebt)
	if err != nil {
		return err
	}
	if d.CurrentDebtQuantity != types.NewQuantity(int64(qty)) {
		return fmt.Errorf("expected quantity %d, got %s", qty, d.CurrentDebtQuantity)
	}
	if !d.CurrentDebtValue.Equal(types.MustMoney(value)) {
		return fmt.Errorf("expected value %s, got %s", value, d.CurrentDebtValue)
	}
	if string(d.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, d.Status)
	}
	return nil
}

func (c *ledgerTestContext) unit(name string) (*inventory.TrackedUnit, error) {
	known, ok := c.units[name]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", name)
	}
	return c.svc.Inventory.GetUnit(c.ctx, known.ID)
}

func (c *ledgerTestContext) unitHasMetresLeft(name string, want int) error {
	u, err := c.unit(name)
	if err != nil {
		return err
	}
	if u.RemainingLength() != types.NewQuantity(int64(want)) {
		return fmt.Errorf("expected %d metres, got %s", want, u.RemainingLength())
	}
	return nil
}

func (c *ledgerTestContext) unitHasStatus(name, status string) error {
	u, err := c.unit(name)
	if err != nil {
		return err
	}
	if string(u.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, u.Status)
	}
	return nil
}

func (c *ledgerTestContext) installedLength(want int) error {
	if c.lastInstalled == nil || c.lastInstalled.InstalledLength == nil {
		return errors.New("no cable installation recorded")
	}
	if *c.lastInstalled.InstalledLength != types.NewQuantity(int64(want)) {
		return fmt.Errorf("expected installed length %d, got %s", want, *c.lastInstalled.InstalledLength)
	}
	return nil
}

func (c *ledgerTestContext) checkoutExceedsLimit(approval string) error {
	if c.lastCheckout == nil {
		return errors.New("no checkout recorded")
	}
	if !c.lastCheckout.ExceedLimit {
		return errors.New("expected the checkout to exceed the limit")
	}
	if string(c.lastCheckout.ApprovalStatus) != approval {
		return fmt.Errorf("expected approval %s, got %s", approval, c.lastCheckout.ApprovalStatus)
	}
	return nil
}

func (c *ledgerTestContext) technicianOwes(technicianID, want string) error {
	got, err := c.svc.Ledger.OutstandingDebt(c.ctx, technicianID)
	if err != nil {
		return err
	}
	if !got.Equal(types.MustMoney(want)) {
		return fmt.Errorf("expected %s outstanding, got %s", want, got)
	}
	return nil
}

func (c *ledgerTestContext) everyDebtHasStatus(technicianID, status string) error {
	debts, err := c.svc.Ledger.ListDebts(c.ctx, ledger.DebtFilter{TechnicianID: &technicianID})
	if err != nil {
		return err
	}
	if len(debts) == 0 {
		return errors.New("technician has no debts")
	}
	for _, d := range debts {
		if string(d.Status) != status {
			return fmt.Errorf("debt %s: expected status %s, got %s", d.ID, status, d.Status)
		}
	}
	return nil
}

func (c *ledgerTestContext) unitHasWriteOffs(name string, want int) error {
	h, err := c.svc.Maintenance.History(c.ctx, c.units[name].ID)
	if err != nil {
		return err
	}
	if len(h.WriteOffs) != want {
		return fmt.Errorf("expected %d write-off records, got %d", want, len(h.WriteOffs))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &ledgerTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a bulk asset "([^"]*)" priced (\d+) with (\d+) in stock$`, tc.aBulkAsset)
	ctx.Step(`^a tracked asset "([^"]*)" priced (\d+)$`, tc.aTrackedAsset)
	ctx.Step(`^a cable asset "([^"]*)" priced (\d+) per metre$`, tc.aCableAsset)
	ctx.Step(`^a unit "([^"]*)" of "([^"]*)"$`, tc.aUnit)
	ctx.Step(`^a reel "([^"]*)" of "([^"]*)" with (\d+) metres$`, tc.aReel)
	ctx.Step(`^technician "([^"]*)" has a debt limit of (\d+)$`, tc.aDebtLimit)
	ctx.Step(`^technician "([^"]*)" checked out (\d+) of "([^"]*)"$`, tc.checkedOutBulk)
	ctx.Step(`^technician "([^"]*)" checked out unit "([^"]*)"$`, tc.checkedOutUnit)
	ctx.Step(`^technician "([^"]*)" reported the last debt "([^"]*)"$`, tc.reportedIncident)
	ctx.Step(`^unit "([^"]*)" is in repair$`, tc.unitInRepair)

	// When steps
	ctx.Step(`^technician "([^"]*)" checks out (\d+) of "([^"]*)"$`, tc.checksOutBulk)
	ctx.Step(`^technician "([^"]*)" returns (\d+) of the last debt$`, tc.returnsOfLastDebt)
	ctx.Step(`^technician "([^"]*)" installs (\d+) metres from the last debt at customer "([^"]*)"$`, tc.installsMetres)
	ctx.Step(`^technician "([^"]*)" settles every open debt with salary deduction (\d+) and cash (\d+)$`, tc.settlesEveryOpenDebt)
	ctx.Step(`^the repair of unit "([^"]*)" fails with outcome "([^"]*)"$`, tc.repairFails)
	ctx.Step(`^the repair of unit "([^"]*)" completes$`, tc.repairCompletes)

	// Then steps
	ctx.Step(`^the request succeeds$`, tc.theRequestSucceeds)
	ctx.Step(`^the request fails with "([^"]*)"$`, tc.theRequestFailsWith)
	ctx.Step(`^asset "([^"]*)" has (\d+) available$`, tc.assetHasAvailable)
	ctx.Step(`^the last debt has quantity (\d+), value (\d+) and status "([^"]*)"$`, tc.lastDebtHas)
	ctx.Step(`^unit "([^"]*)" has (\d+) metres left$`, tc.unitHasMetresLeft)
	ctx.Step(`^unit "([^"]*)" has status "([^"]*)"$`, tc.unitHasStatus)
	ctx.Step(`^the installation has an installed length of (\d+)$`, tc.installedLength)
	ctx.Step(`^the checkout exceeds the limit with approval "([^"]*)"$`, tc.checkoutExceedsLimit)
	ctx.Step(`^technician "([^"]*)" owes (\d+)$`, tc.technicianOwes)
	ctx.Step(`^every debt of technician "([^"]*)" has status "([^"]*)"$`, tc.everyDebtHasStatus)
	ctx.Step(`^unit "([^"]*)" has (\d+) write-off records?$`, tc.unitHasWriteOffs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"ledger.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
