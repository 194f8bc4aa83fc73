package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ispledger/internal/core/apperror"
	appctx "ispledger/internal/core/context"
	"ispledger/internal/core/id"
	"ispledger/internal/core/numerator"
	"ispledger/internal/core/tx"
	"ispledger/internal/core/types"
	"ispledger/internal/domain/debtpolicy"
	"ispledger/internal/domain/inventory"
	"ispledger/internal/domain/ledger"
	"ispledger/internal/domain/notify"
	"ispledger/pkg/logger"
)

// NumberStrategy may leave gaps after a restart; checkout numbers are not reconciled.
var NumberStrategy = numerator.StrategyCached

var tracer = otel.Tracer("ispledger/checkout")

// Service runs checkouts and their NOC approval.
type Service struct {
	repo      Repository
	inventory *inventory.Service
	ledger    *ledger.Service
	policy    *debtpolicy.Policy
	txManager tx.Manager
	numerator numerator.Generator
	notifier  notify.Notifier
}

// NewService creates a new checkout service.
func NewService(
	repo Repository,
	inv *inventory.Service,
	led *ledger.Service,
	policy *debtpolicy.Policy,
	txManager tx.Manager,
	num numerator.Generator,
	notifier notify.Notifier,
) *Service {
	return &Service{
		repo:      repo,
		inventory: inv,
		ledger:    led,
		policy:    policy,
		txManager: txManager,
		numerator: num,
		notifier:  notifier,
	}
}

// planned is a resolved line ready to become a debt.
type planned struct {
	asset  *inventory.Asset
	unit   *inventory.TrackedUnit
	qty    types.Quantity
	length bool
}

// Checkout hands the requested items to the technician as one unit of work.
// The debt limit is evaluated once against the whole value; exceeding it
// flags the checkout but never blocks it.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.String("technician_id", req.TechnicianID),
		attribute.Int("lines", len(req.Lines)),
	))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		co    *Checkout
		debts []*ledger.Debt
		eval  debtpolicy.Evaluation
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.LockTechnician(ctx, req.TechnicianID); err != nil {
			return err
		}

		plan, err := s.take(ctx, req)
		if err != nil {
			return err
		}

		total := types.Zero()
		for _, p := range plan {
			total = total.Add(p.qty.Value(p.asset.StandardPrice))
		}

		// Evaluated before the new debts exist, so currentDebt excludes them.
		eval, err = s.policy.Evaluate(ctx, req.TechnicianID, total)
		if err != nil {
			return fmt.Errorf("evaluate debt limit: %w", err)
		}
		requiresApproval := s.policy.RequiresApproval(ctx, eval)

		number, err := s.numerator.GetNextNumber(ctx, numerator.CheckoutConfig,
			&numerator.Options{Strategy: NumberStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate checkout number: %w", err)
		}

		co = &Checkout{
			ID:               id.New(),
			Number:           number,
			TechnicianID:     req.TechnicianID,
			WarehouseID:      req.WarehouseID,
			TotalValue:       total,
			CurrentDebt:      eval.CurrentDebt,
			DebtLimit:        eval.Limit,
			ExceedLimit:      eval.Exceeds,
			RequiresApproval: requiresApproval,
			ApprovalStatus:   ApprovalNotRequired,
			CreatedBy:        appctx.Actor(ctx),
			CreatedAt:        time.Now().UTC(),
		}
		if requiresApproval {
			co.ApprovalStatus = ApprovalPending
		}
		if req.Notes != "" {
			notes := req.Notes
			co.Notes = &notes
		}
		if err := s.repo.Create(ctx, co); err != nil {
			return fmt.Errorf("create checkout: %w", err)
		}

		debts = make([]*ledger.Debt, 0, len(plan))
		for _, p := range plan {
			var unitID *id.ID
			if p.unit != nil {
				uid := p.unit.ID
				unitID = &uid
			}
			d := ledger.NewDebt(req.TechnicianID, p.asset.ID, unitID, p.qty, p.asset.StandardPrice)
			d.CheckoutID = &co.ID
			d.LengthDenominated = p.length
			debts = append(debts, d)
			co.DebtIDs = append(co.DebtIDs, d.ID)
		}
		return s.ledger.CreateDebts(ctx, debts)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "checkout created",
		"checkout_id", co.ID,
		"number", co.Number,
		"technician_id", co.TechnicianID,
		"total", co.TotalValue,
		"exceed_limit", co.ExceedLimit,
	)

	events := []notify.Event{
		notify.NewEvent(notify.EventCheckoutCreated, "checkout", co.ID).
			With("debt", co.DebtIDs...).
			ForTechnician(co.TechnicianID),
	}
	if co.ExceedLimit {
		events = append(events, notify.NewEvent(notify.EventCheckoutLimitExceeded, "checkout", co.ID).
			ForTechnician(co.TechnicianID))
	}
	notify.Dispatch(ctx, s.notifier, events...)

	return &Result{Checkout: co, DebtIDs: co.DebtIDs}, nil
}

// take resolves every line and applies its stock effect: tracked units go
// available -> loaned with no warehouse, bulk quantity is reserved.
// Explicit units are locked in ID order, bulk assets in ID order after them.
func (s *Service) take(ctx context.Context, req Request) ([]planned, error) {
	plan := make([]planned, len(req.Lines))
	assets := make(map[id.ID]*inventory.Asset)

	for i, l := range req.Lines {
		asset, ok := assets[l.AssetID]
		if !ok {
			a, err := s.inventory.GetAsset(ctx, l.AssetID)
			if err != nil {
				return nil, err
			}
			asset, assets[l.AssetID] = a, a
		}
		plan[i] = planned{asset: asset}
	}

	order := make([]int, len(req.Lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lineRank(req.Lines[order[a]], plan[order[a]].asset) < lineRank(req.Lines[order[b]], plan[order[b]].asset)
	})

	for _, i := range order {
		l := req.Lines[i]
		p := &plan[i]

		if !p.asset.Tracked {
			if !l.Quantity.IsPositive() {
				return nil, apperror.NewValidation("quantity must be positive").WithDetail("line", i)
			}
			if _, err := s.inventory.Reserve(ctx, p.asset.ID, l.Quantity); err != nil {
				return nil, err
			}
			p.qty = l.Quantity
			continue
		}

		if !p.asset.Cable && l.Quantity > types.NewQuantity(1) {
			return nil, apperror.NewValidation("tracked lines check out exactly one unit").WithDetail("line", i)
		}
		unit, err := s.inventory.FindAvailableTrackedUnit(ctx, p.asset.ID, req.WarehouseID, l.TrackedUnitID)
		if err != nil {
			return nil, err
		}

		p.qty = types.NewQuantity(1)
		if p.asset.Cable {
			if !unit.RemainingLength().IsPositive() {
				return nil, apperror.NewAssetNotAvailable(unit.ID.String(), "empty reel")
			}
			p.qty = unit.RemainingLength()
			p.length = true
		}

		p.unit, err = s.inventory.Transition(ctx, unit.ID,
			[]inventory.UnitStatus{inventory.UnitAvailable}, inventory.UnitLoaned, inventory.InField())
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// lineRank orders explicit units, then picked units, then bulk assets.
func lineRank(l Line, asset *inventory.Asset) string {
	switch {
	case asset.Tracked && l.TrackedUnitID != nil:
		return "0" + l.TrackedUnitID.String()
	case asset.Tracked:
		return "1" + asset.ID.String()
	default:
		return "2" + asset.ID.String()
	}
}

// Approve marks a pending checkout approved by the calling NOC operator.
func (s *Service) Approve(ctx context.Context, checkoutID id.ID, notes string) (*Checkout, error) {
	return s.resolve(ctx, checkoutID, ApprovalApproved, notes)
}

// Reject marks a pending checkout rejected. Stock and debts are not touched;
// the items are expected back through a return.
func (s *Service) Reject(ctx context.Context, checkoutID id.ID, notes string) (*Checkout, error) {
	return s.resolve(ctx, checkoutID, ApprovalRejected, notes)
}

func (s *Service) resolve(ctx context.Context, checkoutID id.ID, to ApprovalStatus, notes string) (*Checkout, error) {
	var co *Checkout
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		co, err = s.repo.GetForUpdate(ctx, checkoutID)
		if err != nil {
			return err
		}
		if err := co.resolve(to, appctx.Actor(ctx), notes); err != nil {
			return err
		}
		return s.repo.UpdateApproval(ctx, co)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "checkout approval resolved", "checkout_id", checkoutID, "status", to)
	return co, nil
}

// Get returns a checkout with the IDs of the debts it created.
func (s *Service) Get(ctx context.Context, checkoutID id.ID) (*Checkout, error) {
	co, err := s.repo.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	debts, err := s.ledger.ListDebts(ctx, ledger.DebtFilter{CheckoutID: &checkoutID})
	if err != nil {
		return nil, fmt.Errorf("list checkout debts: %w", err)
	}
	for _, d := range debts {
		co.DebtIDs = append(co.DebtIDs, d.ID)
	}
	return co, nil
}

// List returns checkouts matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Checkout, error) {
	return s.repo.List(ctx, filter)
}
