// Package debtpolicy decides whether a technician's checkout needs NOC approval.
//
// The policy never mutates anything: it reads the technician's outstanding
// debt and limit, and returns a verdict the caller acts upon.
package debtpolicy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/types"
	"ispledger/pkg/logger"
)

// Config is the policy's injected configuration.
type Config struct {
	// DefaultLimit applies to technicians without an override.
	DefaultLimit types.Money
	// RequireApprovalAboveLimit turns the approval gate on.
	RequireApprovalAboveLimit bool
}

// DefaultConfig mirrors the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:              types.NewMoneyFromInt(2_000_000),
		RequireApprovalAboveLimit: true,
	}
}

// Evaluation is the policy verdict for one proposed amount.
type Evaluation struct {
	TechnicianID     string      `json:"technicianId"`
	CurrentDebt      types.Money `json:"currentDebt"`
	AdditionalAmount types.Money `json:"additionalAmount"`
	Limit            types.Money `json:"limit"`
	NewTotal         types.Money `json:"newTotal"`
	Exceeds          bool        `json:"exceeds"`
	// AvailableCredit is what is left under the limit before this amount, never negative.
	AvailableCredit types.Money `json:"availableCredit"`
}

// DebtSource sums current_debt_value over a technician's open debts.
type DebtSource interface {
	OutstandingDebt(ctx context.Context, technicianID string) (types.Money, error)
}

// LimitProvider returns a per-technician limit override, or nil.
type LimitProvider interface {
	LimitOverride(ctx context.Context, technicianID string) (*types.Money, error)
}

// LimitStore is a LimitProvider that also accepts overrides.
type LimitStore interface {
	LimitProvider
	SetLimit(ctx context.Context, technicianID string, limit types.Money) error
}

// Policy evaluates debt limits.
type Policy struct {
	cfg    Config
	debts  DebtSource
	limits LimitProvider
	rule   *Rule
}

// Option configures a Policy.
type Option func(*Policy)

// WithLimitProvider enables per-technician overrides.
func WithLimitProvider(p LimitProvider) Option {
	return func(pol *Policy) { pol.limits = p }
}

// WithRule replaces the default approval verdict with a compiled rule.
func WithRule(r *Rule) Option {
	return func(pol *Policy) { pol.rule = r }
}

// New creates a policy.
func New(cfg Config, debts DebtSource, opts ...Option) *Policy {
	p := &Policy{cfg: cfg, debts: debts}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compute is the pure evaluation: newTotal = current + additional,
// exceeds = newTotal > limit.
func Compute(current, additional, limit types.Money) Evaluation {
	newTotal := current.Add(additional)
	return Evaluation{
		CurrentDebt:      current,
		AdditionalAmount: additional,
		Limit:            limit,
		NewTotal:         newTotal,
		Exceeds:          newTotal.GreaterThan(limit),
		AvailableCredit:  decimal.Max(limit.Sub(current), decimal.Zero),
	}
}

// Evaluate reads the technician's open debt and limit and computes the verdict.
func (p *Policy) Evaluate(ctx context.Context, technicianID string, additional types.Money) (Evaluation, error) {
	current, err := p.debts.OutstandingDebt(ctx, technicianID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("outstanding debt: %w", err)
	}

	limit, err := p.LimitFor(ctx, technicianID)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Compute(current, additional, limit)
	ev.TechnicianID = technicianID
	return ev, nil
}

// LimitFor returns the override for technicianID or the default limit.
func (p *Policy) LimitFor(ctx context.Context, technicianID string) (types.Money, error) {
	if p.limits == nil {
		return p.cfg.DefaultLimit, nil
	}
	override, err := p.limits.LimitOverride(ctx, technicianID)
	if err != nil {
		return types.Zero(), fmt.Errorf("limit override: %w", err)
	}
	if override == nil {
		return p.cfg.DefaultLimit, nil
	}
	return *override, nil
}

// SetLimit stores a per-technician override. It fails when the configured
// provider is read-only.
func (p *Policy) SetLimit(ctx context.Context, technicianID string, limit types.Money) error {
	if technicianID == "" {
		return apperror.NewValidation("technician is required").WithDetail("field", "technicianId")
	}
	if limit.IsNegative() {
		return apperror.NewValidation("debt limit cannot be negative").WithDetail("field", "debtLimit")
	}
	store, ok := p.limits.(LimitStore)
	if !ok {
		return apperror.NewConflict("per-technician limits are not configurable")
	}
	if err := store.SetLimit(ctx, technicianID, limit); err != nil {
		return fmt.Errorf("set limit: %w", err)
	}
	logger.Info(ctx, "debt limit set", "technician_id", technicianID, "limit", limit)
	return nil
}

// RequiresApproval is exceeds AND the approval setting, unless a rule is
// configured. A rule that fails at runtime falls back to the default.
func (p *Policy) RequiresApproval(ctx context.Context, ev Evaluation) bool {
	fallback := ev.Exceeds && p.cfg.RequireApprovalAboveLimit
	if p.rule == nil {
		return fallback
	}

	verdict, err := p.rule.Eval(ev, p.cfg.RequireApprovalAboveLimit)
	if err != nil {
		logger.Warn(ctx, "approval rule failed, using default verdict",
			"rule", p.rule.Expression(),
			"error", err,
		)
		return fallback
	}
	return verdict
}
