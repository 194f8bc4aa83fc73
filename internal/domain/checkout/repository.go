package checkout

import (
	"context"

	"ispledger/internal/core/id"
)

// Repository persists checkout headers.
type Repository interface {
	Create(ctx context.Context, c *Checkout) error
	Get(ctx context.Context, checkoutID id.ID) (*Checkout, error)
	GetForUpdate(ctx context.Context, checkoutID id.ID) (*Checkout, error)
	// UpdateApproval writes the approval fields only.
	UpdateApproval(ctx context.Context, c *Checkout) error
	List(ctx context.Context, filter Filter) ([]*Checkout, error)
}

// Filter narrows List.
type Filter struct {
	TechnicianID   *string
	ApprovalStatus *ApprovalStatus
	Limit          int
	Offset         int
}
