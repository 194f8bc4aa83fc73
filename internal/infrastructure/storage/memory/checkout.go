package memory

import (
	"context"
	"slices"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/domain/checkout"
)

// CheckoutRepo implements checkout.Repository.
type CheckoutRepo struct{ s *Store }

var _ checkout.Repository = (*CheckoutRepo)(nil)

func (r *CheckoutRepo) Create(ctx context.Context, c *checkout.Checkout) error {
	return r.s.with(ctx, func(st *state) error {
		stored := clone(c)
		stored.DebtIDs = nil
		st.checkouts[c.ID] = stored
		return nil
	})
}

func (r *CheckoutRepo) Get(ctx context.Context, checkoutID id.ID) (*checkout.Checkout, error) {
	var out *checkout.Checkout
	err := r.s.with(ctx, func(st *state) error {
		c, ok := st.checkouts[checkoutID]
		if !ok {
			return apperror.NewNotFound("checkout", checkoutID)
		}
		out = clone(c)
		return nil
	})
	return out, err
}

func (r *CheckoutRepo) GetForUpdate(ctx context.Context, checkoutID id.ID) (*checkout.Checkout, error) {
	return r.Get(ctx, checkoutID)
}

func (r *CheckoutRepo) UpdateApproval(ctx context.Context, c *checkout.Checkout) error {
	return r.s.with(ctx, func(st *state) error {
		current, ok := st.checkouts[c.ID]
		if !ok {
			return apperror.NewNotFound("checkout", c.ID)
		}
		next := clone(current)
		next.ApprovalStatus = c.ApprovalStatus
		next.ApprovedBy = c.ApprovedBy
		next.ApprovedAt = c.ApprovedAt
		next.ApprovalNotes = c.ApprovalNotes
		st.checkouts[c.ID] = next
		return nil
	})
}

func (r *CheckoutRepo) List(ctx context.Context, f checkout.Filter) ([]*checkout.Checkout, error) {
	var out []*checkout.Checkout
	err := r.s.with(ctx, func(st *state) error {
		for _, c := range st.checkouts {
			if f.TechnicianID != nil && c.TechnicianID != *f.TechnicianID {
				continue
			}
			if f.ApprovalStatus != nil && c.ApprovalStatus != *f.ApprovalStatus {
				continue
			}
			out = append(out, clone(c))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *checkout.Checkout) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(out, f.Limit, f.Offset), err
}
