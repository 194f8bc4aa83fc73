package ledger_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/checkout"
	"ispledger/internal/infrastructure/storage/postgres"
)

const checkoutsTable = "checkouts"

var checkoutColumns = postgres.ExtractDBColumns[checkout.Checkout]()

// CheckoutRepo implements checkout.Repository.
type CheckoutRepo struct {
	base
}

var _ checkout.Repository = (*CheckoutRepo)(nil)

func NewCheckoutRepo(txm *postgres.TxManager) *CheckoutRepo {
	return &CheckoutRepo{base: newBase(txm)}
}

func (r *CheckoutRepo) Create(ctx context.Context, c *checkout.Checkout) error {
	return r.insert(ctx, checkoutsTable, checkoutColumns, c, "checkout")
}

func (r *CheckoutRepo) selectByID(checkoutID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(checkoutColumns...).From(checkoutsTable).Where(squirrel.Eq{"id": checkoutID})
}

func (r *CheckoutRepo) Get(ctx context.Context, checkoutID id.ID) (*checkout.Checkout, error) {
	var c checkout.Checkout
	if err := r.get(ctx, &c, r.selectByID(checkoutID), "checkout", checkoutID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckoutRepo) GetForUpdate(ctx context.Context, checkoutID id.ID) (*checkout.Checkout, error) {
	var c checkout.Checkout
	if err := r.get(ctx, &c, r.selectByID(checkoutID).Suffix("FOR UPDATE"), "checkout", checkoutID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckoutRepo) UpdateApproval(ctx context.Context, c *checkout.Checkout) error {
	q := r.builder.Update(checkoutsTable).
		Set("approval_status", c.ApprovalStatus).
		Set("approved_by", c.ApprovedBy).
		Set("approved_at", c.ApprovedAt).
		Set("approval_notes", c.ApprovalNotes).
		Where(squirrel.Eq{"id": c.ID})
	return r.execOne(ctx, q, "checkout", c.ID)
}

// List returns the newest checkouts first.
func (r *CheckoutRepo) List(ctx context.Context, f checkout.Filter) ([]*checkout.Checkout, error) {
	q := r.builder.Select(checkoutColumns...).From(checkoutsTable).OrderBy("created_at DESC", "id DESC")
	if f.TechnicianID != nil {
		q = q.Where(squirrel.Eq{"technician_id": *f.TechnicianID})
	}
	if f.ApprovalStatus != nil {
		q = q.Where(squirrel.Eq{"approval_status": string(*f.ApprovalStatus)})
	}

	var out []*checkout.Checkout
	if err := r.list(ctx, &out, paginate(q, f.Limit, f.Offset), "checkout"); err != nil {
		return nil, err
	}
	return out, nil
}
