package ledger_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"ispledger/internal/core/id"
	"ispledger/internal/domain/installation"
	"ispledger/internal/infrastructure/storage/postgres"
)

const installedTable = "customer_installed_assets"

var installedColumns = postgres.ExtractDBColumns[installation.InstalledAsset]()

// InstallationRepo implements installation.Repository.
type InstallationRepo struct {
	base
}

var _ installation.Repository = (*InstallationRepo)(nil)

func NewInstallationRepo(txm *postgres.TxManager) *InstallationRepo {
	return &InstallationRepo{base: newBase(txm)}
}

func (r *InstallationRepo) Create(ctx context.Context, a *installation.InstalledAsset) error {
	return r.insert(ctx, installedTable, installedColumns, a, "installed_asset")
}

func (r *InstallationRepo) selectByID(installedID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(installedColumns...).From(installedTable).Where(squirrel.Eq{"id": installedID})
}

func (r *InstallationRepo) Get(ctx context.Context, installedID id.ID) (*installation.InstalledAsset, error) {
	var a installation.InstalledAsset
	if err := r.get(ctx, &a, r.selectByID(installedID), "installed_asset", installedID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *InstallationRepo) GetForUpdate(ctx context.Context, installedID id.ID) (*installation.InstalledAsset, error) {
	var a installation.InstalledAsset
	if err := r.get(ctx, &a, r.selectByID(installedID).Suffix("FOR UPDATE"), "installed_asset", installedID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Update rewrites the mutable part of the row: status, value, length and removal data.
func (r *InstallationRepo) Update(ctx context.Context, a *installation.InstalledAsset) error {
	q := r.builder.Update(installedTable).
		Set("status", a.Status).
		Set("total_asset_value", a.TotalAssetValue).
		Set("current_length", a.CurrentLength).
		Set("removed_at", a.RemovedAt).
		Set("removal_reason", a.RemovalReason).
		Set("replaced_by_id", a.ReplacedByID).
		Set("notes", a.Notes).
		Set("updated_at", a.UpdatedAt).
		Where(squirrel.Eq{"id": a.ID})
	return r.execOne(ctx, q, "installed_asset", a.ID)
}

func (r *InstallationRepo) List(ctx context.Context, f installation.Filter) ([]*installation.InstalledAsset, error) {
	q := r.builder.Select(installedColumns...).From(installedTable).OrderBy("installed_at", "id")
	if f.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *f.CustomerID})
	}
	if f.ServiceLocationID != nil {
		q = q.Where(squirrel.Eq{"service_location_id": *f.ServiceLocationID})
	}
	if f.TechnicianID != nil {
		q = q.Where(squirrel.Eq{"technician_id": *f.TechnicianID})
	}
	if len(f.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": statusStrings(f.Statuses)})
	}

	var out []*installation.InstalledAsset
	if err := r.list(ctx, &out, paginate(q, f.Limit, f.Offset), "installed_asset"); err != nil {
		return nil, err
	}
	return out, nil
}
