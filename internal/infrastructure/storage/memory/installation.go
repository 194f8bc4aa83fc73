package memory

import (
	"context"
	"slices"

	"ispledger/internal/core/apperror"
	"ispledger/internal/core/id"
	"ispledger/internal/domain/installation"
)

// InstallationRepo implements installation.Repository.
type InstallationRepo struct{ s *Store }

var _ installation.Repository = (*InstallationRepo)(nil)

func (r *InstallationRepo) Create(ctx context.Context, a *installation.InstalledAsset) error {
	return r.s.with(ctx, func(st *state) error {
		st.installed[a.ID] = clone(a)
		return nil
	})
}

func (r *InstallationRepo) Get(ctx context.Context, installedID id.ID) (*installation.InstalledAsset, error) {
	var out *installation.InstalledAsset
	err := r.s.with(ctx, func(st *state) error {
		a, ok := st.installed[installedID]
		if !ok {
			return apperror.NewNotFound("installed_asset", installedID)
		}
		out = clone(a)
		return nil
	})
	return out, err
}

func (r *InstallationRepo) GetForUpdate(ctx context.Context, installedID id.ID) (*installation.InstalledAsset, error) {
	return r.Get(ctx, installedID)
}

func (r *InstallationRepo) Update(ctx context.Context, a *installation.InstalledAsset) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.installed[a.ID]; !ok {
			return apperror.NewNotFound("installed_asset", a.ID)
		}
		st.installed[a.ID] = clone(a)
		return nil
	})
}

func (r *InstallationRepo) List(ctx context.Context, f installation.Filter) ([]*installation.InstalledAsset, error) {
	var out []*installation.InstalledAsset
	err := r.s.with(ctx, func(st *state) error {
		for _, a := range st.installed {
			if f.CustomerID != nil && a.CustomerID != *f.CustomerID {
				continue
			}
			if f.ServiceLocationID != nil && a.ServiceLocationID != *f.ServiceLocationID {
				continue
			}
			if f.TechnicianID != nil && a.TechnicianID != *f.TechnicianID {
				continue
			}
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
				continue
			}
			out = append(out, clone(a))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *installation.InstalledAsset) int { return a.InstalledAt.Compare(b.InstalledAt) })
	return page(out, f.Limit, f.Offset), err
}
