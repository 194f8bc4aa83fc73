package installation

import (
	"context"

	"ispledger/internal/core/id"
)

// Repository persists installed assets.
type Repository interface {
	Create(ctx context.Context, a *InstalledAsset) error
	Get(ctx context.Context, installedID id.ID) (*InstalledAsset, error)
	GetForUpdate(ctx context.Context, installedID id.ID) (*InstalledAsset, error)
	Update(ctx context.Context, a *InstalledAsset) error
	List(ctx context.Context, filter Filter) ([]*InstalledAsset, error)
}
