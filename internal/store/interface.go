package store

import (
	"context"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// Storage persists region inventory snapshots.
//
// A snapshot is identified by its tag, tags sort in the order the snapshots were taken.
type Storage interface {
	// Save stores the inventory as a new snapshot and returns its tag.
	Save(ctx context.Context, region *model.Region, inventory *model.Inventory) (string, error)
	// Latest returns the tag of the most recent snapshot of the region.
	Latest(ctx context.Context, region string) (string, error)
	// Load returns the inventory stored in the snapshot.
	Load(ctx context.Context, region *model.Region, tag string) (*model.Inventory, error)
}
