package port

import (
	"context"

	"github.com/nikolayk812/cartstore/internal/domain"
)

type SnapshotRepository interface {
	// Load returns ErrSnapshotNotFound when nothing was saved under the key yet.
	// On ErrSnapshotCorrupt the returned snapshot still carries the stored version.
	Load(ctx context.Context, key string) (domain.Snapshot, error)
	// Save replaces the snapshot if the stored version equals expectedVersion
	// and returns the new version, otherwise it fails with ErrVersionConflict.
	Save(ctx context.Context, key string, cart domain.Cart, expectedVersion int64) (int64, error)
}

type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
	GetStock(ctx context.Context, productID int64) (domain.Stock, error)
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
