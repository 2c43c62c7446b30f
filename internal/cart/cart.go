package cart

import (
	"context"

	"race-kart/internal/model"
)

// Storage persists the items of one owner's cart. Save replaces the whole
// cart; there is no line-level locking.
type Storage interface {
	// Load returns the owner's cart items, or an empty slice when no cart exists.
	Load(ctx context.Context, owner model.Owner) ([]model.CartItem, error)

	// Save replaces the owner's cart with items.
	Save(ctx context.Context, owner model.Owner, items []model.CartItem) error

	// Clear empties the owner's cart.
	Clear(ctx context.Context, owner model.Owner) error
}

// Catalog resolves races for cart additions.
type Catalog interface {
	// GetByID returns the race or nil when it does not exist.
	GetByID(ctx context.Context, id string) (*model.Race, error)
}

// Observer is notified with the settled cart after every mutation.
type Observer interface {
	CartChanged(ctx context.Context, owner model.Owner, items []model.CartItem, totals model.CartTotals) error
}

// Migrator moves guest-keyed side records to the user on login.
type Migrator interface {
	MigrateOwner(ctx context.Context, guestKey string, user model.Owner) error
}
