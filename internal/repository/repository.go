package repository

import (
	"context"

	"race-kart/internal/model"
)

// RaceRepository defines the interface for race catalogue data access operations.
type RaceRepository interface {
	// GetAll retrieves races ordered by date with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Race, error)

	// GetByID retrieves a single race by its ID. Returns nil when it does not exist.
	GetByID(ctx context.Context, id string) (*model.Race, error)
}

// CartRepository persists carts keyed by owner. It satisfies cart.Storage.
type CartRepository interface {
	Load(ctx context.Context, owner model.Owner) ([]model.CartItem, error)
	Save(ctx context.Context, owner model.Owner, items []model.CartItem) error
	Clear(ctx context.Context, owner model.Owner) error
}

// AbandonedCartRepository persists abandoned-cart records. Only records that
// are not CONVERTED are visible to these operations.
type AbandonedCartRepository interface {
	// GetActive returns the owner's open record, or nil.
	GetActive(ctx context.Context, ownerKey string) (*model.AbandonedCart, error)

	// Upsert writes the owner's open record as ACTIVE, keeping its id,
	// creation time and e-mail history when one exists.
	Upsert(ctx context.Context, cart *model.AbandonedCart) error

	// DeleteActive removes the owner's open record.
	DeleteActive(ctx context.Context, ownerKey string) error

	// ReplaceOwner deletes the open record of fromKey and writes merged in one transaction.
	ReplaceOwner(ctx context.Context, merged *model.AbandonedCart, fromKey string) error
}

// CouponRepository defines the interface for coupon data access operations.
type CouponRepository interface {
	// GetByCode retrieves a coupon by its code. Returns nil when it does not exist.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// UpsertMany inserts coupons or refreshes their terms, keeping usage counters.
	UpsertMany(ctx context.Context, coupons []model.Coupon) (int, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// NewUnitOfWork starts planning an atomic set of order writes.
	NewUnitOfWork() UnitOfWork

	// GetByID retrieves an order by its ID along with its participants.
	// Returns nil when the order does not exist.
	GetByID(ctx context.Context, id string) (*model.Order, []model.Participant, error)
}

// UnitOfWork collects the writes of one order placement. Nothing touches the
// database until Commit, which applies every planned write in a single
// transaction or none of them.
type UnitOfWork interface {
	// CreateParticipants plans one insert per participant.
	CreateParticipants(participants []model.Participant)

	// CreateOrder plans the order insert.
	CreateOrder(order *model.Order)

	// IncrementCouponUses plans the coupon usage increment. Commit fails with
	// model.ErrCouponExhausted when the coupon has no uses left.
	IncrementCouponUses(couponID string)

	// MarkAbandonedCartConverted plans the conversion of the owner's open
	// abandoned-cart record, if there is one.
	MarkAbandonedCartConverted(ownerKey, orderID string)

	// Commit applies the planned writes atomically. An order whose payment id
	// already paid for another order fails with model.ErrPaymentAlreadyUsed.
	Commit(ctx context.Context) error
}
