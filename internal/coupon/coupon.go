package coupon

import (
	"context"

	"race-kart/internal/model"

	"github.com/shopspring/decimal"
)

// Validator defines the interface for promo code validation.
type Validator interface {
	// Validate checks a promo code against its stored terms and returns the
	// discount it grants on subtotal. A valid promo code must:
	// - Be between 4 and 20 characters in length
	// - Exist and be active
	// - Not be expired
	// - Have uses left
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*model.AppliedCoupon, error)
}

// Repository reads stored coupons.
type Repository interface {
	// GetByCode returns the coupon or nil when it does not exist.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
}

// Store persists imported coupons.
type Store interface {
	UpsertMany(ctx context.Context, coupons []model.Coupon) (int, error)
}

// Loader defines the interface for loading coupon files.
type Loader interface {
	// Load reads a gzipped coupon file and returns its coupons keyed by code.
	Load(ctx context.Context, filePath string) (*Set, error)
}
