package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType says how a coupon's value is applied.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon is a promo code with a usage counter.
type Coupon struct {
	SchemaVersion int             `json:"schemaVersion" db:"schema_version"`
	ID            string          `json:"id" db:"id"`
	Code          string          `json:"code" db:"code" validate:"required,min=4,max=20"`
	DiscountType  DiscountType    `json:"discountType" db:"discount_type" validate:"oneof=percent fixed"`
	DiscountValue decimal.Decimal `json:"discountValue" db:"discount_value"`
	MaxUses       *int            `json:"maxUses,omitempty" db:"max_uses" validate:"omitempty,gt=0"`
	CurrentUses   int             `json:"currentUses" db:"current_uses" validate:"gte=0"`
	Active        bool            `json:"active" db:"active"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// Exhausted reports whether the coupon has no uses left.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// Discount returns the discount the coupon grants on amount, never more than amount.
func (c *Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		d = amount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		d = c.DiscountValue
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(amount) {
		return amount
	}
	return d
}

// ImportCouponsRequest names the coupon files to import.
type ImportCouponsRequest struct {
	Files []string `json:"files"`
}

// ImportCouponsResponse reports the outcome of a coupon import.
type ImportCouponsResponse struct {
	Imported int `json:"imported"`
}
