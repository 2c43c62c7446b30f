package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	minCodeLength = 4
	maxCodeLength = 20
)

// validator implements Validator against stored coupon counters.
type validator struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewValidator creates a new coupon validator.
func NewValidator(repo Repository, logger zerolog.Logger) Validator {
	return &validator{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "coupon-validator").Logger(),
	}
}

// Validate checks a promo code and computes its discount on subtotal.
// The usage counter is read here but only enforced when the order commits.
func (v *validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*model.AppliedCoupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	// Validate length first (cheap check)
	if n := utf8.RuneCountInString(code); n < minCodeLength || n > maxCodeLength {
		v.logger.Debug().
			Str("promo_code", code).
			Int("length", n).
			Msg("promo code length invalid")
		return nil, model.ErrInvalidPromoLength
	}

	c, err := v.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up promo code: %w", err)
	}

	switch {
	case c == nil || !c.Active:
		v.logger.Debug().Str("promo_code", code).Msg("promo code unknown or inactive")
		return nil, model.ErrInvalidPromoCode
	case c.ExpiresAt != nil && !v.now().Before(*c.ExpiresAt):
		v.logger.Debug().Str("promo_code", code).Time("expires_at", *c.ExpiresAt).Msg("promo code expired")
		return nil, model.ErrCouponExpired
	case c.Exhausted():
		v.logger.Debug().Str("promo_code", code).Int("current_uses", c.CurrentUses).Msg("promo code exhausted")
		return nil, model.ErrCouponExhausted
	}

	applied := &model.AppliedCoupon{
		CouponID:       c.ID,
		Code:           c.Code,
		DiscountAmount: c.Discount(subtotal),
	}

	v.logger.Debug().
		Str("promo_code", code).
		Str("discount", applied.DiscountAmount.String()).
		Msg("promo code validated successfully")

	return applied, nil
}
