package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"race-kart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// couponRepository implements the CouponRepository interface using PostgreSQL.
type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// GetByCode retrieves a coupon by its code, case-insensitively.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT id, schema_version, code, discount_type, discount_value, max_uses,
		       current_uses, active, expires_at, created_at
		FROM coupons
		WHERE code = $1
	`

	var c model.Coupon
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(code)).Scan(
		&c.ID,
		&c.SchemaVersion,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MaxUses,
		&c.CurrentUses,
		&c.Active,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("coupon_code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return &c, nil
}

// UpsertMany inserts coupons or refreshes the terms of existing codes in one
// batch. The batch runs as one implicit transaction, so a failure imports
// nothing. Usage counters of existing coupons are left untouched.
func (r *couponRepository) UpsertMany(ctx context.Context, coupons []model.Coupon) (int, error) {
	if len(coupons) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO coupons (id, schema_version, code, discount_type, discount_value, max_uses, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    discount_type = EXCLUDED.discount_type,
		    discount_value = EXCLUDED.discount_value,
		    max_uses = EXCLUDED.max_uses,
		    active = EXCLUDED.active,
		    expires_at = EXCLUDED.expires_at
	`

	batch := &pgx.Batch{}
	for _, c := range coupons {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Queue(query,
			id,
			model.CurrentSchemaVersion,
			strings.ToUpper(c.Code),
			c.DiscountType,
			c.DiscountValue,
			c.MaxUses,
			c.Active,
			c.ExpiresAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range coupons {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("coupon_code", coupons[i].Code).
				Msg("failed to upsert coupon")
			return 0, fmt.Errorf("failed to upsert coupon %s: %w", coupons[i].Code, err)
		}
	}

	r.logger.Info().Int("count", len(coupons)).Msg("coupons upserted")

	return len(coupons), nil
}
