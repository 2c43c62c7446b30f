package repository

import (
	"context"
	"errors"
	"fmt"

	"race-kart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// abandonedCartRepository implements AbandonedCartRepository using PostgreSQL.
// The partial unique index on owner_key makes "the open record of an owner"
// well defined while converted records pile up as history.
type abandonedCartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAbandonedCartRepository creates a new PostgreSQL-backed abandoned-cart repository.
func NewAbandonedCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) AbandonedCartRepository {
	return &abandonedCartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "abandoned_cart").Logger(),
	}
}

// GetActive returns the owner's open record, or nil.
func (r *abandonedCartRepository) GetActive(ctx context.Context, ownerKey string) (*model.AbandonedCart, error) {
	query := `
		SELECT id, schema_version, owner_key, items, total_amount, customer_email, customer_name,
		       status, last_activity_at, order_id, converted_at, email_history, created_at, updated_at
		FROM abandoned_carts
		WHERE owner_key = $1 AND status <> 'CONVERTED'
	`

	var c model.AbandonedCart
	err := r.pool.QueryRow(ctx, query, ownerKey).Scan(
		&c.ID,
		&c.SchemaVersion,
		&c.OwnerKey,
		&c.Items,
		&c.TotalAmount,
		&c.CustomerEmail,
		&c.CustomerName,
		&c.Status,
		&c.LastActivityAt,
		&c.OrderID,
		&c.ConvertedAt,
		&c.EmailHistory,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("owner_key", ownerKey).Msg("failed to query abandoned cart")
		return nil, fmt.Errorf("failed to query abandoned cart: %w", err)
	}

	return &c, nil
}

// Upsert writes the owner's open record as ACTIVE. An existing record keeps
// its id, creation time and e-mail history; blank contact fields do not
// overwrite stored ones.
func (r *abandonedCartRepository) Upsert(ctx context.Context, c *model.AbandonedCart) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `
		INSERT INTO abandoned_carts (
			id, schema_version, owner_key, items, total_amount, customer_email, customer_name,
			status, last_activity_at, email_history, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', now(), '[]', now(), now())
		ON CONFLICT (owner_key) WHERE status <> 'CONVERTED' DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    items = EXCLUDED.items,
		    total_amount = EXCLUDED.total_amount,
		    customer_email = COALESCE(NULLIF(EXCLUDED.customer_email, ''), abandoned_carts.customer_email),
		    customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), abandoned_carts.customer_name),
		    status = 'ACTIVE',
		    last_activity_at = now(),
		    updated_at = now()
		RETURNING id, status, last_activity_at, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		c.ID,
		model.CurrentSchemaVersion,
		c.OwnerKey,
		nonNilItems(c.Items),
		c.TotalAmount,
		c.CustomerEmail,
		c.CustomerName,
	).Scan(&c.ID, &c.Status, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("owner_key", c.OwnerKey).Msg("failed to upsert abandoned cart")
		return fmt.Errorf("failed to upsert abandoned cart: %w", err)
	}

	return nil
}

// DeleteActive removes the owner's open record. Converted records are never deleted.
func (r *abandonedCartRepository) DeleteActive(ctx context.Context, ownerKey string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM abandoned_carts WHERE owner_key = $1 AND status <> 'CONVERTED'`, ownerKey)
	if err != nil {
		r.logger.Error().Err(err).Str("owner_key", ownerKey).Msg("failed to delete abandoned cart")
		return fmt.Errorf("failed to delete abandoned cart: %w", err)
	}

	r.logger.Debug().
		Str("owner_key", ownerKey).
		Int64("deleted", tag.RowsAffected()).
		Msg("abandoned cart deleted")

	return nil
}

// ReplaceOwner deletes the open record of fromKey and writes merged as the
// open record of merged.OwnerKey in one transaction.
func (r *abandonedCartRepository) ReplaceOwner(ctx context.Context, merged *model.AbandonedCart, fromKey string) error {
	if merged.ID == "" {
		merged.ID = uuid.NewString()
	}
	if merged.EmailHistory == nil {
		merged.EmailHistory = []model.EmailLogEntry{}
	}

	return withTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM abandoned_carts WHERE owner_key = $1 AND status <> 'CONVERTED'`, fromKey); err != nil {
			return fmt.Errorf("failed to delete guest abandoned cart: %w", err)
		}

		query := `
			INSERT INTO abandoned_carts (
				id, schema_version, owner_key, items, total_amount, customer_email, customer_name,
				status, last_activity_at, email_history, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), $10, COALESCE($11, now()), now())
			ON CONFLICT (owner_key) WHERE status <> 'CONVERTED' DO UPDATE
			SET schema_version = EXCLUDED.schema_version,
			    items = EXCLUDED.items,
			    total_amount = EXCLUDED.total_amount,
			    customer_email = EXCLUDED.customer_email,
			    customer_name = EXCLUDED.customer_name,
			    status = EXCLUDED.status,
			    last_activity_at = EXCLUDED.last_activity_at,
			    email_history = EXCLUDED.email_history,
			    created_at = EXCLUDED.created_at,
			    updated_at = now()
			RETURNING id, updated_at
		`

		err := tx.QueryRow(ctx, query,
			merged.ID,
			model.CurrentSchemaVersion,
			merged.OwnerKey,
			nonNilItems(merged.Items),
			merged.TotalAmount,
			merged.CustomerEmail,
			merged.CustomerName,
			merged.Status,
			nullTime(merged.LastActivityAt),
			merged.EmailHistory,
			nullTime(merged.CreatedAt),
		).Scan(&merged.ID, &merged.UpdatedAt)
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("from_key", fromKey).
				Str("owner_key", merged.OwnerKey).
				Msg("failed to write merged abandoned cart")
			return fmt.Errorf("failed to write merged abandoned cart: %w", err)
		}

		return nil
	})
}

func nonNilItems(items []model.CartItem) []model.CartItem {
	if items == nil {
		return []model.CartItem{}
	}
	return items
}
