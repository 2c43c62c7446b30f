package repository

import (
	"context"
	"errors"
	"fmt"

	"race-kart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// cartTable names the table holding one kind of cart and how an owner maps
// to its key column.
type cartTable struct {
	name      string
	keyColumn string
	key       func(model.Owner) (string, error)
}

var (
	userCarts = cartTable{
		name:      "carts",
		keyColumn: "user_id",
		key: func(owner model.Owner) (string, error) {
			if !owner.Authenticated() {
				return "", model.ErrUnauthenticated
			}
			return owner.UserID, nil
		},
	}

	guestCarts = cartTable{
		name:      "guest_carts",
		keyColumn: "session_id",
		key: func(owner model.Owner) (string, error) {
			if owner.SessionID == "" {
				return "", errors.New("guest cart requires a session id")
			}
			return owner.SessionID, nil
		},
	}
)

// cartRepository stores one items document per owner key; Save is a full replace.
type cartRepository struct {
	pool   *pgxpool.Pool
	table  cartTable
	logger zerolog.Logger
}

// NewCartRepository creates the PostgreSQL-backed store of signed-in users' carts.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		table:  userCarts,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// NewGuestCartRepository creates the PostgreSQL-backed store of guest carts,
// keyed by the guest session id. The browser only carries that id.
// TODO: purge guest_carts rows idle for longer than the guest session max age.
func NewGuestCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		table:  guestCarts,
		logger: logger.With().Str("repository", "guest-cart").Logger(),
	}
}

// Load returns the owner's cart items, or an empty slice when no cart exists.
func (r *cartRepository) Load(ctx context.Context, owner model.Owner) ([]model.CartItem, error) {
	key, err := r.table.key(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT items FROM %s WHERE %s = $1`, r.table.name, r.table.keyColumn)

	var items []model.CartItem
	if err := r.pool.QueryRow(ctx, query, key).Scan(&items); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []model.CartItem{}, nil
		}
		r.logger.Error().Err(err).Str("owner_key", key).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	if items == nil {
		items = []model.CartItem{}
	}
	return items, nil
}

// Save replaces the owner's cart with items.
func (r *cartRepository) Save(ctx context.Context, owner model.Owner, items []model.CartItem) error {
	key, err := r.table.key(owner)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.CartItem{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, schema_version, items, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (%[2]s) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    items = EXCLUDED.items,
		    updated_at = now()
	`, r.table.name, r.table.keyColumn)

	if _, err := r.pool.Exec(ctx, query, key, model.CurrentSchemaVersion, items); err != nil {
		r.logger.Error().Err(err).Str("owner_key", key).Msg("failed to save cart")
		return fmt.Errorf("failed to save cart: %w", err)
	}

	r.logger.Debug().
		Str("owner_key", key).
		Int("line_count", len(items)).
		Msg("cart saved")

	return nil
}

// Clear empties the owner's cart.
func (r *cartRepository) Clear(ctx context.Context, owner model.Owner) error {
	key, err := r.table.key(owner)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, r.table.name, r.table.keyColumn)
	if _, err := r.pool.Exec(ctx, query, key); err != nil {
		r.logger.Error().Err(err).Str("owner_key", key).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}
