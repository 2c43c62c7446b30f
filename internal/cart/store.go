package cart

import (
	"context"
	"fmt"

	"race-kart/internal/model"
	"race-kart/internal/pricing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("race-kart/cart")

// merges deduplicates concurrent merges of the same guest session into the
// same user in this process.
var merges singleflight.Group

// Store is the cart of one owner for the lifetime of a request. The owner's
// authentication state selects the backing storage.
type Store struct {
	owner     model.Owner
	guest     Storage
	remote    Storage
	catalog   Catalog
	observers []Observer
	migrator  Migrator
	threshold int
	logger    zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers an observer of settled cart states.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observers = append(s.observers, o)
	}
}

// WithMigrator registers the side-record migration run by MergeGuestCart.
func WithMigrator(m Migrator) Option {
	return func(s *Store) {
		s.migrator = m
	}
}

// WithBonusThreshold overrides pricing.BonusThreshold.
func WithBonusThreshold(n int) Option {
	return func(s *Store) {
		s.threshold = n
	}
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates the cart store for owner.
func NewStore(owner model.Owner, guest, remote Storage, catalog Catalog, opts ...Option) *Store {
	s := &Store{
		owner:     owner,
		guest:     guest,
		remote:    remote,
		catalog:   catalog,
		threshold: pricing.BonusThreshold,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().
		Str("component", "cart").
		Str("owner_key", owner.Key()).
		Bool("authenticated", owner.Authenticated()).
		Logger()
	return s
}

// Owner returns the owner the store works for.
func (s *Store) Owner() model.Owner {
	return s.owner
}

func (s *Store) storage() Storage {
	if s.owner.Authenticated() {
		return s.remote
	}
	return s.guest
}

// Items returns the current cart lines.
func (s *Store) Items(ctx context.Context) ([]model.CartItem, error) {
	items, err := s.storage().Load(ctx, s.owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return items, nil
}

// Totals prices the current cart.
func (s *Store) Totals(ctx context.Context) (model.CartTotals, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return model.CartTotals{}, err
	}
	return pricing.Evaluate(items, s.threshold), nil
}

// Snapshot returns the current lines with their totals.
func (s *Store) Snapshot(ctx context.Context) (*model.CartResponse, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	return &model.CartResponse{
		Items:  nonNil(items),
		Totals: pricing.Evaluate(items, s.threshold),
	}, nil
}

// AddToCart adds quantity units of the race option with the given distance.
// An unknown race or distance leaves the cart untouched.
func (s *Store) AddToCart(ctx context.Context, raceID, distance string, quantity int) error {
	if quantity < 1 {
		return model.ErrInvalidQuantity
	}

	race, err := s.catalog.GetByID(ctx, raceID)
	if err != nil {
		return fmt.Errorf("failed to look up race: %w", err)
	}
	if race == nil {
		s.logger.Warn().Str("race_id", raceID).Msg("add to cart ignored: race not in catalogue")
		return nil
	}
	option, ok := race.Option(distance)
	if !ok {
		s.logger.Warn().
			Str("race_id", raceID).
			Str("distance", distance).
			Msg("add to cart ignored: distance not offered")
		return nil
	}

	items, err := s.Items(ctx)
	if err != nil {
		return err
	}

	items = addLine(items, model.CartItem{
		RaceID:    race.ID,
		RaceName:  race.Name,
		RaceImage: race.Image,
		Option:    option,
		Quantity:  quantity,
	})

	return s.save(ctx, items)
}

// RemoveFromCart deletes the line with the given key. Unknown keys are ignored.
func (s *Store) RemoveFromCart(ctx context.Context, key model.LineKey) error {
	items, err := s.Items(ctx)
	if err != nil {
		return err
	}

	kept, removed := removeLine(items, key)
	if !removed {
		return nil
	}
	return s.save(ctx, kept)
}

// UpdateQuantity sets the quantity of a line; a quantity below 1 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, key model.LineKey, quantity int) error {
	if quantity < 1 {
		return s.RemoveFromCart(ctx, key)
	}

	items, err := s.Items(ctx)
	if err != nil {
		return err
	}

	for i := range items {
		if items[i].Key() == key {
			if items[i].Quantity == quantity {
				return nil
			}
			items[i].Quantity = quantity
			return s.save(ctx, items)
		}
	}
	return nil
}

// ClearCart empties the owner's cart.
func (s *Store) ClearCart(ctx context.Context) error {
	if err := s.storage().Clear(ctx, s.owner); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.notify(ctx, nil)
	return nil
}

// MergeGuestCart folds the guest-session cart into the signed-in user's cart
// and clears the guest cart. Running it again with an empty guest cart
// changes nothing. It reports whether any guest line was merged. When the
// guest side records cannot be migrated neither cart is touched.
func (s *Store) MergeGuestCart(ctx context.Context) (bool, error) {
	if !s.owner.Authenticated() {
		return false, model.ErrUnauthenticated
	}

	ctx, span := tracer.Start(ctx, "cart.MergeGuestCart")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", s.owner.UserID))

	v, err, shared := merges.Do(s.owner.UserID+"|"+s.owner.SessionID, func() (interface{}, error) {
		return s.mergeGuestCart(ctx)
	})
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if shared {
		s.logger.Debug().Msg("guest merge shared with a concurrent call")
	}
	return v.(bool), nil
}

func (s *Store) mergeGuestCart(ctx context.Context) (bool, error) {
	guestOwner := s.owner.Guest()

	// carts stay untouched until the side records moved, so a retry migrates them
	if s.migrator != nil && guestOwner.SessionID != "" {
		if err := s.migrator.MigrateOwner(ctx, guestOwner.SessionID, s.owner); err != nil {
			s.logger.Error().Err(err).Msg("failed to migrate guest side records")
			return false, fmt.Errorf("failed to migrate guest records: %w", err)
		}
	}

	guestItems, err := s.guest.Load(ctx, guestOwner)
	if err != nil {
		return false, fmt.Errorf("failed to load guest cart: %w", err)
	}
	if len(guestItems) == 0 {
		return false, nil
	}

	// read the remote cart right before writing it
	userItems, err := s.remote.Load(ctx, s.owner)
	if err != nil {
		return false, fmt.Errorf("failed to load user cart: %w", err)
	}

	merged := Merge(userItems, guestItems)
	if err := s.remote.Save(ctx, s.owner, merged); err != nil {
		return false, fmt.Errorf("failed to save merged cart: %w", err)
	}

	if err := s.guest.Clear(ctx, guestOwner); err != nil {
		return true, fmt.Errorf("failed to clear guest cart: %w", err)
	}

	s.logger.Info().
		Int("guest_lines", len(guestItems)).
		Int("merged_lines", len(merged)).
		Msg("guest cart merged")

	s.notify(ctx, merged)
	return true, nil
}

func (s *Store) save(ctx context.Context, items []model.CartItem) error {
	if err := s.storage().Save(ctx, s.owner, items); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	s.notify(ctx, items)
	return nil
}

func (s *Store) notify(ctx context.Context, items []model.CartItem) {
	if len(s.observers) == 0 {
		return
	}
	totals := pricing.Evaluate(items, s.threshold)
	for _, o := range s.observers {
		if err := o.CartChanged(ctx, s.owner, items, totals); err != nil {
			s.logger.Warn().Err(err).Msg("cart observer failed")
		}
	}
}

func nonNil(items []model.CartItem) []model.CartItem {
	if items == nil {
		return []model.CartItem{}
	}
	return items
}
