// Package abandoned mirrors live carts into abandoned-cart records read by
// the reminder jobs.
package abandoned

import (
	"context"
	"fmt"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
)

// Repository persists abandoned-cart records. Only the record of an owner
// that is not CONVERTED is ever written or deleted through it.
type Repository interface {
	// GetActive returns the owner's non-converted record, or nil if none exists.
	GetActive(ctx context.Context, ownerKey string) (*model.AbandonedCart, error)

	// Upsert creates the owner's record or refreshes it, keeping created_at and
	// e-mail history and re-asserting ACTIVE.
	Upsert(ctx context.Context, cart *model.AbandonedCart) error

	// DeleteActive removes the owner's non-converted record.
	DeleteActive(ctx context.Context, ownerKey string) error

	// ReplaceOwner stores merged under its owner key and deletes the record
	// of fromKey, in one transaction.
	ReplaceOwner(ctx context.Context, merged *model.AbandonedCart, fromKey string) error
}

// Tracker keeps abandoned-cart records in step with cart mutations.
type Tracker struct {
	repo   Repository
	logger zerolog.Logger
}

// NewTracker creates a tracker.
func NewTracker(repo Repository, logger zerolog.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		logger: logger.With().Str("component", "abandoned-cart-tracker").Logger(),
	}
}

// CartChanged records the settled cart of owner. A non-empty cart is upserted
// as ACTIVE; an empty cart deletes the record unless it was converted.
func (t *Tracker) CartChanged(ctx context.Context, owner model.Owner, items []model.CartItem, totals model.CartTotals) error {
	key := owner.Key()
	if key == "" {
		return nil
	}

	if len(items) == 0 {
		if err := t.repo.DeleteActive(ctx, key); err != nil {
			// a missing record is an acceptable end state
			t.logger.Debug().Err(err).Str("owner_key", key).Msg("abandoned cart delete ignored")
		}
		return nil
	}

	record := &model.AbandonedCart{
		SchemaVersion: model.CurrentSchemaVersion,
		OwnerKey:      key,
		Items:         items,
		TotalAmount:   totals.TotalPrice,
		CustomerEmail: owner.Email,
		CustomerName:  owner.Name,
		Status:        model.AbandonedCartActive,
	}
	if err := model.Validate(record); err != nil {
		return err
	}

	if err := t.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to upsert abandoned cart: %w", err)
	}

	t.logger.Debug().
		Str("owner_key", key).
		Int("lines", len(items)).
		Msg("abandoned cart synced")

	return nil
}

// MigrateOwner moves the guest record to the user after login. Without a
// guest record it does nothing, so it is safe to run again.
func (t *Tracker) MigrateOwner(ctx context.Context, guestKey string, user model.Owner) error {
	if guestKey == "" || !user.Authenticated() || guestKey == user.UserID {
		return nil
	}

	guestRecord, err := t.repo.GetActive(ctx, guestKey)
	if err != nil {
		return fmt.Errorf("failed to load guest abandoned cart: %w", err)
	}
	if guestRecord == nil {
		return nil
	}

	userRecord, err := t.repo.GetActive(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user abandoned cart: %w", err)
	}

	merged := mergeRecords(userRecord, guestRecord, user)
	if err := t.repo.ReplaceOwner(ctx, merged, guestKey); err != nil {
		return fmt.Errorf("failed to migrate abandoned cart: %w", err)
	}

	t.logger.Info().
		Str("guest_key", guestKey).
		Str("user_id", user.UserID).
		Bool("user_record_existed", userRecord != nil).
		Msg("abandoned cart migrated to user")

	return nil
}

// mergeRecords folds the guest record into the user's. The user's non-empty
// fields win and the guest fills the gaps.
func mergeRecords(userRecord, guestRecord *model.AbandonedCart, user model.Owner) *model.AbandonedCart {
	merged := *guestRecord
	merged.ID = ""
	merged.OwnerKey = user.UserID
	merged.Status = model.AbandonedCartActive
	merged.EmailHistory = append([]model.EmailLogEntry(nil), guestRecord.EmailHistory...)

	if userRecord != nil {
		merged.ID = userRecord.ID
		if len(userRecord.Items) > 0 {
			merged.Items = userRecord.Items
			merged.TotalAmount = userRecord.TotalAmount
		}
		if userRecord.CustomerEmail != "" {
			merged.CustomerEmail = userRecord.CustomerEmail
		}
		if userRecord.CustomerName != "" {
			merged.CustomerName = userRecord.CustomerName
		}
		if userRecord.CreatedAt.Before(merged.CreatedAt) {
			merged.CreatedAt = userRecord.CreatedAt
		}
		if userRecord.LastActivityAt.After(merged.LastActivityAt) {
			merged.LastActivityAt = userRecord.LastActivityAt
		}
		merged.EmailHistory = append(append([]model.EmailLogEntry(nil), userRecord.EmailHistory...), guestRecord.EmailHistory...)
	}

	if merged.CustomerEmail == "" {
		merged.CustomerEmail = user.Email
	}
	if merged.CustomerName == "" {
		merged.CustomerName = user.Name
	}
	return &merged
}
