package repository

import (
	"context"
	"errors"
	"fmt"

	"race-kart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrOrderNumberTaken is returned by Commit when the generated order number already exists.
var ErrOrderNumberTaken = errors.New("order number already taken")

const (
	orderNumberConstraint = "orders_order_number_key"
	paymentIDConstraint   = "orders_payment_id_key"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// NewUnitOfWork starts planning an atomic set of order writes.
func (r *orderRepository) NewUnitOfWork() UnitOfWork {
	return &unitOfWork{pool: r.pool, logger: r.logger}
}

// GetByID retrieves an order by its ID along with its participants.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, []model.Participant, error) {
	orderQuery := `
		SELECT id, schema_version, order_number, user_id, race_id, race_name, participant_ids,
		       responsible_name, responsible_email, responsible_phone, responsible_document,
		       subtotal, bonus_discount, coupon_discount, delivery_fee, total_amount,
		       delivery_method, delivery_address, coupon_id, coupon_code, payment_id, status, created_at
		FROM orders
		WHERE id = $1
	`

	var o model.Order
	err := r.pool.QueryRow(ctx, orderQuery, id).Scan(
		&o.ID,
		&o.SchemaVersion,
		&o.OrderNumber,
		&o.UserID,
		&o.RaceID,
		&o.RaceName,
		&o.ParticipantIDs,
		&o.ResponsibleName,
		&o.ResponsibleEmail,
		&o.ResponsiblePhone,
		&o.ResponsibleDocument,
		&o.Subtotal,
		&o.BonusDiscount,
		&o.CouponDiscount,
		&o.DeliveryFee,
		&o.TotalAmount,
		&o.DeliveryMethod,
		&o.DeliveryAddress,
		&o.CouponID,
		&o.CouponCode,
		&o.PaymentID,
		&o.Status,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id).Msg("order not found")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id).Msg("failed to query order")
		return nil, nil, fmt.Errorf("failed to query order: %w", err)
	}

	participantsQuery := `
		SELECT id, schema_version, order_id, user_id, race_id, race_name, distance,
		       unit_price, status, kit_status, email_history, created_at
		FROM participants
		WHERE order_id = $1
		ORDER BY array_position($2::text[], id)
	`

	rows, err := r.pool.Query(ctx, participantsQuery, id, o.ParticipantIDs)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id).
			Msg("failed to query participants")
		return nil, nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	participants := []model.Participant{}
	for rows.Next() {
		var p model.Participant
		err := rows.Scan(
			&p.ID,
			&p.SchemaVersion,
			&p.OrderID,
			&p.UserID,
			&p.RaceID,
			&p.RaceName,
			&p.Distance,
			&p.UnitPrice,
			&p.Status,
			&p.KitStatus,
			&p.EmailHistory,
			&p.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan participant row")
			return nil, nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating participant rows")
		return nil, nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return &o, participants, nil
}

// plannedWrite is one statement of a unit of work. check inspects the
// command tag after the statement ran.
type plannedWrite struct {
	name  string
	sql   string
	args  []any
	check func(pgconn.CommandTag) error
}

// unitOfWork implements UnitOfWork as a single pgx.Batch inside one transaction.
type unitOfWork struct {
	pool      *pgxpool.Pool
	logger    zerolog.Logger
	writes    []plannedWrite
	committed bool
}

// CreateParticipants plans one insert per participant.
func (u *unitOfWork) CreateParticipants(participants []model.Participant) {
	query := `
		INSERT INTO participants (
			id, schema_version, order_id, user_id, race_id, race_name, distance,
			unit_price, status, kit_status, email_history, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	`

	for _, p := range participants {
		history := p.EmailHistory
		if history == nil {
			history = []model.EmailLogEntry{}
		}
		u.writes = append(u.writes, plannedWrite{
			name: "create participant",
			sql:  query,
			args: []any{
				p.ID, model.CurrentSchemaVersion, p.OrderID, p.UserID, p.RaceID, p.RaceName, p.Distance,
				p.UnitPrice, p.Status, p.KitStatus, history,
			},
		})
	}
}

// CreateOrder plans the order insert.
func (u *unitOfWork) CreateOrder(o *model.Order) {
	query := `
		INSERT INTO orders (
			id, schema_version, order_number, user_id, race_id, race_name, participant_ids,
			responsible_name, responsible_email, responsible_phone, responsible_document,
			subtotal, bonus_discount, coupon_discount, delivery_fee, total_amount,
			delivery_method, delivery_address, coupon_id, coupon_code, payment_id, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, now())
	`

	u.writes = append(u.writes, plannedWrite{
		name: "create order",
		sql:  query,
		args: []any{
			o.ID, model.CurrentSchemaVersion, o.OrderNumber, o.UserID, o.RaceID, o.RaceName, o.ParticipantIDs,
			o.ResponsibleName, o.ResponsibleEmail, o.ResponsiblePhone, o.ResponsibleDocument,
			o.Subtotal, o.BonusDiscount, o.CouponDiscount, o.DeliveryFee, o.TotalAmount,
			o.DeliveryMethod, o.DeliveryAddress, o.CouponID, o.CouponCode, o.PaymentID, o.Status,
		},
	})
}

// IncrementCouponUses plans a usage increment that only applies while the
// coupon is active and below its limit.
func (u *unitOfWork) IncrementCouponUses(couponID string) {
	query := `
		UPDATE coupons
		SET current_uses = current_uses + 1
		WHERE id = $1
		  AND active
		  AND (max_uses IS NULL OR current_uses < max_uses)
	`

	u.writes = append(u.writes, plannedWrite{
		name: "increment coupon uses",
		sql:  query,
		args: []any{couponID},
		check: func(tag pgconn.CommandTag) error {
			if tag.RowsAffected() == 0 {
				return model.ErrCouponExhausted
			}
			return nil
		},
	})
}

// MarkAbandonedCartConverted plans the conversion of the owner's open record.
// Owners without one are not an error.
func (u *unitOfWork) MarkAbandonedCartConverted(ownerKey, orderID string) {
	query := `
		UPDATE abandoned_carts
		SET status = 'CONVERTED', order_id = $2, converted_at = now(), updated_at = now()
		WHERE owner_key = $1 AND status <> 'CONVERTED'
	`

	u.writes = append(u.writes, plannedWrite{
		name: "convert abandoned cart",
		sql:  query,
		args: []any{ownerKey, orderID},
	})
}

// Commit sends every planned write in one batch inside one transaction.
// Any failure rolls the whole unit back.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.committed {
		return errors.New("unit of work already committed")
	}
	u.committed = true

	if len(u.writes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range u.writes {
		batch.Queue(w.sql, w.args...)
	}

	err := withTx(ctx, u.pool, u.logger, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for _, w := range u.writes {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				if isUniqueViolation(err, orderNumberConstraint) {
					return ErrOrderNumberTaken
				}
				if isUniqueViolation(err, paymentIDConstraint) {
					u.logger.Warn().Str("write", w.name).Msg("payment already redeemed by another order")
					return model.ErrPaymentAlreadyUsed
				}
				u.logger.Error().Err(err).Str("write", w.name).Msg("planned write failed")
				return fmt.Errorf("failed to %s: %w", w.name, err)
			}
			if w.check != nil {
				if err := w.check(tag); err != nil {
					results.Close()
					u.logger.Warn().Err(err).Str("write", w.name).Msg("planned write rejected")
					return err
				}
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.logger.Debug().Int("write_count", len(u.writes)).Msg("unit of work committed")

	return nil
}
