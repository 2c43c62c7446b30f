package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"race-kart/internal/model"
	"race-kart/internal/pricing"
	"race-kart/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("race-kart/service")

const (
	orderNumberLength   = 10
	orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderNumberAttempts = 3
)

// orderService implements OrderService.
type orderService struct {
	orderRepo      repository.OrderRepository
	threshold      int
	newOrderNumber func() (string, error)
	logger         zerolog.Logger
}

// NewOrderService creates a new order service. threshold is the cart bonus
// threshold used to price the order.
func NewOrderService(orderRepo repository.OrderRepository, threshold int, logger zerolog.Logger) OrderService {
	return &orderService{
		orderRepo:      orderRepo,
		threshold:      threshold,
		newOrderNumber: generateOrderNumber,
		logger:         logger.With().Str("service", "order").Logger(),
	}
}

// PlaceOrder validates the request, then plans and commits the order unit of work.
// A generated order number that collides with an existing one is replaced and
// the unit is committed again; nothing from the failed attempt is persisted.
func (s *orderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (result *model.PlaceOrderResult, err error) {
	ctx, span := tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.validatePlaceOrderRequest(req); err != nil {
		s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("order rejected")
		return nil, err
	}

	raceID := req.Items[0].RaceID
	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("race_id", raceID),
		attribute.Int("lines", len(req.Items)),
	)

	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order, participants, err := s.buildOrder(req)
		if err != nil {
			return nil, err
		}

		uow := s.orderRepo.NewUnitOfWork()
		uow.CreateParticipants(participants)
		uow.CreateOrder(order)
		if order.CouponID != nil {
			uow.IncrementCouponUses(*order.CouponID)
		}
		uow.MarkAbandonedCartConverted(req.UserID, order.ID)

		err = uow.Commit(ctx)
		if errors.Is(err, repository.ErrOrderNumberTaken) {
			s.logger.Warn().
				Str("order_number", order.OrderNumber).
				Int("attempt", attempt).
				Msg("order number collision, regenerating")
			continue
		}
		if err != nil {
			var domainErr *model.DomainError
			if errors.As(err, &domainErr) {
				s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("order rejected at commit")
				return nil, err
			}
			s.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to commit order")
			return nil, fmt.Errorf("failed to place order: %w", err)
		}

		span.SetAttributes(
			attribute.String("order_id", order.ID),
			attribute.Int("participants", len(participants)),
		)
		s.logger.Info().
			Str("order_id", order.ID).
			Str("order_number", order.OrderNumber).
			Str("user_id", req.UserID).
			Str("race_id", raceID).
			Int("participants", len(participants)).
			Str("total", order.TotalAmount.StringFixed(2)).
			Msg("order placed")

		return &model.PlaceOrderResult{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			ParticipantIDs: order.ParticipantIDs,
		}, nil
	}

	return nil, fmt.Errorf("failed to place order: %w", repository.ErrOrderNumberTaken)
}

// GetOrder retrieves an order owned by userID. Orders of other users are
// reported as not found.
func (s *orderService) GetOrder(ctx context.Context, id, userID string) (*model.OrderResponse, error) {
	if id == "" {
		return nil, model.ErrOrderNotFound
	}

	order, participants, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if order == nil || order.UserID != userID {
		s.logger.Debug().Str("order_id", id).Str("user_id", userID).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	if participants == nil {
		participants = []model.Participant{}
	}

	return &model.OrderResponse{
		Order:        *order,
		Participants: participants,
	}, nil
}

// validatePlaceOrderRequest rejects requests that must not produce any write.
func (s *orderService) validatePlaceOrderRequest(req *PlaceOrderRequest) error {
	if req.UserID == "" {
		return model.ErrUnauthenticated
	}

	if len(req.Items) == 0 {
		return model.ErrEmptyCart
	}

	raceID := req.Items[0].RaceID
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return model.ErrInvalidQuantity
		}
		if item.RaceID != raceID {
			return model.ErrMixedRaceCart
		}
	}

	if req.PaymentID == "" {
		return model.ErrPaymentNotConfirmed
	}

	if err := model.Validate(req.Payer); err != nil {
		return err
	}
	if err := model.Validate(req.Delivery); err != nil {
		return err
	}
	if req.Delivery.Fee.IsNegative() {
		return model.NewValidationError("delivery fee must not be negative")
	}
	if req.Coupon != nil {
		if err := model.Validate(req.Coupon); err != nil {
			return err
		}
	}

	return nil
}

// buildOrder fans the cart out into participants and aggregates the order.
func (s *orderService) buildOrder(req *PlaceOrderRequest) (*model.Order, []model.Participant, error) {
	number, err := s.newOrderNumber()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	orderID := uuid.NewString()
	kitStatus := model.KitStatusFor(req.Delivery.Method)
	first := req.Items[0]

	var participants []model.Participant
	for _, item := range req.Items {
		for range item.Quantity {
			participants = append(participants, model.Participant{
				SchemaVersion: model.CurrentSchemaVersion,
				ID:            uuid.NewString(),
				OrderID:       orderID,
				UserID:        req.UserID,
				RaceID:        item.RaceID,
				RaceName:      item.RaceName,
				Distance:      item.Option.Distance,
				UnitPrice:     item.UnitPrice(),
				Status:        model.ParticipantPendingIdentification,
				KitStatus:     kitStatus,
				EmailHistory:  []model.EmailLogEntry{},
			})
		}
	}

	participantIDs := make([]string, len(participants))
	for i, p := range participants {
		participantIDs[i] = p.ID
	}

	totals := pricing.Evaluate(req.Items, s.threshold)
	couponDiscount := decimal.Zero
	if req.Coupon != nil {
		couponDiscount = req.Coupon.DiscountAmount
	}

	order := &model.Order{
		SchemaVersion:       model.CurrentSchemaVersion,
		ID:                  orderID,
		OrderNumber:         number,
		UserID:              req.UserID,
		RaceID:              first.RaceID,
		RaceName:            first.RaceName,
		ParticipantIDs:      participantIDs,
		ResponsibleName:     req.Payer.Name,
		ResponsibleEmail:    req.Payer.Email,
		ResponsiblePhone:    req.Payer.Phone,
		ResponsibleDocument: req.Payer.Document,
		Subtotal:            totals.Subtotal,
		BonusDiscount:       totals.Subtotal.Sub(totals.TotalPrice),
		CouponDiscount:      couponDiscount,
		DeliveryFee:         req.Delivery.Fee,
		TotalAmount:         orderTotal(totals, couponDiscount, req.Delivery.Fee),
		DeliveryMethod:      req.Delivery.Method,
		PaymentID:           req.PaymentID,
		Status:              model.OrderStatusPaid,
	}
	if req.Delivery.Method == model.DeliveryHome {
		order.DeliveryAddress = req.Delivery.Address
	}
	if req.Coupon != nil {
		couponID, code := req.Coupon.CouponID, req.Coupon.Code
		order.CouponID = &couponID
		order.CouponCode = &code
	}

	if err := model.Validate(order); err != nil {
		return nil, nil, err
	}

	return order, participants, nil
}

// orderTotal is the amount charged: the priced cart less the coupon discount,
// floored at zero, plus the delivery fee.
func orderTotal(totals model.CartTotals, couponDiscount, deliveryFee decimal.Decimal) decimal.Decimal {
	net := totals.TotalPrice.Sub(couponDiscount)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return net.Add(deliveryFee)
}

// generateOrderNumber returns a random uppercase alphanumeric order number.
func generateOrderNumber() (string, error) {
	// largest multiple of the alphabet size that fits in a byte
	limit := 256 - 256%len(orderNumberAlphabet)

	out := make([]byte, 0, orderNumberLength)
	buf := make([]byte, orderNumberLength*2)
	for len(out) < orderNumberLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, orderNumberAlphabet[int(b)%len(orderNumberAlphabet)])
			if len(out) == orderNumberLength {
				break
			}
		}
	}
	return string(out), nil
}
