package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"race-kart/internal/cart"
	"race-kart/internal/coupon"
	"race-kart/internal/events"
	"race-kart/internal/model"
	"race-kart/internal/payment"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// checkoutService implements CheckoutService.
type checkoutService struct {
	orders    OrderService
	coupons   coupon.Validator
	gateway   payment.Gateway
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orders OrderService,
	coupons coupon.Validator,
	gateway payment.Gateway,
	publisher events.Publisher,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		orders:    orders,
		coupons:   coupons,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger.With().Str("service", "checkout").Logger(),
	}
}

// Checkout prices the cart, applies the coupon, confirms the payment for the
// resulting total and places the order. The cart is cleared and the
// order.placed event published only after the order commits; failures of
// either are logged and do not undo the order. A payment confirmed for an
// order that is then rejected is refunded.
func (s *checkoutService) Checkout(ctx context.Context, store *cart.Store, req *model.CheckoutRequest) (result *model.PlaceOrderResult, err error) {
	ctx, span := tracer.Start(ctx, "checkout.Checkout")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	owner := store.Owner()
	if !owner.Authenticated() {
		return nil, model.ErrUnauthenticated
	}
	span.SetAttributes(attribute.String("user_id", owner.UserID))

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", owner.UserID).Msg("failed to read cart")
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(snapshot.Items) == 0 {
		return nil, model.ErrEmptyCart
	}

	var applied *model.AppliedCoupon
	couponDiscount := decimal.Zero
	if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
		applied, err = s.coupons.Validate(ctx, strings.TrimSpace(*req.CouponCode), snapshot.Totals.TotalPrice)
		if err != nil {
			s.logger.Warn().
				Str("coupon_code", *req.CouponCode).
				Err(err).
				Msg("invalid coupon code")
			return nil, err
		}
		couponDiscount = applied.DiscountAmount
	}

	total := orderTotal(snapshot.Totals, couponDiscount, req.Delivery.Fee)
	if err := s.gateway.Confirm(ctx, req.PaymentID, total); err != nil {
		s.logger.Warn().
			Err(err).
			Str("payment_id", req.PaymentID).
			Str("amount", total.StringFixed(2)).
			Msg("payment not confirmed")
		return nil, err
	}

	payer := req.Payer
	if payer.Email == "" {
		payer.Email = owner.Email
	}
	if payer.Name == "" {
		payer.Name = owner.Name
	}

	result, err = s.orders.PlaceOrder(ctx, &PlaceOrderRequest{
		UserID:    owner.UserID,
		Items:     snapshot.Items,
		Payer:     payer,
		Delivery:  req.Delivery,
		PaymentID: req.PaymentID,
		Coupon:    applied,
	})
	if err != nil {
		s.settleRejectedPayment(ctx, req.PaymentID, total, err)
		return nil, err
	}

	if err := store.ClearCart(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_id", result.OrderID).Msg("failed to clear cart after order")
	}

	event := model.OrderPlacedEvent{
		OrderID:          result.OrderID,
		OrderNumber:      result.OrderNumber,
		UserID:           owner.UserID,
		RaceID:           snapshot.Items[0].RaceID,
		ParticipantCount: len(result.ParticipantIDs),
		TotalAmount:      total,
		ResponsibleEmail: payer.Email,
		PlacedAt:         time.Now().UTC(),
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("order_id", result.OrderID).Msg("failed to publish order placed event")
	}

	return result, nil
}

// settleRejectedPayment handles a captured payment whose order was not placed.
// Domain rejections mean nothing was written, so the payment is refunded. A
// payment that already paid for another order stays with that order. Other
// failures leave the commit outcome unknown and are only logged for
// reconciliation.
func (s *checkoutService) settleRejectedPayment(ctx context.Context, paymentID string, total decimal.Decimal, placeErr error) {
	log := s.logger.With().
		Str("payment_id", paymentID).
		Str("amount", total.StringFixed(2)).
		Logger()

	var domainErr *model.DomainError
	switch {
	case errors.Is(placeErr, model.ErrPaymentAlreadyUsed):
		return
	case !errors.As(placeErr, &domainErr):
		log.Error().Err(placeErr).Msg("payment captured but order not placed")
		return
	}

	if err := s.gateway.Refund(ctx, paymentID); err != nil {
		log.Error().
			Err(err).
			Str("reason", domainErr.Code).
			Msg("payment captured but order not placed, refund failed")
		return
	}

	log.Warn().Str("reason", domainErr.Code).Msg("order rejected after payment, payment refunded")
}
