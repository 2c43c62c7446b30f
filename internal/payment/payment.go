package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
)

// Gateway confirms that a payment was captured before an order is placed.
type Gateway interface {
	// Confirm returns model.ErrPaymentNotConfirmed unless paymentID names a
	// completed payment of exactly amount.
	Confirm(ctx context.Context, paymentID string, amount decimal.Decimal) error

	// Refund returns the full captured amount of paymentID. Repeated calls
	// for the same payment refund it once.
	Refund(ctx context.Context, paymentID string) error
}

// intentGetter is the subset of the Stripe PaymentIntent client used here.
type intentGetter interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// refundCreator is the subset of the Stripe Refund client used here.
type refundCreator interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// stripeGateway confirms and refunds Stripe PaymentIntents.
type stripeGateway struct {
	intents  intentGetter
	refunds  refundCreator
	currency stripe.Currency
	logger   zerolog.Logger
}

// NewStripeGateway creates a gateway backed by the Stripe API.
func NewStripeGateway(secretKey, currency string, logger zerolog.Logger) Gateway {
	backend := stripe.GetBackend(stripe.APIBackend)
	return newStripeGateway(
		&paymentintent.Client{B: backend, Key: secretKey},
		&refund.Client{B: backend, Key: secretKey},
		currency,
		logger,
	)
}

func newStripeGateway(intents intentGetter, refunds refundCreator, currency string, logger zerolog.Logger) *stripeGateway {
	return &stripeGateway{
		intents:  intents,
		refunds:  refunds,
		currency: stripe.Currency(currency),
		logger:   logger.With().Str("component", "stripe-gateway").Logger(),
	}
}

// Confirm checks that the PaymentIntent succeeded for the expected amount and currency.
func (g *stripeGateway) Confirm(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	if paymentID == "" {
		return model.ErrPaymentNotConfirmed
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.intents.Get(paymentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			g.logger.Warn().Str("payment_id", paymentID).Msg("payment intent not found")
			return model.ErrPaymentNotConfirmed
		}
		g.logger.Error().Err(err).Str("payment_id", paymentID).Msg("failed to retrieve payment intent")
		return fmt.Errorf("failed to retrieve payment intent: %w", err)
	}

	expected := amount.Shift(2).Round(0).IntPart()

	if pi.Status != stripe.PaymentIntentStatusSucceeded ||
		pi.AmountReceived != expected ||
		(g.currency != "" && pi.Currency != g.currency) {
		g.logger.Warn().
			Str("payment_id", paymentID).
			Str("status", string(pi.Status)).
			Int64("amount_received", pi.AmountReceived).
			Int64("expected", expected).
			Str("currency", string(pi.Currency)).
			Msg("payment not confirmed")
		return model.ErrPaymentNotConfirmed
	}

	g.logger.Debug().Str("payment_id", paymentID).Int64("amount", expected).Msg("payment confirmed")

	return nil
}

// Refund refunds the PaymentIntent in full. The idempotency key makes a
// retried refund a no-op on Stripe's side.
func (g *stripeGateway) Refund(ctx context.Context, paymentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentID)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentID)

	r, err := g.refunds.New(params)
	if err != nil {
		g.logger.Error().Err(err).Str("payment_id", paymentID).Msg("failed to refund payment")
		return fmt.Errorf("failed to refund payment %s: %w", paymentID, err)
	}

	g.logger.Info().
		Str("payment_id", paymentID).
		Str("refund_id", r.ID).
		Str("status", string(r.Status)).
		Msg("payment refunded")

	return nil
}

// devGateway approves every non-empty payment id. It exists for local runs
// without a Stripe account.
type devGateway struct {
	logger zerolog.Logger
}

// NewDevGateway creates a gateway that accepts any payment id.
func NewDevGateway(logger zerolog.Logger) Gateway {
	return &devGateway{logger: logger.With().Str("component", "dev-gateway").Logger()}
}

// Confirm accepts any non-empty payment id.
func (g *devGateway) Confirm(_ context.Context, paymentID string, amount decimal.Decimal) error {
	if paymentID == "" {
		return model.ErrPaymentNotConfirmed
	}
	g.logger.Warn().
		Str("payment_id", paymentID).
		Str("amount", amount.String()).
		Msg("payment accepted without verification")
	return nil
}

// Refund only records the refund in the log.
func (g *devGateway) Refund(_ context.Context, paymentID string) error {
	g.logger.Warn().Str("payment_id", paymentID).Msg("payment refund skipped in dev gateway")
	return nil
}
