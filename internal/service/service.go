package service

import (
	"context"

	"race-kart/internal/cart"
	"race-kart/internal/model"
)

// RaceService defines operations on the race catalogue.
type RaceService interface {
	// GetAll retrieves races with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Race, error)

	// GetByID retrieves a single race, or nil when it does not exist.
	GetByID(ctx context.Context, id string) (*model.Race, error)
}

// OrderService defines order placement and lookup.
type OrderService interface {
	// PlaceOrder writes the order, its participants and the coupon usage as
	// one atomic unit. Payment must already be confirmed.
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*model.PlaceOrderResult, error)

	// GetOrder retrieves an order with its participants for the user who placed it.
	GetOrder(ctx context.Context, id, userID string) (*model.OrderResponse, error)
}

// CheckoutService turns a signed-in user's cart into an order.
type CheckoutService interface {
	// Checkout confirms payment, places the order and clears the cart. The
	// cart is left untouched when any step before the commit fails.
	Checkout(ctx context.Context, store *cart.Store, req *model.CheckoutRequest) (*model.PlaceOrderResult, error)
}

// PlaceOrderRequest carries everything an order is built from.
type PlaceOrderRequest struct {
	UserID    string
	Items     []model.CartItem
	Payer     model.PayerInfo
	Delivery  model.DeliveryInfo
	PaymentID string
	Coupon    *model.AppliedCoupon
}
