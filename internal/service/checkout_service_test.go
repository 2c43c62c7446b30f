package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"race-kart/internal/cart"
	"race-kart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memoryCartStorage is an in-memory cart.Storage keyed by owner key.
type memoryCartStorage struct {
	mu    sync.Mutex
	carts map[string][]model.CartItem
}

func newMemoryCartStorage() *memoryCartStorage {
	return &memoryCartStorage{carts: make(map[string][]model.CartItem)}
}

func (m *memoryCartStorage) Load(ctx context.Context, owner model.Owner) ([]model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CartItem(nil), m.carts[owner.Key()]...), nil
}

func (m *memoryCartStorage) Save(ctx context.Context, owner model.Owner, items []model.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[owner.Key()] = append([]model.CartItem(nil), items...)
	return nil
}

func (m *memoryCartStorage) Clear(ctx context.Context, owner model.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, owner.Key())
	return nil
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*model.PlaceOrderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlaceOrderResult), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id, userID string) (*model.OrderResponse, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

// MockCouponValidator is a mock implementation of coupon.Validator.
type MockCouponValidator struct {
	mock.Mock
}

func (m *MockCouponValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*model.AppliedCoupon, error) {
	args := m.Called(ctx, code, subtotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AppliedCoupon), args.Error(1)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Confirm(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	args := m.Called(ctx, paymentID, amount)
	return args.Error(0)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderPlaced(ctx context.Context, event model.OrderPlacedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}

func amount(v int64) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.NewFromInt(v)) })
}

type checkoutFixture struct {
	orders    *MockOrderService
	coupons   *MockCouponValidator
	gateway   *MockGateway
	publisher *MockPublisher
	remote    *memoryCartStorage
	store     *cart.Store
	svc       CheckoutService
}

func newCheckoutFixture(owner model.Owner, items ...model.CartItem) *checkoutFixture {
	f := &checkoutFixture{
		orders:    new(MockOrderService),
		coupons:   new(MockCouponValidator),
		gateway:   new(MockGateway),
		publisher: new(MockPublisher),
		remote:    newMemoryCartStorage(),
	}
	if len(items) > 0 {
		f.remote.carts[owner.Key()] = items
	}
	f.store = cart.NewStore(owner, newMemoryCartStorage(), f.remote, nil)
	f.svc = NewCheckoutService(f.orders, f.coupons, f.gateway, f.publisher, zerolog.Nop())
	return f
}

func (f *checkoutFixture) cartItems(t *testing.T) []model.CartItem {
	t.Helper()
	items, err := f.store.Items(context.Background())
	require.NoError(t, err)
	return items
}

var signedIn = model.Owner{UserID: "user-1", Email: "ana@example.com", Name: "Ana Runner"}

func checkoutRequest(code string) *model.CheckoutRequest {
	req := &model.CheckoutRequest{
		PaymentID: "pi_123",
		Payer:     testPayer(),
		Delivery:  homeDelivery(10),
	}
	if code != "" {
		req.CouponCode = &code
	}
	return req
}

func TestCheckoutService_Checkout_Success(t *testing.T) {
	f := newCheckoutFixture(signedIn, cartLine("X", "5K", 50, 2))
	applied := &model.AppliedCoupon{CouponID: "c-1", Code: "TEAM50", DiscountAmount: decimal.NewFromInt(20)}
	placed := &model.PlaceOrderResult{OrderID: "o-1", OrderNumber: "ABCDEFGHIJ", ParticipantIDs: []string{"p-1", "p-2"}}

	f.coupons.On("Validate", mock.Anything, "TEAM50", amount(100)).Return(applied, nil)
	f.gateway.On("Confirm", mock.Anything, "pi_123", amount(90)).Return(nil)
	f.orders.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r *PlaceOrderRequest) bool {
		return r.UserID == "user-1" && len(r.Items) == 1 && r.Coupon == applied && r.PaymentID == "pi_123"
	})).Return(placed, nil)
	f.publisher.On("PublishOrderPlaced", mock.Anything, mock.MatchedBy(func(e model.OrderPlacedEvent) bool {
		return e.OrderID == "o-1" && e.ParticipantCount == 2 && e.RaceID == "X" && e.TotalAmount.Equal(decimal.NewFromInt(90))
	})).Return(nil)

	result, err := f.svc.Checkout(context.Background(), f.store, checkoutRequest("TEAM50"))

	require.NoError(t, err)
	assert.Equal(t, placed, result)
	assert.Empty(t, f.cartItems(t))
	f.coupons.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.orders.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCheckoutService_Checkout_PayerFallsBackToOwner(t *testing.T) {
	f := newCheckoutFixture(signedIn, cartLine("X", "5K", 50, 1))
	placed := &model.PlaceOrderResult{OrderID: "o-1", ParticipantIDs: []string{"p-1"}}

	f.gateway.On("Confirm", mock.Anything, "pi_123", amount(60)).Return(nil)
	f.orders.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r *PlaceOrderRequest) bool {
		return r.Payer.Email == "ana@example.com" && r.Payer.Name == "Ana Runner" && r.Coupon == nil
	})).Return(placed, nil)
	f.publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil)

	req := checkoutRequest("")
	req.Payer = model.PayerInfo{}

	_, err := f.svc.Checkout(context.Background(), f.store, req)

	require.NoError(t, err)
	f.orders.AssertExpectations(t)
	f.coupons.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutService_Checkout_FailuresKeepCart(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		setup   func(f *checkoutFixture)
		wantErr error
	}{
		{
			name: "Invalid coupon",
			code: "NOPE",
			setup: func(f *checkoutFixture) {
				f.coupons.On("Validate", mock.Anything, "NOPE", mock.Anything).Return(nil, model.ErrInvalidPromoCode)
			},
			wantErr: model.ErrInvalidPromoCode,
		},
		{
			name: "Payment not confirmed",
			setup: func(f *checkoutFixture) {
				f.gateway.On("Confirm", mock.Anything, "pi_123", mock.Anything).Return(model.ErrPaymentNotConfirmed)
			},
			wantErr: model.ErrPaymentNotConfirmed,
		},
		{
			name: "Coupon exhausted at commit",
			setup: func(f *checkoutFixture) {
				f.gateway.On("Confirm", mock.Anything, "pi_123", mock.Anything).Return(nil)
				f.gateway.On("Refund", mock.Anything, "pi_123").Return(nil)
				f.orders.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, model.ErrCouponExhausted)
			},
			wantErr: model.ErrCouponExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(signedIn, cartLine("X", "5K", 50, 2))
			tt.setup(f)

			result, err := f.svc.Checkout(context.Background(), f.store, checkoutRequest(tt.code))

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			items := f.cartItems(t)
			require.Len(t, items, 1)
			assert.Equal(t, 2, items[0].Quantity)
			f.publisher.AssertNotCalled(t, "PublishOrderPlaced", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutService_Checkout_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		owner   model.Owner
		items   []model.CartItem
		wantErr error
	}{
		{name: "Guest cannot check out", owner: model.Owner{SessionID: "s-1"}, items: []model.CartItem{cartLine("X", "5K", 50, 1)}, wantErr: model.ErrUnauthenticated},
		{name: "Empty cart", owner: signedIn, wantErr: model.ErrEmptyCart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(tt.owner, tt.items...)

			_, err := f.svc.Checkout(context.Background(), f.store, checkoutRequest(""))

			assert.ErrorIs(t, err, tt.wantErr)
			f.gateway.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
			f.orders.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutService_Checkout_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := newCheckoutFixture(signedIn, cartLine("X", "5K", 50, 1))
	placed := &model.PlaceOrderResult{OrderID: "o-1", ParticipantIDs: []string{"p-1"}}

	f.gateway.On("Confirm", mock.Anything, "pi_123", mock.Anything).Return(nil)
	f.orders.On("PlaceOrder", mock.Anything, mock.Anything).Return(placed, nil)
	f.publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	result, err := f.svc.Checkout(context.Background(), f.store, checkoutRequest(""))

	require.NoError(t, err)
	assert.Equal(t, "o-1", result.OrderID)
	assert.Empty(t, f.cartItems(t))
}

func TestCheckoutService_Checkout_RejectedOrderPayment(t *testing.T) {
	tests := []struct {
		name         string
		placeErr     error
		refundErr    error
		expectRefund bool
	}{
		{name: "Coupon exhausted at commit is refunded", placeErr: model.ErrCouponExhausted, expectRefund: true},
		{name: "Rejected payer is refunded", placeErr: model.NewValidationError("payer email is invalid"), expectRefund: true},
		{name: "Refund failure keeps the rejection", placeErr: model.ErrCouponExhausted, refundErr: errors.New("stripe down"), expectRefund: true},
		{name: "Payment already used is not refunded", placeErr: model.ErrPaymentAlreadyUsed},
		{name: "Unknown commit outcome is not refunded", placeErr: errors.New("failed to place order: connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(signedIn, cartLine("X", "5K", 50, 2))
			f.gateway.On("Confirm", mock.Anything, "pi_123", amount(110)).Return(nil)
			f.orders.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, tt.placeErr)
			if tt.expectRefund {
				f.gateway.On("Refund", mock.Anything, "pi_123").Return(tt.refundErr)
			}

			result, err := f.svc.Checkout(context.Background(), f.store, checkoutRequest(""))

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.placeErr)
			if tt.expectRefund {
				f.gateway.AssertCalled(t, "Refund", mock.Anything, "pi_123")
			} else {
				f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
			}
			assert.Len(t, f.cartItems(t), 1)
			f.publisher.AssertNotCalled(t, "PublishOrderPlaced", mock.Anything, mock.Anything)
		})
	}
}
