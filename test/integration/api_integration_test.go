package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"race-kart/internal/abandoned"
	"race-kart/internal/cart"
	"race-kart/internal/coupon"
	"race-kart/internal/events"
	"race-kart/internal/handler"
	"race-kart/internal/middleware"
	"race-kart/internal/model"
	"race-kart/internal/payment"
	"race-kart/internal/repository"
	"race-kart/internal/router"
	"race-kart/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtSecret = []byte("integration-jwt-secret")

func setupTestServer(t *testing.T, pool *pgxpool.Pool) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()

	raceRepo := repository.NewRaceRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	abandonedRepo := repository.NewAbandonedCartRepository(pool, logger)
	couponRepo := repository.NewCouponRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	tracker := abandoned.NewTracker(abandonedRepo, logger)
	raceService := service.NewRaceService(raceRepo, logger)
	orderService := service.NewOrderService(orderRepo, 11, logger)
	checkoutService := service.NewCheckoutService(
		orderService,
		coupon.NewValidator(couponRepo, logger),
		payment.NewDevGateway(logger),
		events.NewNopPublisher(logger),
		logger,
	)

	stores := handler.NewCartStores(
		cart.NewCookieStore("0123456789abcdef0123456789abcdef", false, 3600),
		repository.NewGuestCartRepository(pool, logger),
		cartRepo, raceService, logger,
		cart.WithObserver(tracker),
		cart.WithMigrator(tracker),
	)

	srv := httptest.NewServer(router.New(router.Handlers{
		Races:    handler.NewRaceHandler(raceService, logger),
		Cart:     handler.NewCartHandler(stores, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, stores, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Coupons:  handler.NewCouponHandler(coupon.NewImporter(coupon.NewFileLoader(logger), couponRepo, logger), logger),
	}, router.Auth{APIKey: "test-api-key", JWTSecret: jwtSecret}, logger))
	t.Cleanup(srv.Close)

	return srv
}

// apiClient is one browser: it keeps its session cookie and, once signed in, a bearer token.
type apiClient struct {
	t     *testing.T
	base  string
	http   *http.Client
	token  string
	apiKey string
}

func newAPIClient(t *testing.T, srv *httptest.Server) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: srv.URL, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *apiClient) signIn(userID, email string) {
	token, err := middleware.SignToken(jwtSecret, model.Owner{UserID: userID, Email: email, Name: "Runner " + userID}, time.Hour)
	require.NoError(c.t, err)
	c.token = token
}

func (c *apiClient) do(method, path string, body, out interface{}) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func pickupCheckout(paymentID, couponCode string) model.CheckoutRequest {
	req := model.CheckoutRequest{
		PaymentID: paymentID,
		Delivery:  model.DeliveryInfo{Method: model.DeliveryPickup},
	}
	if couponCode != "" {
		req.CouponCode = &couponCode
	}
	return req
}

func TestRaceAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	SeedRaces(t, testDB.Pool)
	c := newAPIClient(t, setupTestServer(t, testDB.Pool))

	t.Run("List races", func(t *testing.T) {
		var races []model.Race
		status := c.do(http.MethodGet, "/api/races?limit=10", nil, &races)

		assert.Equal(t, http.StatusOK, status)
		require.Len(t, races, 2)
		assert.Equal(t, "R1", races[0].ID)
	})

	t.Run("Get race", func(t *testing.T) {
		var race model.Race
		status := c.do(http.MethodGet, "/api/races/R2", nil, &race)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Beach Half", race.Name)
		require.Len(t, race.Options, 1)
		assert.Equal(t, "120", race.Options[0].Lots[0].Price.String())
	})

	t.Run("Unknown race", func(t *testing.T) {
		var errResp model.ErrorResponse
		status := c.do(http.MethodGet, "/api/races/R404", nil, &errResp)

		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, model.ErrCodeRaceNotFound, errResp.Error)
	})
}

func TestCheckoutFlow_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	SeedRaces(t, testDB.Pool)
	SeedCoupon(t, testDB.Pool, "RUN10", 10, 1)
	srv := setupTestServer(t, testDB.Pool)
	c := newAPIClient(t, srv)

	// Guest fills a cart
	var cartResp model.CartResponse
	status := c.do(http.MethodPost, "/api/cart/items", model.AddToCartRequest{RaceID: "R1", Distance: "5K", Quantity: 2}, &cartResp)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, cartResp.Items, 1)
	assert.Equal(t, "100", cartResp.Totals.Subtotal.String())

	// Guests cannot check out
	status = c.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_guest", ""), nil)
	require.Equal(t, http.StatusUnauthorized, status)

	// The user already had a 10K in their account cart
	_, err := testDB.Pool.Exec(context.Background(),
		"INSERT INTO carts (user_id, items) VALUES ($1, $2)",
		"user-1", []model.CartItem{{
			RaceID:   "R1",
			RaceName: "Night Run",
			Option:   model.RaceOption{Distance: "10K", Lots: []model.Lot{{Name: "1st lot", Price: decimal.NewFromInt(70)}}},
			Quantity: 1,
		}},
	)
	require.NoError(t, err)

	c.signIn("user-1", "ana@example.com")

	var merged handler.MergeResponse
	status = c.do(http.MethodPost, "/api/cart/merge", nil, &merged)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, merged.Merged)
	require.Len(t, merged.Cart.Items, 2)
	assert.Equal(t, 3, merged.Cart.Totals.TotalItems)

	var placed model.PlaceOrderResult
	status = c.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_123", "RUN10"), &placed)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, placed.OrderNumber, 10)
	assert.Len(t, placed.ParticipantIDs, 3)

	assert.Equal(t, 1, CouponUses(t, testDB.Pool, "RUN10"))

	var order model.OrderResponse
	status = c.do(http.MethodGet, "/api/orders/"+placed.OrderID, nil, &order)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1", order.Order.UserID)
	assert.Equal(t, "ana@example.com", order.Order.ResponsibleEmail)
	assert.Equal(t, "170", order.Order.Subtotal.String())
	assert.Equal(t, "17", order.Order.CouponDiscount.String())
	assert.Equal(t, "153", order.Order.TotalAmount.String())
	require.Len(t, order.Participants, 3)
	for _, p := range order.Participants {
		assert.Equal(t, model.KitPending, p.KitStatus)
		assert.Equal(t, placed.OrderID, p.OrderID)
	}

	// Cart is cleared after the order commits
	status = c.do(http.MethodGet, "/api/cart", nil, &cartResp)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, cartResp.Items)

	var abandonedStatus string
	err = testDB.Pool.QueryRow(context.Background(),
		"SELECT status FROM abandoned_carts WHERE order_id = $1", placed.OrderID,
	).Scan(&abandonedStatus)
	require.NoError(t, err)
	assert.Equal(t, string(model.AbandonedCartConverted), abandonedStatus)

	// Another user cannot read the order
	other := newAPIClient(t, srv)
	other.signIn("user-2", "bia@example.com")
	var errResp model.ErrorResponse
	status = other.do(http.MethodGet, "/api/orders/"+placed.OrderID, nil, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, model.ErrCodeOrderNotFound, errResp.Error)

	// The single-use coupon is spent
	status = other.do(http.MethodPost, "/api/cart/items", model.AddToCartRequest{RaceID: "R2", Distance: "21K", Quantity: 1}, nil)
	require.Equal(t, http.StatusOK, status)
	status = other.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_456", "RUN10"), &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, model.ErrCodeCouponExhausted, errResp.Error)
}

func TestCheckout_CouponRace_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	SeedRaces(t, testDB.Pool)
	SeedCoupon(t, testDB.Pool, "LASTONE", 20, 1)
	srv := setupTestServer(t, testDB.Pool)

	const buyers = 5
	clients := make([]*apiClient, buyers)
	for i := range buyers {
		c := newAPIClient(t, srv)
		c.signIn("buyer-"+string(rune('a'+i)), "buyer@example.com")
		require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/cart/items", model.AddToCartRequest{RaceID: "R2", Distance: "21K", Quantity: 1}, nil))
		clients[i] = c
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses []int
	)
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *apiClient) {
			defer wg.Done()
			status := c.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_race_"+string(rune('a'+i)), "LASTONE"), nil)
			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()
		}(i, c)
	}
	wg.Wait()

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		default:
			assert.Equal(t, http.StatusConflict, status)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, CouponUses(t, testDB.Pool, "LASTONE"))

	var orders int
	require.NoError(t, testDB.Pool.QueryRow(context.Background(), "SELECT count(*) FROM orders").Scan(&orders))
	assert.Equal(t, 1, orders)

	var participants int
	require.NoError(t, testDB.Pool.QueryRow(context.Background(), "SELECT count(*) FROM participants").Scan(&participants))
	assert.Equal(t, 1, participants)
}

func TestCheckout_PaymentReplay_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	SeedRaces(t, testDB.Pool)
	c := newAPIClient(t, setupTestServer(t, testDB.Pool))
	c.signIn("user-1", "ana@example.com")

	addBeachHalf := func() {
		require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/cart/items", model.AddToCartRequest{RaceID: "R2", Distance: "21K", Quantity: 1}, nil))
	}

	addBeachHalf()
	var placed model.PlaceOrderResult
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_once", ""), &placed))

	// same total, same payment
	addBeachHalf()
	var errResp model.ErrorResponse
	status := c.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_once", ""), &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, model.ErrCodePaymentAlreadyUsed, errResp.Error)

	var orders int
	require.NoError(t, testDB.Pool.QueryRow(context.Background(), "SELECT count(*) FROM orders WHERE payment_id = 'pi_once'").Scan(&orders))
	assert.Equal(t, 1, orders)

	// the rejected checkout keeps the cart for a new payment
	var cartResp model.CartResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/cart", nil, &cartResp))
	assert.Len(t, cartResp.Items, 1)
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_twice", ""), &placed))
}

func TestCouponImport_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	SeedRaces(t, testDB.Pool)
	srv := setupTestServer(t, testDB.Pool)
	sampleFile := filepath.Join("..", "..", "internal", "coupon", "testdata", "sample_coupons.gz")

	t.Run("Requires API key", func(t *testing.T) {
		c := newAPIClient(t, srv)
		var errResp model.ErrorResponse
		status := c.do(http.MethodPost, "/api/admin/coupons/import", model.ImportCouponsRequest{Files: []string{sampleFile}}, &errResp)

		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, model.ErrCodeUnauthorised, errResp.Error)
	})

	t.Run("Missing file", func(t *testing.T) {
		c := newAPIClient(t, srv)
		c.apiKey = "test-api-key"
		var errResp model.ErrorResponse
		status := c.do(http.MethodPost, "/api/admin/coupons/import", model.ImportCouponsRequest{Files: []string{"missing.gz"}}, &errResp)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, model.ErrCodeValidation, errResp.Error)
	})

	t.Run("Imported coupon applies at checkout", func(t *testing.T) {
		admin := newAPIClient(t, srv)
		admin.apiKey = "test-api-key"
		var imported model.ImportCouponsResponse
		status := admin.do(http.MethodPost, "/api/admin/coupons/import", model.ImportCouponsRequest{Files: []string{sampleFile}}, &imported)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 4, imported.Imported)

		buyer := newAPIClient(t, srv)
		buyer.signIn("user-9", "caio@example.com")
		require.Equal(t, http.StatusOK, buyer.do(http.MethodPost, "/api/cart/items", model.AddToCartRequest{RaceID: "R2", Distance: "21K", Quantity: 1}, nil))

		var placed model.PlaceOrderResult
		require.Equal(t, http.StatusCreated, buyer.do(http.MethodPost, "/api/checkout", pickupCheckout("pi_team", "TEAM50"), &placed))

		var order model.OrderResponse
		require.Equal(t, http.StatusOK, buyer.do(http.MethodGet, "/api/orders/"+placed.OrderID, nil, &order))
		assert.Equal(t, "70", order.Order.TotalAmount.String())
		require.NotNil(t, order.Order.CouponCode)
		assert.Equal(t, "TEAM50", *order.Order.CouponCode)
		assert.Equal(t, 1, CouponUses(t, testDB.Pool, "TEAM50"))
	})
}

func TestCORS_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	srv := setupTestServer(t, testDB.Pool)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/cart", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}
