package router

import (
	"net/http"

	"race-kart/internal/handler"
	"race-kart/internal/middleware"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Races    *handler.RaceHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Coupons  *handler.CouponHandler
}

// Auth holds the credentials the router enforces.
type Auth struct {
	APIKey    string
	JWTSecret []byte
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, auth Auth, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	// Race catalogue
	mux.HandleFunc("GET /api/races", h.Races.GetAll)
	mux.HandleFunc("GET /api/races/{id}", h.Races.GetByID)

	// Cart, for guests and signed-in users
	mux.HandleFunc("GET /api/cart", h.Cart.Get)
	mux.HandleFunc("DELETE /api/cart", h.Cart.Clear)
	mux.HandleFunc("POST /api/cart/items", h.Cart.AddItem)
	mux.HandleFunc("PATCH /api/cart/items/{key}", h.Cart.UpdateItem)
	mux.HandleFunc("DELETE /api/cart/items/{key}", h.Cart.RemoveItem)

	// Signed-in only
	mux.Handle("POST /api/cart/merge", middleware.RequireUser(http.HandlerFunc(h.Cart.Merge)))
	mux.Handle("POST /api/checkout", middleware.RequireUser(http.HandlerFunc(h.Checkout.Checkout)))
	mux.Handle("GET /api/orders/{id}", middleware.RequireUser(http.HandlerFunc(h.Orders.GetByID)))

	// Admin
	mux.Handle("POST /api/admin/coupons/import",
		middleware.APIKeyAuth(auth.APIKey, logger)(http.HandlerFunc(h.Coupons.Import)))

	// Apply middleware in order: Tracing -> RequestID -> Recovery -> Logging -> CORS -> Authenticate
	var handler http.Handler = mux
	handler = middleware.Authenticate(auth.JWTSecret, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = otelhttp.NewHandler(handler, "race-kart",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	return handler
}
