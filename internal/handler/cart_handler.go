package handler

import (
	"fmt"
	"net/http"

	"race-kart/internal/cart"
	"race-kart/internal/middleware"
	"race-kart/internal/model"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

// CartStores builds the per-request cart store of the caller.
type CartStores struct {
	sessions sessions.Store
	guest    cart.Storage
	remote   cart.Storage
	catalog  cart.Catalog
	options  []cart.Option
	logger   zerolog.Logger
}

// NewCartStores creates the cart store factory. The cookie session only
// identifies the guest; guest carts live in guest keyed by that id and
// signed-in carts in remote.
func NewCartStores(sessionStore sessions.Store, guest, remote cart.Storage, catalog cart.Catalog, logger zerolog.Logger, opts ...cart.Option) *CartStores {
	return &CartStores{
		sessions: sessionStore,
		guest:    guest,
		remote:   remote,
		catalog:  catalog,
		options:  append(opts, cart.WithLogger(logger)),
		logger:   logger,
	}
}

// For returns the cart store of the request's caller. The guest session id
// is always resolved so a later login can merge the guest cart.
func (f *CartStores) For(w http.ResponseWriter, r *http.Request) (*cart.Store, error) {
	sessionID, err := cart.NewSession(f.sessions, w, r).ID()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guest session: %w", err)
	}

	owner := model.Owner{SessionID: sessionID}
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		user.SessionID = sessionID
		owner = user
	}

	return cart.NewStore(owner, f.guest, f.remote, f.catalog, f.options...), nil
}

// CartHandler handles cart HTTP requests.
type CartHandler struct {
	stores *CartStores
	logger zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(stores *CartStores, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		stores: stores,
		logger: logger.With().Str("handler", "cart").Logger(),
	}
}

// MergeResponse is returned by the merge endpoint.
type MergeResponse struct {
	Merged bool                `json:"merged"`
	Cart   *model.CartResponse `json:"cart"`
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.respond(w, r, store)
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if req.RaceID == "" || req.Distance == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "raceId and distance are required", h.logger)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.AddToCart(r.Context(), req.RaceID, req.Distance, req.Quantity); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.respond(w, r, store)
}

// UpdateItem handles PATCH /api/cart/items/{key} requests. A quantity below
// one removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseLineKey(r.PathValue("key"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	var req model.UpdateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.UpdateQuantity(r.Context(), key, req.Quantity); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.respond(w, r, store)
}

// RemoveItem handles DELETE /api/cart/items/{key} requests.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseLineKey(r.PathValue("key"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.RemoveFromCart(r.Context(), key); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.respond(w, r, store)
}

// Clear handles DELETE /api/cart requests.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := store.ClearCart(r.Context()); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.respond(w, r, store)
}

// Merge handles POST /api/cart/merge requests, folding the guest cart of
// this browser session into the signed-in user's cart.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	merged, err := store.MergeGuestCart(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	snapshot, err := store.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{Merged: merged, Cart: snapshot})
}

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	store, err := h.stores.For(w, r)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return nil, false
	}
	return store, true
}

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, store *cart.Store) {
	snapshot, err := store.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
