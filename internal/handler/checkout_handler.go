package handler

import (
	"net/http"

	"race-kart/internal/model"
	"race-kart/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout HTTP requests.
type CheckoutHandler struct {
	service service.CheckoutService
	stores  *CartStores
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, stores *CartStores, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		stores:  stores,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Checkout handles POST /api/checkout requests.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if req.PaymentID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "paymentId is required", h.logger)
		return
	}

	store, err := h.stores.For(w, r)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Checkout(r.Context(), store, &req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
