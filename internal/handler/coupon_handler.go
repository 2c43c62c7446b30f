package handler

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
)

// CouponImporter loads coupon files and stores their coupons.
type CouponImporter interface {
	Import(ctx context.Context, files []string) (int, error)
}

// CouponHandler handles coupon administration HTTP requests.
type CouponHandler struct {
	importer CouponImporter
	logger   zerolog.Logger
}

// NewCouponHandler creates a new coupon handler.
func NewCouponHandler(importer CouponImporter, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		importer: importer,
		logger:   logger.With().Str("handler", "coupon").Logger(),
	}
}

// Import handles POST /api/admin/coupons/import requests.
func (h *CouponHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req model.ImportCouponsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if len(req.Files) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "at least one file is required", h.logger)
		return
	}

	imported, err := h.importer.Import(r.Context(), req.Files)
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "coupon file not found", h.logger)
		return
	}
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.ImportCouponsResponse{Imported: imported})
}
