package handler

import (
	"net/http"
	"strconv"

	"race-kart/internal/model"
	"race-kart/internal/service"

	"github.com/rs/zerolog"
)

// RaceHandler handles race catalogue HTTP requests.
type RaceHandler struct {
	service service.RaceService
	logger  zerolog.Logger
}

// NewRaceHandler creates a new race handler.
func NewRaceHandler(service service.RaceService, logger zerolog.Logger) *RaceHandler {
	return &RaceHandler{
		service: service,
		logger:  logger.With().Str("handler", "race").Logger(),
	}
}

// GetAll handles GET /api/races requests with pagination.
func (h *RaceHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intParam(w, r, "limit", 10)
	if !ok {
		return
	}
	offset, ok := h.intParam(w, r, "offset", 0)
	if !ok {
		return
	}

	races, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, races)
}

// GetByID handles GET /api/races/{id} requests.
func (h *RaceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "race ID is required", h.logger)
		return
	}

	race, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if race == nil {
		writeServiceError(w, r, model.ErrRaceNotFound, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, race)
}

func (h *RaceHandler) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid "+name+" parameter", h.logger)
		return 0, false
	}
	return v, true
}
