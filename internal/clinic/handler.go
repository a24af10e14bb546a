package clinic

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler provides HTTP endpoints for clinic configuration management.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a new clinic config HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Routes returns a chi router with clinic admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{clinicID}/config", h.GetConfig)
	r.Put("/{clinicID}/config", h.UpdateConfig)
	return r
}

// GetConfig returns the clinic configuration.
// GET /admin/clinics/{clinicID}/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to get clinic config", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.logger.Error("failed to encode clinic config", "clinic_id", clinicID, "error", err)
	}
}

// UpdateConfigRequest is the request body for updating clinic config.
type UpdateConfigRequest struct {
	Name               string         `json:"name,omitempty"`
	Phone              string         `json:"phone,omitempty"`
	Timezone           string         `json:"timezone,omitempty"`
	BusinessHours      *BusinessHours `json:"business_hours,omitempty"`
	DepositAmountCents *int           `json:"deposit_amount_cents,omitempty"`
}

// UpdateConfig creates or updates the clinic configuration.
// PUT /admin/clinics/{clinicID}/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	cfg, err := h.store.Get(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to load clinic config", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.Name != "" {
		cfg.Name = req.Name
	}
	if req.Phone != "" {
		cfg.Phone = req.Phone
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, `{"error": "invalid timezone"}`, http.StatusBadRequest)
			return
		}
		cfg.Timezone = req.Timezone
	}
	if req.BusinessHours != nil {
		cfg.BusinessHours = *req.BusinessHours
	}
	if req.DepositAmountCents != nil {
		cfg.DepositAmountCents = *req.DepositAmountCents
	}

	if err := h.store.Set(r.Context(), cfg); err != nil {
		h.logger.Error("failed to save clinic config", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic config updated", "clinic_id", clinicID)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		h.logger.Error("failed to encode clinic config", "clinic_id", clinicID, "error", err)
	}
}
