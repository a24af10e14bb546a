package slots

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/internal/appointments"
	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler exposes the availability query over HTTP.
type Handler struct {
	calc   *Calculator
	logger *logging.Logger
}

// NewHandler creates a slots HTTP handler.
func NewHandler(calc *Calculator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{calc: calc, logger: logger}
}

// Routes returns a chi router with the availability routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListAvailable)
	return r
}

// ListAvailable enumerates open start times for a clinic day.
// GET /api/appointments/slots?clinic_id=&type_id=&date=YYYY-MM-DD
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	clinicID := r.URL.Query().Get("clinic_id")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	typeID, err := uuid.Parse(r.URL.Query().Get("type_id"))
	if err != nil {
		http.Error(w, `{"error": "invalid type_id"}`, http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, `{"error": "invalid date, expected YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	available, err := h.calc.AvailableSlots(r.Context(), clinicID, typeID, date)
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrNotFound):
			http.Error(w, `{"error": "appointment type not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrNoProviders):
			http.Error(w, `{"error": "no providers available"}`, http.StatusConflict)
		default:
			h.logger.Error("failed to compute slots", "clinic_id", clinicID, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	slots := make([]string, len(available))
	for i, s := range available {
		slots[i] = s.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"clinic_id": clinicID,
		"date":      date.Format("2006-01-02"),
		"slots":     slots,
	}); err != nil {
		h.logger.Error("failed to encode slots", "clinic_id", clinicID, "error", err)
	}
}
