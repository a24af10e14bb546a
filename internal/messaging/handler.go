package messaging

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler exposes the outbound message log.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a messaging HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns a chi router with the message log routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListForAppointment)
	return r
}

// ListForAppointment returns the messages sent for an appointment.
// GET /api/messages?appointment_id=
func (h *Handler) ListForAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(r.URL.Query().Get("appointment_id"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment_id"}`, http.StatusBadRequest)
		return
	}

	records, err := h.store.ListForAppointment(r.Context(), appointmentID)
	if err != nil {
		h.logger.Error("failed to list messages", "appointment_id", appointmentID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	messages := make([]map[string]any, len(records))
	for i, rec := range records {
		messages[i] = map[string]any{
			"id":         rec.ID,
			"recipient":  rec.Recipient,
			"body":       rec.Body,
			"category":   string(rec.Category),
			"status":     string(rec.Status),
			"created_at": rec.CreatedAt.Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"messages": messages}); err != nil {
		h.logger.Error("failed to encode messages", "appointment_id", appointmentID, "error", err)
	}
}
