package confirmation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/internal/appointments"
	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler exposes the confirmation response webhook over HTTP. The SMS
// gateway resolves the inbound reply to an appointment and posts it here.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates a confirmation HTTP handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes returns a chi router with the confirmation routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{appointmentID}/respond", h.Respond)
	return r
}

// RespondRequest is the request body for a patient reply.
type RespondRequest struct {
	Response string `json:"response"`
}

// Respond applies a patient reply to its appointment. Rejections come back as
// 200 responses with accepted=false and a reason, so the gateway can relay a
// clear message instead of retrying.
// POST /api/confirmations/{appointmentID}/respond
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.engine.HandleResponse(r.Context(), appointmentID, req.Response)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			http.Error(w, `{"error": "appointment not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to handle response", "appointment_id", appointmentID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	body := map[string]any{"accepted": result.Accepted}
	if result.Intent != "" {
		body["intent"] = string(result.Intent)
	}
	if result.Reason != "" {
		body["reason"] = string(result.Reason)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response result", "appointment_id", appointmentID, "error", err)
	}
}
