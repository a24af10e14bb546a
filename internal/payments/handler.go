package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler exposes deposit status over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a payments HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi router with the payment routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{appointmentID}", h.Status)
	r.Post("/{appointmentID}/authorize", h.Authorize)
	return r
}

// AuthorizeRequest is the request body for placing a deposit hold.
type AuthorizeRequest struct {
	AmountCents int `json:"amount_cents"`
}

// Authorize places a deposit hold for an appointment. The booking flow calls
// this right after creating an appointment whose type requires a deposit.
// POST /api/payments/{appointmentID}/authorize
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}

	var req AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.AmountCents <= 0 {
		http.Error(w, `{"error": "amount_cents must be positive"}`, http.StatusBadRequest)
		return
	}

	p, err := h.service.Authorize(r.Context(), appointmentID, req.AmountCents)
	if err != nil {
		if errors.Is(err, ErrAlreadyAuthorized) {
			http.Error(w, `{"error": "deposit already authorized"}`, http.StatusConflict)
			return
		}
		h.logger.Error("failed to authorize deposit", "appointment_id", appointmentID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"payment_id":   p.ID,
		"amount_cents": p.AmountCents,
		"status":       string(p.Status),
		"provider_ref": p.ProviderRef,
	}); err != nil {
		h.logger.Error("failed to encode authorization", "appointment_id", appointmentID, "error", err)
	}
}

// Status reports the latest payment row for an appointment.
// GET /api/payments/{appointmentID}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}

	p, err := h.service.Status(r.Context(), appointmentID)
	if err != nil {
		if errors.Is(err, ErrNoEligiblePayment) {
			http.Error(w, `{"error": "no payment on record"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load payment status", "appointment_id", appointmentID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, `{"error": "no payment on record"}`, http.StatusNotFound)
		return
	}

	body := map[string]any{
		"payment_id":     p.ID,
		"appointment_id": p.AppointmentID,
		"amount_cents":   p.AmountCents,
		"status":         string(p.Status),
		"created_at":     p.CreatedAt.Format(time.RFC3339),
	}
	if p.Status == StatusCharged {
		body["clinic_amount_cents"] = p.ClinicAmountCents
		body["platform_fee_cents"] = p.PlatformFeeCents
	}
	if p.Status == StatusRefunded {
		body["refund_amount_cents"] = p.RefundAmountCents
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode payment status", "appointment_id", appointmentID, "error", err)
	}
}
