package waitlist

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler exposes the waitlist over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates a waitlist HTTP handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes returns a chi router with the waitlist routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Add)
	r.Post("/{entryID}/claim", h.Claim)
	r.Get("/position", h.Position)
	return r
}

// AddRequest is the request body for joining a waitlist.
type AddRequest struct {
	ClinicID  string    `json:"clinic_id"`
	PatientID uuid.UUID `json:"patient_id"`
	SlotAt    time.Time `json:"slot_at"`
	Priority  int       `json:"priority"`
}

// Add queues a patient for a slot.
// POST /api/waitlist
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.ClinicID == "" || req.PatientID == uuid.Nil || req.SlotAt.IsZero() {
		http.Error(w, `{"error": "clinic_id, patient_id and slot_at required"}`, http.StatusBadRequest)
		return
	}

	entry, err := h.engine.Add(r.Context(), req.ClinicID, req.SlotAt, req.PatientID, req.Priority)
	if err != nil {
		h.logger.Error("failed to add waitlist entry",
			"clinic_id", req.ClinicID,
			"patient_id", req.PatientID,
			"error", err,
		)
		http.Error(w, `{"error": "could not join waitlist"}`, http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"entry_id": entry.ID,
		"slot_at":  entry.SlotAt.Format(time.RFC3339),
		"priority": entry.Priority,
	}); err != nil {
		h.logger.Error("failed to encode waitlist entry", "entry_id", entry.ID, "error", err)
	}
}

// ClaimRequest is the request body for claiming a released slot.
type ClaimRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

// Claim attempts to take a released slot. A lost race returns 409 with a
// structured reason rather than an error payload.
// POST /api/waitlist/{entryID}/claim
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, `{"error": "invalid entry id"}`, http.StatusBadRequest)
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, `{"error": "patient_id required"}`, http.StatusBadRequest)
		return
	}

	result, err := h.engine.Claim(r.Context(), entryID, req.PatientID)
	if err != nil {
		h.logger.Error("failed to claim waitlist entry", "entry_id", entryID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !result.Claimed {
		w.WriteHeader(http.StatusConflict)
	}
	if err := json.NewEncoder(w).Encode(map[string]any{
		"claimed":  result.Claimed,
		"entry_id": result.EntryID,
		"reason":   string(result.Reason),
	}); err != nil {
		h.logger.Error("failed to encode claim result", "entry_id", entryID, "error", err)
	}
}

// Position reports a patient's place in the queue for a slot.
// GET /api/waitlist/position?clinic_id=&slot_at=&patient_id=
func (h *Handler) Position(w http.ResponseWriter, r *http.Request) {
	clinicID := r.URL.Query().Get("clinic_id")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}
	slotAt, err := time.Parse(time.RFC3339, r.URL.Query().Get("slot_at"))
	if err != nil {
		http.Error(w, `{"error": "invalid slot_at, expected RFC3339"}`, http.StatusBadRequest)
		return
	}
	patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
	if err != nil {
		http.Error(w, `{"error": "invalid patient_id"}`, http.StatusBadRequest)
		return
	}

	pos, err := h.engine.Position(r.Context(), clinicID, slotAt, patientID)
	if err != nil {
		h.logger.Error("failed to compute waitlist position",
			"clinic_id", clinicID,
			"patient_id", patientID,
			"error", err,
		)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"rank":                pos.Rank,
		"total":               pos.Total,
		"within_notify_range": pos.WithinNotifyRange,
	}); err != nil {
		h.logger.Error("failed to encode waitlist position", "patient_id", patientID, "error", err)
	}
}
