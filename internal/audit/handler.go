package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Handler exposes the audit trail for staff review.
type Handler struct {
	recorder *Recorder
	logger   *logging.Logger
}

// NewHandler creates an audit HTTP handler.
func NewHandler(recorder *Recorder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{recorder: recorder, logger: logger}
}

// Routes returns a chi router with the audit routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

// List returns audit entries for an entity, newest first.
// GET /admin/audit?entity_type=&entity_id=&limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")
	if entityType == "" || entityID == "" {
		http.Error(w, `{"error": "entity_type and entity_id required"}`, http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.recorder.Query(r.Context(), entityType, entityID, limit)
	if err != nil {
		h.logger.Error("failed to query audit log",
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"entries": entries}); err != nil {
		h.logger.Error("failed to encode audit entries", "entity_type", entityType, "error", err)
	}
}
