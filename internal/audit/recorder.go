// Package audit records immutable change-history entries for appointment,
// waitlist and payment state transitions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Action is the kind of change being recorded.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
)

// Entry is an immutable audit record.
type Entry struct {
	ID         string          `json:"id"`
	Actor      string          `json:"actor"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Recorder writes audit entries. A failed write is logged and swallowed: the
// audit trail must never abort or roll back a business transition.
type Recorder struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(db *sql.DB, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{db: db, logger: logger}
}

// Record persists an audit entry. Before/after values are JSON-marshalled;
// marshal and insert failures are reported on the logger only.
func (r *Recorder) Record(ctx context.Context, action Action, entityType, entityID string, before, after any) {
	if r == nil || r.db == nil {
		return
	}

	entry := Entry{
		ID:         uuid.NewString(),
		Actor:      "system",
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now().UTC(),
	}

	var err error
	if before != nil {
		if entry.Before, err = json.Marshal(before); err != nil {
			r.logger.Error("audit: marshal before value", "entity_type", entityType, "entity_id", entityID, "error", err)
			return
		}
	}
	if after != nil {
		if entry.After, err = json.Marshal(after); err != nil {
			r.logger.Error("audit: marshal after value", "entity_type", entityType, "entity_id", entityID, "error", err)
			return
		}
	}

	query := `
		INSERT INTO audit_log (id, actor, action, entity_type, entity_id, before_value, after_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Actor,
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		nullJSON(entry.Before),
		nullJSON(entry.After),
		entry.CreatedAt,
	)
	if err != nil {
		// Swallowed on purpose. Monitoring picks this up from the log stream.
		r.logger.Error("audit: write failed", "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// Query retrieves audit entries for an entity, newest first.
func (r *Recorder) Query(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, actor, action, entity_type, entity_id, before_value, after_value, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		var before, after sql.Null[[]byte]
		if err := rows.Scan(&e.ID, &e.Actor, &action, &e.EntityType, &e.EntityID, &before, &after, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		if before.Valid {
			e.Before = before.V
		}
		if after.Valid {
			e.After = after.V
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
