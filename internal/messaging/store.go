package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Status is the delivery status recorded for a message.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is a persisted outbound message.
type Record struct {
	ID            uuid.UUID
	ClinicID      string
	Recipient     string
	Body          string
	Category      Category
	AppointmentID uuid.UUID
	Status        Status
	CreatedAt     time.Time
}

// Store persists the outbound message log.
type Store struct {
	db DB
}

// NewStore creates a message log store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Insert records an outbound message with the given delivery status.
func (s *Store) Insert(ctx context.Context, msg *Message, status Status) error {
	var apptID any
	if msg.AppointmentID != uuid.Nil {
		apptID = msg.AppointmentID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, clinic_id, recipient, body, category, appointment_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), msg.ClinicID, msg.Recipient, msg.Body, string(msg.Category),
		apptID, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("messaging: insert message: %w", err)
	}
	return nil
}

// ListForAppointment returns the messages sent for an appointment, newest first.
func (s *Store) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, clinic_id, recipient, body, category, appointment_id, status, created_at
		FROM messages
		WHERE appointment_id = $1
		ORDER BY created_at DESC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("messaging: list for appointment: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var category, status string
		var apptID *uuid.UUID
		if err := rows.Scan(&rec.ID, &rec.ClinicID, &rec.Recipient, &rec.Body, &category, &apptID, &status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		rec.Category = Category(category)
		rec.Status = Status(status)
		if apptID != nil {
			rec.AppointmentID = *apptID
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
