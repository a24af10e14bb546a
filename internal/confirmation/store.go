package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no confirmation row exists for an appointment.
var ErrNotFound = errors.New("confirmation: not found")

// ErrStageAlreadySent is returned when a stage stamp finds the stage already
// recorded, which happens when two ticks race over the same appointment.
var ErrStageAlreadySent = errors.New("confirmation: stage already sent")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists confirmation rows and runs the due-candidate queries that
// drive each escalation stage.
type Store struct {
	db DB
}

// NewStore creates a confirmation store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const candidateColumns = `a.id, a.clinic_id, a.patient_id, p.name, p.phone, a.start_at, a.duration_mins, t.name, t.requires_deposit`

// DueInitial returns pending appointments whose start time falls in
// (windowStart, windowEnd] and that have no initial send recorded yet. The
// sent_at_72h guard keeps repeated ticks idempotent, so callers can stretch
// windowStart well below the nominal send point and appointments whose send
// failed keep getting picked up until something is delivered.
func (s *Store) DueInitial(ctx context.Context, windowStart, windowEnd time.Time) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN appointment_types t ON a.appointment_type_id = t.id
		LEFT JOIN confirmations c ON c.appointment_id = a.id
		WHERE a.status = 'pending'
		  AND a.start_at > $1 AND a.start_at <= $2
		  AND (c.id IS NULL OR (c.sent_at_72h IS NULL AND c.response = 'pending'))
		ORDER BY a.start_at ASC`, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("confirmation: due initial: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// DueReminder returns appointments in the reminder window that received the
// initial send, have no reminder yet, and are still unanswered.
func (s *Store) DueReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN appointment_types t ON a.appointment_type_id = t.id
		JOIN confirmations c ON c.appointment_id = a.id
		WHERE a.status = 'pending'
		  AND a.start_at > $1 AND a.start_at <= $2
		  AND c.sent_at_72h IS NOT NULL
		  AND c.sent_at_48h IS NULL
		  AND c.response = 'pending'
		ORDER BY a.start_at ASC`, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("confirmation: due reminder: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// DueAutoCancel returns pending appointments inside the cancel horizon whose
// initial send happened at or before sentBefore and that never got an answer.
func (s *Store) DueAutoCancel(ctx context.Context, now, horizon, sentBefore time.Time) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN appointment_types t ON a.appointment_type_id = t.id
		JOIN confirmations c ON c.appointment_id = a.id
		WHERE a.status = 'pending'
		  AND a.start_at > $1 AND a.start_at <= $2
		  AND c.response = 'pending'
		  AND c.sent_at_72h IS NOT NULL
		  AND c.sent_at_72h <= $3
		ORDER BY a.start_at ASC`, now, horizon, sentBefore)
	if err != nil {
		return nil, fmt.Errorf("confirmation: due auto-cancel: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// DueNoShow returns confirmed appointments whose end time passed before
// cutoff without staff marking them completed.
func (s *Store) DueNoShow(ctx context.Context, cutoff time.Time) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN appointment_types t ON a.appointment_type_id = t.id
		WHERE a.status = 'confirmed'
		  AND a.start_at + make_interval(mins => a.duration_mins) < $1
		ORDER BY a.start_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("confirmation: due no-show: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// DueShortLead returns pending appointments that never entered the escalation
// pipeline because the booking itself was made with less lead time than lead.
// The created_at gate is what separates them from appointments whose initial
// send failed: those were booked early, stay out of this result, and remain
// eligible for a catch-up send instead.
func (s *Store) DueShortLead(ctx context.Context, now, horizon time.Time, lead time.Duration) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN appointment_types t ON a.appointment_type_id = t.id
		LEFT JOIN confirmations c ON c.appointment_id = a.id
		WHERE a.status = 'pending'
		  AND a.start_at > $1 AND a.start_at <= $2
		  AND a.created_at > a.start_at - make_interval(secs => $3)
		  AND c.id IS NULL
		ORDER BY a.start_at ASC`, now, horizon, lead.Seconds())
	if err != nil {
		return nil, fmt.Errorf("confirmation: due short lead: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// Ensure creates the confirmation row for an appointment if it does not exist.
func (s *Store) Ensure(ctx context.Context, appointmentID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO confirmations (id, appointment_id, response, reminder_count, created_at, updated_at)
		VALUES ($1, $2, 'pending', 0, $3, $3)
		ON CONFLICT (appointment_id) DO NOTHING`,
		uuid.New(), appointmentID, now)
	if err != nil {
		return fmt.Errorf("confirmation: ensure: %w", err)
	}
	return nil
}

// MarkInitialSent stamps the initial send, creating the row if needed. The
// stamp only lands while sent_at_72h is still null.
func (s *Store) MarkInitialSent(ctx context.Context, appointmentID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO confirmations (id, appointment_id, sent_at_72h, response, reminder_count, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, $3, $3)
		ON CONFLICT (appointment_id) DO UPDATE
		SET sent_at_72h = EXCLUDED.sent_at_72h, updated_at = EXCLUDED.updated_at
		WHERE confirmations.sent_at_72h IS NULL`,
		uuid.New(), appointmentID, at)
	if err != nil {
		return fmt.Errorf("confirmation: mark initial sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: initial for appointment %s", ErrStageAlreadySent, appointmentID)
	}
	return nil
}

// MarkReminderSent stamps the reminder and bumps the counter. The guard
// enforces the stage order: no reminder before the initial send, and at most
// one reminder.
func (s *Store) MarkReminderSent(ctx context.Context, appointmentID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE confirmations
		SET sent_at_48h = $1, reminder_count = reminder_count + 1, updated_at = $1
		WHERE appointment_id = $2
		  AND sent_at_72h IS NOT NULL
		  AND sent_at_48h IS NULL
		  AND response = 'pending'`,
		at, appointmentID)
	if err != nil {
		return fmt.Errorf("confirmation: mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: reminder for appointment %s", ErrStageAlreadySent, appointmentID)
	}
	return nil
}

// RecordResponse records the patient's answer. The response moves out of
// pending exactly once; a second answer reports false with no write.
func (s *Store) RecordResponse(ctx context.Context, appointmentID uuid.UUID, response Response, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE confirmations
		SET response = $1, responded_at = $2, updated_at = $2
		WHERE appointment_id = $3 AND response = 'pending'`,
		string(response), at, appointmentID)
	if err != nil {
		return false, fmt.Errorf("confirmation: record response: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByAppointment fetches the confirmation row for an appointment.
func (s *Store) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Confirmation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, appointment_id, sent_at_72h, sent_at_48h, response, responded_at, reminder_count, created_at, updated_at
		FROM confirmations
		WHERE appointment_id = $1`, appointmentID)

	var c Confirmation
	var response string
	err := row.Scan(&c.ID, &c.AppointmentID, &c.SentAt72h, &c.SentAt48h, &response, &c.RespondedAt, &c.ReminderCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("confirmation: get by appointment: %w", err)
	}
	c.Response = Response(response)
	return &c, nil
}

func scanCandidates(rows pgx.Rows) ([]Candidate, error) {
	var result []Candidate
	for rows.Next() {
		var c Candidate
		err := rows.Scan(
			&c.AppointmentID, &c.ClinicID, &c.PatientID, &c.PatientName, &c.PatientPhone,
			&c.StartAt, &c.DurationMins, &c.TypeName, &c.RequiresDeposit,
		)
		if err != nil {
			return nil, fmt.Errorf("confirmation: scan candidate: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
