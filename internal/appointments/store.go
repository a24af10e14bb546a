package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for appointments, appointment types and providers.
type Store struct {
	db DB
}

// NewStore creates a new appointment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const appointmentColumns = `id, clinic_id, patient_id, provider_id, appointment_type_id, start_at, duration_mins, deposit_amount_cents, emergency, status, created_at, updated_at`

// Create inserts a new appointment.
func (s *Store) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = StatusPending
	}
	if !a.Status.Valid() {
		return fmt.Errorf("appointments: create: unknown status %q", a.Status)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.ClinicID, a.PatientID, a.ProviderID, a.AppointmentTypeID,
		a.StartAt, a.DurationMins, a.DepositAmountCents, a.Emergency,
		string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: create: %w", err)
	}
	return nil
}

// GetByID fetches a single appointment.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1`, id)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get by id: %w", err)
	}
	return a, nil
}

// ListBookedForDay returns pending and confirmed appointments for a clinic on a
// calendar day. The result drives slot overlap checks, so it is never cached.
func (s *Store) ListBookedForDay(ctx context.Context, clinicID string, dayStart time.Time) ([]Appointment, error) {
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND start_at >= $2 AND start_at < $3
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_at ASC`, clinicID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("appointments: list booked for day: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// TransitionStatus performs a conditional status update. The transition table
// is checked first, then the WHERE clause guards against a concurrent writer
// having moved the row already; zero rows affected means the caller lost.
func (s *Store) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(to), now, id, string(from))
	if err != nil {
		return fmt.Errorf("appointments: transition %s -> %s: %w", from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointments: transition %s -> %s: appointment %s not in %s", from, to, id, from)
	}
	return nil
}

// GetType fetches an appointment type.
func (s *Store) GetType(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, category, duration_mins, requires_deposit, deposit_amount_cents, active
		FROM appointment_types
		WHERE id = $1`, id)

	var t AppointmentType
	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.DurationMins, &t.RequiresDeposit, &t.DepositAmountCents, &t.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get type: %w", err)
	}
	return &t, nil
}

// CountActiveProviders returns the number of active providers for a clinic.
func (s *Store) CountActiveProviders(ctx context.Context, clinicID string) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM providers
		WHERE clinic_id = $1 AND active`, clinicID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("appointments: count active providers: %w", err)
	}
	return count, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.ClinicID, &a.PatientID, &a.ProviderID, &a.AppointmentTypeID,
		&a.StartAt, &a.DurationMins, &a.DepositAmountCents, &a.Emergency,
		&status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
