package payments

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

// Store persists payment rows.
type Store struct {
	db DB
}

// NewStore creates a payment store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const paymentColumns = `id, appointment_id, amount_cents, status, provider_ref, reason, clinic_amount_cents, platform_fee_cents, refund_amount_cents, created_at, charged_at, refunded_at`

// Insert persists a new payment row.
func (s *Store) Insert(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO payments (id, appointment_id, amount_cents, status, provider_ref, reason, clinic_amount_cents, platform_fee_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.AppointmentID, p.AmountCents, string(p.Status), p.ProviderRef,
		p.Reason, p.ClinicAmountCents, p.PlatformFeeCents, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("payments: insert: %w", err)
	}
	return nil
}

// LatestInStatus returns the most recent payment row for the appointment whose
// status is one of the given set, or ErrNoEligiblePayment.
func (s *Store) LatestInStatus(ctx context.Context, appointmentID uuid.UUID, statuses ...Status) (*Payment, error) {
	set := make([]string, len(statuses))
	for i, st := range statuses {
		set[i] = string(st)
	}
	row := s.db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE appointment_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1`, appointmentID, set)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoEligiblePayment
		}
		return nil, fmt.Errorf("payments: latest in status: %w", err)
	}
	return p, nil
}

// Latest returns the most recent payment row for the appointment regardless of
// status, or nil when none exists.
func (s *Store) Latest(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, appointmentID)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("payments: latest: %w", err)
	}
	return p, nil
}

// MarkCharged transitions an authorized row to charged, recording the split.
// Zero rows affected means the row was no longer authorized.
func (s *Store) MarkCharged(ctx context.Context, id uuid.UUID, reason string, clinicCents, platformCents int) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE payments
		SET status = 'charged', reason = $1, clinic_amount_cents = $2, platform_fee_cents = $3, charged_at = $4
		WHERE id = $5 AND status = 'authorized'`,
		reason, clinicCents, platformCents, now, id)
	if err != nil {
		return fmt.Errorf("payments: mark charged: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s is not authorized", ErrNoEligiblePayment, id)
	}
	return nil
}

// MarkRefunded transitions an authorized or charged row to refunded,
// recording how much was actually returned. Zero is a forfeited deposit.
func (s *Store) MarkRefunded(ctx context.Context, id uuid.UUID, reason string, refundCents int) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE payments
		SET status = 'refunded', reason = $1, refund_amount_cents = $2, refunded_at = $3
		WHERE id = $4 AND status IN ('authorized', 'charged')`,
		reason, refundCents, now, id)
	if err != nil {
		return fmt.Errorf("payments: mark refunded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s is not refundable", ErrNoEligiblePayment, id)
	}
	return nil
}

// HasAuthorized reports whether the appointment already has an open
// authorization. Used to keep at most one authorized row per appointment.
func (s *Store) HasAuthorized(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE appointment_id = $1 AND status = 'authorized'
		)`, appointmentID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("payments: has authorized: %w", err)
	}
	return exists, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var status string
	err := row.Scan(
		&p.ID, &p.AppointmentID, &p.AmountCents, &status, &p.ProviderRef, &p.Reason,
		&p.ClinicAmountCents, &p.PlatformFeeCents, &p.RefundAmountCents, &p.CreatedAt, &p.ChargedAt, &p.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}
