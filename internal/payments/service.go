package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/internal/audit"
	"github.com/brightderm/booking-platform/pkg/logging"
)

// Auditor records change-history entries. Failures inside the auditor never
// propagate here.
type Auditor interface {
	Record(ctx context.Context, action audit.Action, entityType, entityID string, before, after any)
}

// Service drives the deposit lifecycle. Charge and refund always operate on
// the most recent eligible row, so repeated authorizations resolve newest-first.
type Service struct {
	store      *Store
	auditor    Auditor
	feePercent int
	now        func() time.Time
	logger     *logging.Logger
}

// NewService creates a payment service. feePercent is the platform's share of
// charged deposits, in whole percent.
func NewService(store *Store, auditor Auditor, feePercent int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:      store,
		auditor:    auditor,
		feePercent: feePercent,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// WithClock replaces the service's time source for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Authorize places a hold for the deposit amount. An appointment holds at
// most one open authorization at a time. The mock provider always approves;
// a real gateway would create a manual-capture intent here.
func (s *Service) Authorize(ctx context.Context, appointmentID uuid.UUID, amountCents int) (*Payment, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("payments: authorize: non-positive amount %d", amountCents)
	}

	open, err := s.store.HasAuthorized(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: appointment %s", ErrAlreadyAuthorized, appointmentID)
	}

	p := &Payment{
		AppointmentID: appointmentID,
		AmountCents:   amountCents,
		Status:        StatusAuthorized,
		ProviderRef:   "pi_mock_" + uuid.NewString(),
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, audit.ActionCreate, "payments", p.ID.String(), nil, map[string]any{
			"appointment_id": appointmentID.String(),
			"amount_cents":   amountCents,
			"status":         string(StatusAuthorized),
		})
	}
	s.logger.Info("deposit authorized",
		"payment_id", p.ID,
		"appointment_id", appointmentID,
		"amount_cents", amountCents,
	)
	return p, nil
}

// ChargeResult reports the outcome of a capture, including the fee split.
type ChargeResult struct {
	PaymentID         uuid.UUID
	AmountCents       int
	ClinicAmountCents int
	PlatformFeeCents  int
}

// Charge captures the most recent authorized deposit for the appointment.
func (s *Service) Charge(ctx context.Context, appointmentID uuid.UUID, reason string) (*ChargeResult, error) {
	p, err := s.store.LatestInStatus(ctx, appointmentID, StatusAuthorized)
	if err != nil {
		return nil, err
	}

	clinicCents, platformCents := SplitAmount(p.AmountCents, s.feePercent)
	if err := s.store.MarkCharged(ctx, p.ID, reason, clinicCents, platformCents); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, audit.ActionUpdate, "payments", p.ID.String(),
			map[string]string{"status": string(StatusAuthorized)},
			map[string]any{"status": string(StatusCharged), "reason": reason},
		)
	}
	s.logger.Info("deposit charged",
		"payment_id", p.ID,
		"appointment_id", appointmentID,
		"amount_cents", p.AmountCents,
		"clinic_cents", clinicCents,
		"platform_cents", platformCents,
		"reason", reason,
	)
	return &ChargeResult{
		PaymentID:         p.ID,
		AmountCents:       p.AmountCents,
		ClinicAmountCents: clinicCents,
		PlatformFeeCents:  platformCents,
	}, nil
}

// Refund releases or returns the most recent authorized or charged deposit.
// A patient cancellation refunds per the cancellation policy based on how far
// out the appointment start still is; every other reason refunds in full. A
// zero refund still closes the row: the deposit is forfeited.
func (s *Service) Refund(ctx context.Context, appointmentID uuid.UUID, startAt time.Time, reason string) (*Payment, error) {
	p, err := s.store.LatestInStatus(ctx, appointmentID, StatusAuthorized, StatusCharged)
	if err != nil {
		return nil, err
	}

	refundCents := p.AmountCents
	if reason == ReasonPatientCancelled {
		refundCents = RefundableAmount(p.AmountCents, startAt.Sub(s.now()).Hours())
	}

	if err := s.store.MarkRefunded(ctx, p.ID, reason, refundCents); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, audit.ActionUpdate, "payments", p.ID.String(),
			map[string]string{"status": string(p.Status)},
			map[string]any{"status": string(StatusRefunded), "reason": reason, "refund_amount_cents": refundCents},
		)
	}
	s.logger.Info("deposit refunded",
		"payment_id", p.ID,
		"appointment_id", appointmentID,
		"amount_cents", p.AmountCents,
		"refund_cents", refundCents,
		"reason", reason,
	)
	p.Status = StatusRefunded
	p.Reason = reason
	p.RefundAmountCents = refundCents
	return p, nil
}

// Status returns the most recent payment row for the appointment, or nil.
func (s *Service) Status(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	return s.store.Latest(ctx, appointmentID)
}
