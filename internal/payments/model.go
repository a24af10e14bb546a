// Package payments implements the deposit lifecycle: authorize, charge, refund.
package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a single payment row.
type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusCharged    Status = "charged"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// ErrNoEligiblePayment is returned when a charge or refund finds no row in a
// chargeable/refundable state. It is a structured no-op, not a corruption.
var ErrNoEligiblePayment = errors.New("payments: no eligible payment")

// ErrAlreadyAuthorized is returned when an appointment already has an open
// authorization. Settle or refund the existing hold first.
var ErrAlreadyAuthorized = errors.New("payments: deposit already authorized")

// ReasonPatientCancelled marks a refund triggered by the patient declining or
// cancelling. It is the only reason subject to the cancellation policy.
const ReasonPatientCancelled = "patient-cancelled"

// Payment is one authorize/charge/refund attempt against a deposit. An
// appointment accumulates rows over time; rows are never updated except by
// their own forward transitions.
type Payment struct {
	ID                uuid.UUID
	AppointmentID     uuid.UUID
	AmountCents       int
	Status            Status
	ProviderRef       string
	Reason            string
	ClinicAmountCents int
	PlatformFeeCents  int
	RefundAmountCents int
	CreatedAt         time.Time
	ChargedAt         *time.Time
	RefundedAt        *time.Time
}

// SplitAmount divides an amount into clinic and platform shares for the given
// fee percent. The platform share is rounded down; the clinic receives the
// remainder so the two always sum to the original amount.
func SplitAmount(amountCents, feePercent int) (clinicCents, platformCents int) {
	if feePercent <= 0 {
		return amountCents, 0
	}
	if feePercent >= 100 {
		return 0, amountCents
	}
	platformCents = amountCents * feePercent / 100
	return amountCents - platformCents, platformCents
}

// RefundableAmount applies the cancellation policy: full refund more than 48
// hours out, half between 24 and 48 hours, nothing inside 24 hours.
func RefundableAmount(depositCents int, hoursUntilAppointment float64) int {
	switch {
	case hoursUntilAppointment > 48:
		return depositCents
	case hoursUntilAppointment >= 24:
		return depositCents / 2
	default:
		return 0
	}
}
