// Package confirmation owns the staged confirmation lifecycle for pending
// appointments: the initial request, the reminder, the auto-cancel, and the
// handling of patient replies.
package confirmation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Response is the patient's recorded answer to a confirmation request.
type Response string

const (
	ResponsePending   Response = "pending"
	ResponseConfirmed Response = "confirmed"
	ResponseDeclined  Response = "declined"
)

// Confirmation tracks the escalation stages for a single appointment. The row
// is created lazily on the first send and never deleted. SentAt48h is only
// ever set after SentAt72h.
type Confirmation struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	SentAt72h     *time.Time
	SentAt48h     *time.Time
	Response      Response
	RespondedAt   *time.Time
	ReminderCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Intent is the normalized meaning of a patient reply.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentDecline Intent = "decline"
)

// ParseReply normalizes a raw reply body. YES and CONFIRM confirm, NO and
// CANCEL decline, everything else is unrecognized. Matching ignores case and
// surrounding whitespace.
func ParseReply(body string) (Intent, bool) {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "YES", "CONFIRM":
		return IntentConfirm, true
	case "NO", "CANCEL":
		return IntentDecline, true
	}
	return "", false
}

// RejectReason explains why a reply did not change any state.
type RejectReason string

const (
	// ReasonInvalidResponse means the reply text was not a recognized answer.
	ReasonInvalidResponse RejectReason = "invalid_response"
	// ReasonAlreadyResolved means a response was already recorded.
	ReasonAlreadyResolved RejectReason = "already_resolved"
	// ReasonSlotReleased means the slot was already given to the waitlist.
	ReasonSlotReleased RejectReason = "slot_released"
)

// ResponseResult is the structured outcome of handling a patient reply.
// Rejections are results, not errors, so the SMS handler can render them.
type ResponseResult struct {
	Accepted bool
	Intent   Intent
	Reason   RejectReason
}

// Candidate is an appointment due for an escalation action, joined with the
// contact and type details the action needs.
type Candidate struct {
	AppointmentID   uuid.UUID
	ClinicID        string
	PatientID       uuid.UUID
	PatientName     string
	PatientPhone    string
	StartAt         time.Time
	DurationMins    int
	TypeName        string
	RequiresDeposit bool
}
