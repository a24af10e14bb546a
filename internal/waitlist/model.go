// Package waitlist implements the notify/claim engine for freed slots.
package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus is the lifecycle state of a waitlist entry.
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusClaimed  EntryStatus = "claimed"
	StatusDeclined EntryStatus = "declined"
	StatusExpired  EntryStatus = "expired"
)

// Entry is a patient's registration for a specific slot datetime.
type Entry struct {
	ID             uuid.UUID
	ClinicID       string
	PatientID      uuid.UUID
	SlotAt         time.Time
	Priority       int
	Notified       bool
	NotifiedAt     *time.Time
	ClaimExpiresAt *time.Time
	Status         EntryStatus
	ClaimedAt      *time.Time
	CreatedAt      time.Time

	// Joined from patients for notification dispatch.
	PatientName  string
	PatientPhone string
}

// RejectReason explains why a claim attempt did not win.
type RejectReason string

const (
	// ReasonAlreadyClaimedOrExpired covers every losing outcome of the
	// conditional update: another claimant won, the deadline passed, or the
	// entry left the pending state some other way. Callers cannot distinguish
	// these because the row they raced on no longer says.
	ReasonAlreadyClaimedOrExpired RejectReason = "already_claimed_or_expired"
)

// ClaimResult is the structured outcome of a claim attempt. Rejections are
// results, not errors; only store failures surface as errors.
type ClaimResult struct {
	Claimed bool
	EntryID uuid.UUID
	Reason  RejectReason
}

// Position describes a patient's standing in the queue for a slot.
type Position struct {
	Rank              int // 1-indexed; 0 when the patient is not queued
	Total             int
	WithinNotifyRange bool
}
