// Package appointments owns appointment records and their status lifecycle.
package appointments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending          Status = "pending"
	StatusConfirmed        Status = "confirmed"
	StatusCompleted        Status = "completed"
	StatusNoShow           Status = "no-show"
	StatusCancelled        Status = "cancelled"
	StatusWaitlistReleased Status = "waitlist-released"
)

// transitions is the exhaustive set of legal status changes. Anything not
// listed here is rejected before a write is attempted.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusWaitlistReleased},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
}

// ErrIllegalTransition is returned when a status change is not in the transition table.
var ErrIllegalTransition = errors.New("appointments: illegal status transition")

// ErrNotFound is returned when an appointment does not exist.
var ErrNotFound = errors.New("appointments: not found")

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusNoShow, StatusCancelled, StatusWaitlistReleased:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Appointment is a booked provider time slot for a patient.
type Appointment struct {
	ID                 uuid.UUID
	ClinicID           string
	PatientID          uuid.UUID
	ProviderID         uuid.UUID
	AppointmentTypeID  uuid.UUID
	StartAt            time.Time
	DurationMins       int
	DepositAmountCents int
	Emergency          bool
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EndAt returns the exclusive end of the appointment interval.
func (a *Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

// Overlaps reports whether the half-open interval [StartAt, EndAt) intersects
// the half-open interval [start, start+duration).
func (a *Appointment) Overlaps(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	return start.Before(a.EndAt()) && a.StartAt.Before(end)
}

// AppointmentType describes a bookable visit category.
type AppointmentType struct {
	ID                 uuid.UUID
	Name               string
	Category           string // "medical" or "cosmetic"
	DurationMins       int
	RequiresDeposit    bool
	DepositAmountCents int
	Active             bool
}

// Provider is a clinician who can be booked.
type Provider struct {
	ID       uuid.UUID
	ClinicID string
	Name     string
	Active   bool
}
