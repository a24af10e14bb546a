package waitlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/internal/audit"
	"github.com/brightderm/booking-platform/internal/messaging"
	"github.com/brightderm/booking-platform/internal/observability/metrics"
	"github.com/brightderm/booking-platform/pkg/logging"
)

// Auditor records change-history entries without ever failing the caller.
type Auditor interface {
	Record(ctx context.Context, action audit.Action, entityType, entityID string, before, after any)
}

// Engine owns waitlist entries and the claim arbitration for freed slots.
type Engine struct {
	store       *Store
	messenger   messaging.Messenger
	auditor     Auditor
	metrics     *metrics.BookingMetrics
	now         func() time.Time
	notifyLimit int
	claimWindow time.Duration
	logger      *logging.Logger
}

// Config carries the engine's tunables.
type Config struct {
	NotifyLimit int           // candidates notified per release, default 5
	ClaimWindow time.Duration // time a notified candidate has to claim, default 30m
}

// NewEngine creates a waitlist engine.
func NewEngine(store *Store, messenger messaging.Messenger, auditor Auditor, m *metrics.BookingMetrics, cfg Config, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.NotifyLimit <= 0 {
		cfg.NotifyLimit = 5
	}
	if cfg.ClaimWindow <= 0 {
		cfg.ClaimWindow = 30 * time.Minute
	}
	return &Engine{
		store:       store,
		messenger:   messenger,
		auditor:     auditor,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		notifyLimit: cfg.NotifyLimit,
		claimWindow: cfg.ClaimWindow,
		logger:      logger,
	}
}

// WithClock replaces the engine's time source for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Add registers a patient for a slot. A patient can hold at most one pending
// entry per slot.
func (e *Engine) Add(ctx context.Context, clinicID string, slotAt time.Time, patientID uuid.UUID, priority int) (*Entry, error) {
	exists, err := e.store.HasPending(ctx, clinicID, slotAt, patientID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("waitlist: patient %s already queued for %s", patientID, slotAt.Format(time.RFC3339))
	}

	entry := &Entry{
		ClinicID:  clinicID,
		PatientID: patientID,
		SlotAt:    slotAt,
		Priority:  priority,
	}
	if err := e.store.Insert(ctx, entry); err != nil {
		return nil, err
	}

	if e.auditor != nil {
		e.auditor.Record(ctx, audit.ActionCreate, "waitlist_entries", entry.ID.String(), nil, map[string]any{
			"clinic_id":  clinicID,
			"patient_id": patientID.String(),
			"slot_at":    slotAt,
			"priority":   priority,
		})
	}
	return entry, nil
}

// ReleaseSlot notifies the top candidates that the slot has opened and stamps
// each notified entry with its claim deadline. Sends fan out concurrently; a
// failed send leaves that entry un-notified and still eligible for a future
// release. Returns the number of candidates actually notified.
func (e *Engine) ReleaseSlot(ctx context.Context, clinicID string, slotAt time.Time, originatingAppointmentID uuid.UUID) (int, error) {
	candidates, err := e.store.TopPending(ctx, clinicID, slotAt, e.notifyLimit)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		e.logger.Info("waitlist release: no candidates",
			"clinic_id", clinicID,
			"slot_at", slotAt,
			"appointment_id", originatingAppointmentID,
		)
		return 0, nil
	}

	deadline := e.now().Add(e.claimWindow)

	var wg sync.WaitGroup
	notified := make([]bool, len(candidates))
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			notified[i] = e.notifyOne(ctx, &candidates[i], deadline, originatingAppointmentID)
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range notified {
		if ok {
			count++
		}
	}

	if e.auditor != nil {
		e.auditor.Record(ctx, audit.ActionUpdate, "waitlist_entries", originatingAppointmentID.String(), nil, map[string]any{
			"action":   "slot_released",
			"slot_at":  slotAt,
			"notified": count,
		})
	}
	e.metrics.AddNotified(count)
	e.logger.Info("waitlist release: candidates notified",
		"clinic_id", clinicID,
		"slot_at", slotAt,
		"appointment_id", originatingAppointmentID,
		"notified", count,
	)
	return count, nil
}

func (e *Engine) notifyOne(ctx context.Context, entry *Entry, deadline time.Time, originatingAppointmentID uuid.UUID) bool {
	body := fmt.Sprintf(
		"A slot opened at %s! Claim it within %d minutes using code %s.",
		entry.SlotAt.Format("Mon Jan 2 3:04 PM"),
		int(e.claimWindow.Minutes()),
		entry.ID,
	)
	err := e.messenger.Send(ctx, messaging.Message{
		ClinicID:      entry.ClinicID,
		Recipient:     entry.PatientPhone,
		Body:          body,
		Category:      messaging.CategoryWaitlist,
		AppointmentID: originatingAppointmentID,
	})
	if err != nil {
		e.logger.Error("waitlist release: notify failed",
			"entry_id", entry.ID,
			"error", err,
		)
		return false
	}

	if err := e.store.MarkNotified(ctx, entry.ID, e.now(), deadline); err != nil {
		e.logger.Error("waitlist release: mark notified failed",
			"entry_id", entry.ID,
			"error", err,
		)
		return false
	}
	return true
}

// Claim arbitrates a claim attempt. Exactly one claimant per slot can win; the
// store transaction is the authority. A losing attempt is a structured
// rejection, not an error; errors mean the store itself failed and the caller
// may retry the claim.
func (e *Engine) Claim(ctx context.Context, entryID, patientID uuid.UUID) (ClaimResult, error) {
	won, expired, err := e.store.Claim(ctx, entryID, patientID, e.now())
	if err != nil {
		return ClaimResult{}, err
	}
	if !won {
		e.metrics.ObserveClaim("rejected")
		return ClaimResult{
			Claimed: false,
			EntryID: entryID,
			Reason:  ReasonAlreadyClaimedOrExpired,
		}, nil
	}

	if e.auditor != nil {
		e.auditor.Record(ctx, audit.ActionUpdate, "waitlist_entries", entryID.String(),
			map[string]string{"status": string(StatusPending)},
			map[string]any{"status": string(StatusClaimed), "patient_id": patientID.String(), "siblings_expired": expired},
		)
	}
	e.metrics.ObserveClaim("claimed")
	e.metrics.AddExpired(int(expired))
	e.logger.Info("waitlist claim won",
		"entry_id", entryID,
		"patient_id", patientID,
		"siblings_expired", expired,
	)
	return ClaimResult{Claimed: true, EntryID: entryID}, nil
}

// ExpireUnclaimed sweeps notified entries whose claim window has closed.
func (e *Engine) ExpireUnclaimed(ctx context.Context) (int, error) {
	n, err := e.store.ExpireUnclaimed(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.metrics.AddExpired(int(n))
		e.logger.Info("waitlist sweep: entries expired", "count", n)
	}
	return int(n), nil
}

// Position reports the patient's 1-indexed rank for a slot using the same
// ordering the release path uses.
func (e *Engine) Position(ctx context.Context, clinicID string, slotAt time.Time, patientID uuid.UUID) (Position, error) {
	pending, err := e.store.PendingForSlot(ctx, clinicID, slotAt)
	if err != nil {
		return Position{}, err
	}

	pos := Position{Total: len(pending)}
	for i := range pending {
		if pending[i].PatientID == patientID {
			pos.Rank = i + 1
			pos.WithinNotifyRange = pos.Rank <= e.notifyLimit
			break
		}
	}
	return pos, nil
}
