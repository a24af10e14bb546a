package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/internal/appointments"
	"github.com/brightderm/booking-platform/internal/audit"
	"github.com/brightderm/booking-platform/internal/messaging"
	"github.com/brightderm/booking-platform/internal/observability/metrics"
	"github.com/brightderm/booking-platform/internal/payments"
	"github.com/brightderm/booking-platform/pkg/logging"
)

// AppointmentStore is the slice of the appointment store the engine needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to appointments.Status) error
}

// SlotReleaser hands a freed slot to the waitlist.
type SlotReleaser interface {
	ReleaseSlot(ctx context.Context, clinicID string, slotAt time.Time, originatingAppointmentID uuid.UUID) (int, error)
}

// DepositHandler settles the deposit for a terminal outcome.
type DepositHandler interface {
	Charge(ctx context.Context, appointmentID uuid.UUID, reason string) (*payments.ChargeResult, error)
	Refund(ctx context.Context, appointmentID uuid.UUID, startAt time.Time, reason string) (*payments.Payment, error)
}

// Auditor records change-history entries without ever failing the caller.
type Auditor interface {
	Record(ctx context.Context, action audit.Action, entityType, entityID string, before, after any)
}

// Config carries the engine's escalation windows.
type Config struct {
	InitialWindow  time.Duration // lead time of the first request, default 72h
	ReminderWindow time.Duration // lead time of the reminder, default 48h
	CancelHorizon  time.Duration // lead time of the auto-cancel, default 24h
	WindowWidth    time.Duration // width of each send window, default 1h
	NoShowGrace    time.Duration // slack after end before a no-show, default 15m
	// ShortLeadAutoConfirm treats bookings made with less lead time than
	// InitialWindow as pre-confirmed instead of silently skipping escalation.
	ShortLeadAutoConfirm bool
}

func (c *Config) applyDefaults() {
	if c.InitialWindow <= 0 {
		c.InitialWindow = 72 * time.Hour
	}
	if c.ReminderWindow <= 0 {
		c.ReminderWindow = 48 * time.Hour
	}
	if c.CancelHorizon <= 0 {
		c.CancelHorizon = 24 * time.Hour
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = time.Hour
	}
	if c.NoShowGrace <= 0 {
		c.NoShowGrace = 15 * time.Minute
	}
}

// Engine drives the escalation state machine. Each tick method processes its
// candidates independently: one appointment failing never aborts the batch,
// and a failed send leaves the stage unstamped so the next tick retries it.
type Engine struct {
	store     *Store
	appts     AppointmentStore
	waitlist  SlotReleaser
	deposits  DepositHandler
	messenger messaging.Messenger
	auditor   Auditor
	metrics   *metrics.BookingMetrics
	cfg       Config
	now       func() time.Time
	logger    *logging.Logger
}

// NewEngine creates a confirmation engine.
func NewEngine(store *Store, appts AppointmentStore, waitlist SlotReleaser, deposits DepositHandler, messenger messaging.Messenger, auditor Auditor, m *metrics.BookingMetrics, cfg Config, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Engine{
		store:     store,
		appts:     appts,
		waitlist:  waitlist,
		deposits:  deposits,
		messenger: messenger,
		auditor:   auditor,
		metrics:   m,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// WithClock replaces the engine's time source for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// SendDueInitial sends the first confirmation request to every appointment
// entering the initial window. The window reaches all the way down to the
// cancel horizon: an appointment whose send failed on an earlier tick stays
// unstamped and keeps getting retried until auto-cancel takes over. Returns
// the number of requests sent.
func (e *Engine) SendDueInitial(ctx context.Context) (int, error) {
	now := e.now()
	due, err := e.store.DueInitial(ctx, now.Add(e.cfg.CancelHorizon), now.Add(e.cfg.InitialWindow+e.cfg.WindowWidth))
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range due {
		c := &due[i]
		body := fmt.Sprintf(
			"Hi %s, your %s appointment is on %s. Reply YES to confirm or NO to cancel.",
			c.PatientName, c.TypeName, c.StartAt.Format("Mon Jan 2 at 3:04 PM"),
		)
		if !e.sendStage(ctx, c, body, messaging.CategoryConfirmation, "initial", e.store.MarkInitialSent) {
			continue
		}
		sent++
	}
	return sent, nil
}

// SendDueReminders sends the reminder to every unanswered appointment
// entering the reminder window.
func (e *Engine) SendDueReminders(ctx context.Context) (int, error) {
	now := e.now()
	due, err := e.store.DueReminder(ctx, now.Add(e.cfg.ReminderWindow), now.Add(e.cfg.ReminderWindow+e.cfg.WindowWidth))
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range due {
		c := &due[i]
		body := fmt.Sprintf(
			"Reminder: your %s appointment is on %s and is still unconfirmed. Reply YES to keep it or NO to cancel.",
			c.TypeName, c.StartAt.Format("Mon Jan 2 at 3:04 PM"),
		)
		if !e.sendStage(ctx, c, body, messaging.CategoryReminder, "reminder", e.store.MarkReminderSent) {
			continue
		}
		sent++
	}
	return sent, nil
}

// sendStage delivers the message first and stamps the stage only after a
// successful send. A send failure leaves the row untouched for the next tick.
func (e *Engine) sendStage(ctx context.Context, c *Candidate, body string, category messaging.Category, stage string, mark func(context.Context, uuid.UUID, time.Time) error) bool {
	err := e.messenger.Send(ctx, messaging.Message{
		ClinicID:      c.ClinicID,
		Recipient:     c.PatientPhone,
		Body:          body,
		Category:      category,
		AppointmentID: c.AppointmentID,
	})
	if err != nil {
		e.logger.Error("escalation send failed",
			"stage", stage,
			"appointment_id", c.AppointmentID,
			"error", err,
		)
		return false
	}

	if err := mark(ctx, c.AppointmentID, e.now()); err != nil {
		// A concurrent tick already stamped it; the send raced, nothing to undo.
		e.logger.Error("escalation stamp failed",
			"stage", stage,
			"appointment_id", c.AppointmentID,
			"error", err,
		)
		return false
	}
	e.metrics.ObserveEscalation(stage)
	e.logger.Info("escalation sent",
		"stage", stage,
		"appointment_id", c.AppointmentID,
		"start_at", c.StartAt,
	)
	return true
}

// AutoCancelDue releases the slot of every appointment that reached the
// cancel horizon without an answer. The status transition is the gate: only
// the tick that wins it releases the slot, so a slot is released exactly once.
func (e *Engine) AutoCancelDue(ctx context.Context) (int, error) {
	now := e.now()
	due, err := e.store.DueAutoCancel(ctx, now, now.Add(e.cfg.CancelHorizon), now.Add(-e.cfg.ReminderWindow))
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range due {
		c := &due[i]
		if err := e.appts.TransitionStatus(ctx, c.AppointmentID, appointments.StatusPending, appointments.StatusWaitlistReleased); err != nil {
			e.logger.Error("auto-cancel transition failed",
				"appointment_id", c.AppointmentID,
				"error", err,
			)
			continue
		}

		if e.auditor != nil {
			e.auditor.Record(ctx, audit.ActionUpdate, "appointments", c.AppointmentID.String(),
				map[string]string{"status": string(appointments.StatusPending)},
				map[string]any{"status": string(appointments.StatusWaitlistReleased), "reason": "unconfirmed"},
			)
		}
		e.metrics.ObserveEscalation("auto_cancel")
		cancelled++

		notified, err := e.waitlist.ReleaseSlot(ctx, c.ClinicID, c.StartAt, c.AppointmentID)
		if err != nil {
			e.logger.Error("auto-cancel slot release failed",
				"appointment_id", c.AppointmentID,
				"error", err,
			)
			continue
		}
		e.logger.Info("appointment auto-cancelled",
			"appointment_id", c.AppointmentID,
			"start_at", c.StartAt,
			"waitlist_notified", notified,
		)
	}
	return cancelled, nil
}

// ProcessNoShows marks confirmed appointments whose end passed the grace
// period and charges the deposit when the appointment type requires one.
func (e *Engine) ProcessNoShows(ctx context.Context) (int, error) {
	now := e.now()
	due, err := e.store.DueNoShow(ctx, now.Add(-e.cfg.NoShowGrace))
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range due {
		c := &due[i]
		if err := e.appts.TransitionStatus(ctx, c.AppointmentID, appointments.StatusConfirmed, appointments.StatusNoShow); err != nil {
			e.logger.Error("no-show transition failed",
				"appointment_id", c.AppointmentID,
				"error", err,
			)
			continue
		}
		e.metrics.ObserveNoShow()
		marked++

		if c.RequiresDeposit && e.deposits != nil {
			if _, err := e.deposits.Charge(ctx, c.AppointmentID, "no-show"); err != nil {
				if !errors.Is(err, payments.ErrNoEligiblePayment) {
					e.logger.Error("no-show deposit charge failed",
						"appointment_id", c.AppointmentID,
						"error", err,
					)
				}
			}
		}
		e.logger.Info("appointment marked no-show",
			"appointment_id", c.AppointmentID,
			"start_at", c.StartAt,
		)
	}
	return marked, nil
}

// AutoConfirmShortLead confirms pending bookings made with less lead time
// than the initial window, which could otherwise never complete the
// escalation sequence. Disabled unless configured.
func (e *Engine) AutoConfirmShortLead(ctx context.Context) (int, error) {
	if !e.cfg.ShortLeadAutoConfirm {
		return 0, nil
	}
	now := e.now()
	due, err := e.store.DueShortLead(ctx, now, now.Add(e.cfg.InitialWindow), e.cfg.InitialWindow)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for i := range due {
		c := &due[i]
		if err := e.appts.TransitionStatus(ctx, c.AppointmentID, appointments.StatusPending, appointments.StatusConfirmed); err != nil {
			e.logger.Error("short-lead confirm failed",
				"appointment_id", c.AppointmentID,
				"error", err,
			)
			continue
		}
		if err := e.store.Ensure(ctx, c.AppointmentID); err != nil {
			e.logger.Error("short-lead confirmation row failed",
				"appointment_id", c.AppointmentID,
				"error", err,
			)
		} else if _, err := e.store.RecordResponse(ctx, c.AppointmentID, ResponseConfirmed, now); err != nil {
			e.logger.Error("short-lead response record failed",
				"appointment_id", c.AppointmentID,
				"error", err,
			)
		}
		confirmed++
		e.logger.Info("short-lead booking auto-confirmed",
			"appointment_id", c.AppointmentID,
			"start_at", c.StartAt,
		)
	}
	return confirmed, nil
}

// HandleResponse applies a patient reply to its appointment. Unrecognized
// text, a reply after the slot was released, and a second reply are all
// structured rejections with no state change. A decline releases the slot
// immediately and refunds any held deposit.
func (e *Engine) HandleResponse(ctx context.Context, appointmentID uuid.UUID, body string) (ResponseResult, error) {
	intent, ok := ParseReply(body)
	if !ok {
		return ResponseResult{Reason: ReasonInvalidResponse}, nil
	}

	appt, err := e.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return ResponseResult{}, err
	}
	if appt.Status == appointments.StatusWaitlistReleased {
		return ResponseResult{Intent: intent, Reason: ReasonSlotReleased}, nil
	}

	if err := e.store.Ensure(ctx, appointmentID); err != nil {
		return ResponseResult{}, err
	}

	response := ResponseConfirmed
	if intent == IntentDecline {
		response = ResponseDeclined
	}
	changed, err := e.store.RecordResponse(ctx, appointmentID, response, e.now())
	if err != nil {
		return ResponseResult{}, err
	}
	if !changed {
		return ResponseResult{Intent: intent, Reason: ReasonAlreadyResolved}, nil
	}

	switch intent {
	case IntentConfirm:
		if appt.Status == appointments.StatusPending {
			if err := e.appts.TransitionStatus(ctx, appointmentID, appointments.StatusPending, appointments.StatusConfirmed); err != nil {
				return ResponseResult{}, err
			}
		}
	case IntentDecline:
		if err := e.appts.TransitionStatus(ctx, appointmentID, appt.Status, appointments.StatusCancelled); err != nil {
			return ResponseResult{}, err
		}
		if _, err := e.waitlist.ReleaseSlot(ctx, appt.ClinicID, appt.StartAt, appointmentID); err != nil {
			e.logger.Error("decline slot release failed",
				"appointment_id", appointmentID,
				"error", err,
			)
		}
		if e.deposits != nil {
			if _, err := e.deposits.Refund(ctx, appointmentID, appt.StartAt, payments.ReasonPatientCancelled); err != nil {
				if !errors.Is(err, payments.ErrNoEligiblePayment) {
					e.logger.Error("decline deposit refund failed",
						"appointment_id", appointmentID,
						"error", err,
					)
				}
			}
		}
	}

	if e.auditor != nil {
		e.auditor.Record(ctx, audit.ActionUpdate, "confirmations", appointmentID.String(),
			map[string]string{"response": string(ResponsePending)},
			map[string]any{"response": string(response)},
		)
	}
	e.logger.Info("confirmation response recorded",
		"appointment_id", appointmentID,
		"response", string(response),
	)
	return ResponseResult{Accepted: true, Intent: intent}, nil
}
