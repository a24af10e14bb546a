// Package messaging provides outbound patient messaging. The only provider in
// this repo is a mock that records every message in the message log; the
// Messenger interface is the seam a real SMS provider would plug into.
package messaging

import (
	"context"

	"github.com/google/uuid"

	"github.com/brightderm/booking-platform/pkg/logging"
)

// Category classifies an outbound message for reporting.
type Category string

const (
	CategoryConfirmation Category = "confirmation"
	CategoryReminder     Category = "reminder"
	CategoryWaitlist     Category = "waitlist"
)

// Message is an outbound message request.
type Message struct {
	ClinicID      string
	Recipient     string
	Body          string
	Category      Category
	AppointmentID uuid.UUID // uuid.Nil when not tied to an appointment
}

// Messenger sends outbound messages. Send returns an error when the message
// could not be recorded as sent; callers treat that as a failed delivery.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// MockSender simulates an SMS provider by persisting each message to the
// message log. It stands in for Twilio in development and tests.
type MockSender struct {
	store  *Store
	logger *logging.Logger
}

// NewMockSender creates a messenger backed by the message log.
func NewMockSender(store *Store, logger *logging.Logger) *MockSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &MockSender{store: store, logger: logger}
}

// Send records the message as sent. The provider itself never fails, so the
// persistence write is the delivery oracle.
func (m *MockSender) Send(ctx context.Context, msg Message) error {
	if err := m.store.Insert(ctx, &msg, StatusSent); err != nil {
		return err
	}
	m.logger.Info("sms sent",
		"recipient", msg.Recipient,
		"category", string(msg.Category),
		"appointment_id", msg.AppointmentID,
	)
	return nil
}
