package appointments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusWaitlistReleased},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusNoShow},
		{StatusConfirmed, StatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusNoShow},
		{StatusConfirmed, StatusWaitlistReleased},
		{StatusCancelled, StatusPending},
		{StatusCompleted, StatusConfirmed},
		{StatusNoShow, StatusConfirmed},
		{StatusWaitlistReleased, StatusConfirmed},
		{StatusPending, StatusPending},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusNoShow, StatusCancelled, StatusWaitlistReleased} {
		assert.True(t, s.Terminal(), "%s", s)
	}
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusNoShow.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	appt := &Appointment{StartAt: base, DurationMins: 60}

	assert.Equal(t, base.Add(time.Hour), appt.EndAt())

	// Back-to-back slots share an instant but do not overlap.
	assert.False(t, appt.Overlaps(base.Add(time.Hour), 30*time.Minute))
	assert.False(t, appt.Overlaps(base.Add(-30*time.Minute), 30*time.Minute))

	// One minute of intersection excludes the slot.
	assert.True(t, appt.Overlaps(base.Add(59*time.Minute), 30*time.Minute))
	assert.True(t, appt.Overlaps(base.Add(-29*time.Minute), 30*time.Minute))

	// Containment in either direction.
	assert.True(t, appt.Overlaps(base.Add(15*time.Minute), 10*time.Minute))
	assert.True(t, appt.Overlaps(base.Add(-time.Hour), 4*time.Hour))
}
