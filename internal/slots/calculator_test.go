package slots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightderm/booking-platform/internal/appointments"
	"github.com/brightderm/booking-platform/internal/clinic"
)

type fakeClinicSource struct {
	cfg *clinic.Config
}

func (f *fakeClinicSource) Get(_ context.Context, clinicID string) (*clinic.Config, error) {
	if f.cfg != nil {
		return f.cfg, nil
	}
	return clinic.DefaultConfig(clinicID), nil
}

type fakeBookingSource struct {
	apptType  *appointments.AppointmentType
	typeErr   error
	providers int
	booked    []appointments.Appointment
}

func (f *fakeBookingSource) GetType(context.Context, uuid.UUID) (*appointments.AppointmentType, error) {
	if f.typeErr != nil {
		return nil, f.typeErr
	}
	return f.apptType, nil
}

func (f *fakeBookingSource) CountActiveProviders(context.Context, string) (int, error) {
	return f.providers, nil
}

func (f *fakeBookingSource) ListBookedForDay(context.Context, string, time.Time) ([]appointments.Appointment, error) {
	return f.booked, nil
}

func utcClinic() *clinic.Config {
	cfg := clinic.DefaultConfig("clinic-1")
	cfg.Timezone = "UTC"
	return cfg
}

func thirtyMinType() *appointments.AppointmentType {
	return &appointments.AppointmentType{
		ID:           uuid.New(),
		Name:         "Mole Check",
		Category:     "medical",
		DurationMins: 30,
		Active:       true,
	}
}

// Monday with 09:00-17:00 hours in the default config.
var monday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func TestAvailableSlotsFullOpenDay(t *testing.T) {
	calc := NewCalculator(&fakeClinicSource{cfg: utcClinic()}, &fakeBookingSource{
		apptType:  thirtyMinType(),
		providers: 2,
	}, nil)

	got, err := calc.AvailableSlots(context.Background(), "clinic-1", uuid.New(), monday)
	require.NoError(t, err)
	require.Len(t, got, 16)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2026, 3, 9, 16, 30, 0, 0, time.UTC), got[15])

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Before(got[i]), "slots must be strictly ascending")
	}
}

func TestAvailableSlotsExcludesOverlaps(t *testing.T) {
	booked := []appointments.Appointment{
		{StartAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), DurationMins: 30, Status: appointments.StatusConfirmed},
		// 45-minute booking straddling two candidate slots.
		{StartAt: time.Date(2026, 3, 9, 13, 15, 0, 0, time.UTC), DurationMins: 45, Status: appointments.StatusPending},
	}
	calc := NewCalculator(&fakeClinicSource{cfg: utcClinic()}, &fakeBookingSource{
		apptType:  thirtyMinType(),
		providers: 1,
		booked:    booked,
	}, nil)

	got, err := calc.AvailableSlots(context.Background(), "clinic-1", uuid.New(), monday)
	require.NoError(t, err)

	for _, slot := range got {
		for i := range booked {
			assert.False(t, booked[i].Overlaps(slot, 30*time.Minute),
				"slot %s overlaps booking at %s", slot, booked[i].StartAt)
		}
	}
	// 10:00 is taken; 13:00 and 13:30 both intersect the 13:15-14:00 booking.
	assert.NotContains(t, got, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC))
	assert.NotContains(t, got, time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC))
	assert.NotContains(t, got, time.Date(2026, 3, 9, 13, 30, 0, 0, time.UTC))
	assert.Contains(t, got, time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC))
	assert.Len(t, got, 13)
}

func TestAvailableSlotsClosedDay(t *testing.T) {
	calc := NewCalculator(&fakeClinicSource{cfg: utcClinic()}, &fakeBookingSource{
		apptType:  thirtyMinType(),
		providers: 1,
	}, nil)

	sunday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	got, err := calc.AvailableSlots(context.Background(), "clinic-1", uuid.New(), sunday)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAvailableSlotsNoProviders(t *testing.T) {
	calc := NewCalculator(&fakeClinicSource{cfg: utcClinic()}, &fakeBookingSource{
		apptType:  thirtyMinType(),
		providers: 0,
	}, nil)

	_, err := calc.AvailableSlots(context.Background(), "clinic-1", uuid.New(), monday)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestAvailableSlotsUnknownType(t *testing.T) {
	calc := NewCalculator(&fakeClinicSource{cfg: utcClinic()}, &fakeBookingSource{
		typeErr:   appointments.ErrNotFound,
		providers: 1,
	}, nil)

	_, err := calc.AvailableSlots(context.Background(), "clinic-1", uuid.New(), monday)
	assert.ErrorIs(t, err, appointments.ErrNotFound)
}

func TestAvailableSlotsSlotEndingAtCloseIsKept(t *testing.T) {
	// Saturday 10:00-14:00 with 60-minute slots: last slot 13:00-14:00 ends
	// exactly at close and must be included.
	apptType := thirtyMinType()
	apptType.DurationMins = 60
	calc := NewCalculator(&fakeClinicSource{cfg: utcClinic()}, &fakeBookingSource{
		apptType:  apptType,
		providers: 1,
	}, nil)

	saturday := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	got, err := calc.AvailableSlots(context.Background(), "clinic-1", uuid.New(), saturday)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC), got[3])
}
