package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func appointmentRow(a *Appointment) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "clinic_id", "patient_id", "provider_id", "appointment_type_id",
		"start_at", "duration_mins", "deposit_amount_cents", "emergency",
		"status", "created_at", "updated_at",
	}).AddRow(
		a.ID, a.ClinicID, a.PatientID, a.ProviderID, a.AppointmentTypeID,
		a.StartAt, a.DurationMins, a.DepositAmountCents, a.Emergency,
		string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
}

func TestCreateDefaultsToPending(t *testing.T) {
	store, mock := newMockStore(t)

	a := &Appointment{
		ClinicID:          "clinic-1",
		PatientID:         uuid.New(),
		ProviderID:        uuid.New(),
		AppointmentTypeID: uuid.New(),
		StartAt:           time.Now().UTC().Add(96 * time.Hour),
		DurationMins:      45,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(
			pgxmock.AnyArg(), a.ClinicID, a.PatientID, a.ProviderID, a.AppointmentTypeID,
			a.StartAt, a.DurationMins, 0, false,
			"pending", pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, StatusPending, a.Status)
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.Create(context.Background(), &Appointment{Status: Status("archived")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "clinic_id", "patient_id", "provider_id", "appointment_type_id",
			"start_at", "duration_mins", "deposit_amount_cents", "emergency",
			"status", "created_at", "updated_at",
		}))

	_, err := store.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionStatusConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs("confirmed", pgxmock.AnyArg(), id, "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.TransitionStatus(context.Background(), id, StatusPending, StatusConfirmed))
}

func TestTransitionStatusLosesRace(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs("waitlist-released", pgxmock.AnyArg(), id, "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.TransitionStatus(context.Background(), id, StatusPending, StatusWaitlistReleased)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in pending")
}

func TestTransitionStatusIllegalRejectedBeforeWrite(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.TransitionStatus(context.Background(), uuid.New(), StatusCancelled, StatusConfirmed)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestListBookedForDayFiltersByStatus(t *testing.T) {
	store, mock := newMockStore(t)
	dayStart := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	a := &Appointment{
		ID: uuid.New(), ClinicID: "clinic-1",
		PatientID: uuid.New(), ProviderID: uuid.New(), AppointmentTypeID: uuid.New(),
		StartAt: dayStart.Add(10 * time.Hour), DurationMins: 30,
		Status: StatusConfirmed, CreatedAt: dayStart, UpdatedAt: dayStart,
	}

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("clinic-1", dayStart, dayStart.AddDate(0, 0, 1)).
		WillReturnRows(appointmentRow(a))

	booked, err := store.ListBookedForDay(context.Background(), "clinic-1", dayStart)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, a.ID, booked[0].ID)
	assert.Equal(t, StatusConfirmed, booked[0].Status)
}

func TestCountActiveProviders(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("clinic-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountActiveProviders(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
