package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServiceWithMock(t *testing.T, feePercent int) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewService(NewStore(mock), nil, feePercent, nil), mock
}

func nowStamp() time.Time { return time.Now().UTC() }

func paymentRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "appointment_id", "amount_cents", "status", "provider_ref", "reason",
		"clinic_amount_cents", "platform_fee_cents", "refund_amount_cents", "created_at", "charged_at", "refunded_at",
	})
}

func expectNoOpenAuthorization(mock pgxmock.PgxPoolIface, apptID uuid.UUID, open bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(open))
}

func TestAuthorizeInsertsRow(t *testing.T) {
	svc, mock := newServiceWithMock(t, 0)
	apptID := uuid.New()

	expectNoOpenAuthorization(mock, apptID, false)
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), apptID, 5000, "authorized", pgxmock.AnyArg(), "", 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p, err := svc.Authorize(context.Background(), apptID, 5000)
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, p.Status)
	assert.Contains(t, p.ProviderRef, "pi_mock_")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorizeRejectsOpenAuthorization(t *testing.T) {
	svc, mock := newServiceWithMock(t, 0)
	apptID := uuid.New()

	expectNoOpenAuthorization(mock, apptID, true)

	_, err := svc.Authorize(context.Background(), apptID, 5000)
	assert.ErrorIs(t, err, ErrAlreadyAuthorized)
	// No insert happened.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorizeRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newServiceWithMock(t, 0)
	_, err := svc.Authorize(context.Background(), uuid.New(), 0)
	assert.Error(t, err)
}

func TestChargeSplitsAmount(t *testing.T) {
	svc, mock := newServiceWithMock(t, 20)
	apptID := uuid.New()
	payID := uuid.New()

	mock.ExpectQuery("SELECT id, appointment_id").
		WithArgs(apptID, []string{"authorized"}).
		WillReturnRows(paymentRows().AddRow(
			payID, apptID, 5000, "authorized", "pi_mock_x", "", 0, 0, 0, nowStamp(), nil, nil))
	mock.ExpectExec("UPDATE payments").
		WithArgs("no-show", 4000, 1000, pgxmock.AnyArg(), payID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	result, err := svc.Charge(context.Background(), apptID, "no-show")
	require.NoError(t, err)
	assert.Equal(t, 5000, result.AmountCents)
	assert.Equal(t, 4000, result.ClinicAmountCents)
	assert.Equal(t, 1000, result.PlatformFeeCents)
	assert.Equal(t, result.AmountCents, result.ClinicAmountCents+result.PlatformFeeCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChargeNoAuthorizedRow(t *testing.T) {
	svc, mock := newServiceWithMock(t, 0)
	apptID := uuid.New()

	mock.ExpectQuery("SELECT id, appointment_id").
		WithArgs(apptID, []string{"authorized"}).
		WillReturnRows(paymentRows())

	_, err := svc.Charge(context.Background(), apptID, "no-show")
	assert.ErrorIs(t, err, ErrNoEligiblePayment)
}

func TestRefundChargedRowInFull(t *testing.T) {
	svc, mock := newServiceWithMock(t, 0)
	apptID := uuid.New()
	payID := uuid.New()

	// Clinic-initiated reasons always refund in full, even close to start.
	mock.ExpectQuery("SELECT id, appointment_id").
		WithArgs(apptID, []string{"authorized", "charged"}).
		WillReturnRows(paymentRows().AddRow(
			payID, apptID, 5000, "charged", "pi_mock_x", "no-show", 5000, 0, 0, nowStamp(), nil, nil))
	mock.ExpectExec("UPDATE payments").
		WithArgs("clinic cancellation", 5000, pgxmock.AnyArg(), payID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p, err := svc.Refund(context.Background(), apptID, nowStamp().Add(2*time.Hour), "clinic cancellation")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
	assert.Equal(t, 5000, p.RefundAmountCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundAppliesCancellationPolicy(t *testing.T) {
	tests := []struct {
		name        string
		hoursOut    time.Duration
		refundCents int
	}{
		{"full refund beyond 48h", 49 * time.Hour, 5000},
		{"half refund between 24h and 48h", 30 * time.Hour, 2500},
		{"forfeited inside 24h", 2 * time.Hour, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newServiceWithMock(t, 0)
			now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
			svc.WithClock(func() time.Time { return now })
			apptID := uuid.New()
			payID := uuid.New()

			mock.ExpectQuery("SELECT id, appointment_id").
				WithArgs(apptID, []string{"authorized", "charged"}).
				WillReturnRows(paymentRows().AddRow(
					payID, apptID, 5000, "authorized", "pi_mock_x", "", 0, 0, 0, now, nil, nil))
			mock.ExpectExec("UPDATE payments").
				WithArgs(ReasonPatientCancelled, tt.refundCents, pgxmock.AnyArg(), payID).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))

			p, err := svc.Refund(context.Background(), apptID, now.Add(tt.hoursOut), ReasonPatientCancelled)
			require.NoError(t, err)
			assert.Equal(t, tt.refundCents, p.RefundAmountCents)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSplitAmountSumsToOriginal(t *testing.T) {
	for fee := 0; fee <= 100; fee += 7 {
		clinic, platform := SplitAmount(5000, fee)
		assert.Equal(t, 5000, clinic+platform, "fee %d%%", fee)
		assert.GreaterOrEqual(t, clinic, 0)
		assert.GreaterOrEqual(t, platform, 0)
	}

	clinic, platform := SplitAmount(101, 33)
	assert.Equal(t, 101, clinic+platform)
}

func TestRefundableAmount(t *testing.T) {
	assert.Equal(t, 5000, RefundableAmount(5000, 49))
	assert.Equal(t, 2500, RefundableAmount(5000, 48))
	assert.Equal(t, 2500, RefundableAmount(5000, 24))
	assert.Equal(t, 0, RefundableAmount(5000, 23.9))
	assert.Equal(t, 0, RefundableAmount(5000, 1))
}
