package confirmation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightderm/booking-platform/internal/appointments"
)

func TestRespondEndpointAccepts(t *testing.T) {
	f := newFixture(t)
	apptID := uuid.New()
	f.appts.appt = &appointments.Appointment{
		ID: apptID, ClinicID: "clinic-1", StartAt: f.now.Add(50 * time.Hour),
		Status: appointments.StatusPending,
	}

	f.mock.ExpectExec("INSERT INTO confirmations").
		WithArgs(pgxmock.AnyArg(), apptID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.mock.ExpectExec("UPDATE confirmations").
		WithArgs("confirmed", f.now, apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	srv := httptest.NewServer(NewHandler(f.engine, nil).Routes())
	defer srv.Close()

	resp, err := http.Post(
		srv.URL+"/"+apptID.String()+"/respond",
		"application/json",
		strings.NewReader(`{"response": "YES"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Accepted bool   `json:"accepted"`
		Intent   string `json:"intent"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Accepted)
	assert.Equal(t, "confirm", body.Intent)
}

func TestRespondEndpointRejectsInvalidText(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(NewHandler(f.engine, nil).Routes())
	defer srv.Close()

	resp, err := http.Post(
		srv.URL+"/"+uuid.NewString()+"/respond",
		"application/json",
		strings.NewReader(`{"response": "maybe"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Accepted)
	assert.Equal(t, "invalid_response", body.Reason)
}

func TestRespondEndpointUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(NewHandler(f.engine, nil).Routes())
	defer srv.Close()

	resp, err := http.Post(
		srv.URL+"/"+uuid.NewString()+"/respond",
		"application/json",
		strings.NewReader(`{"response": "YES"}`),
	)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
