package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecordInsertsEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewRecorder(db, nil)
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), "system", "UPDATE", "appointments", "appt-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec.Record(context.Background(), ActionUpdate, "appointments", "appt-1",
		map[string]string{"status": "pending"},
		map[string]string{"status": "confirmed"},
	)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rec := NewRecorder(db, nil)
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnError(errors.New("disk full"))

	// Must not panic or propagate the failure.
	rec.Record(context.Background(), ActionCreate, "waitlist_entries", "w-1", nil, map[string]int{"priority": 5})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), ActionCreate, "payments", "p-1", nil, nil)
}
