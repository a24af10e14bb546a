package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx interface for testing. Begin is required because the
// claim arbitration runs as a single transaction.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists waitlist entries.
type Store struct {
	db DB
}

// NewStore creates a waitlist store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Insert adds a new pending entry.
func (s *Store) Insert(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now().UTC()
	if e.Status == "" {
		e.Status = StatusPending
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO waitlist_entries (id, clinic_id, patient_id, slot_at, priority, notified, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ClinicID, e.PatientID, e.SlotAt, e.Priority, e.Notified, string(e.Status), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("waitlist: insert entry: %w", err)
	}
	return nil
}

// HasPending reports whether the patient already has a pending entry for the slot.
func (s *Store) HasPending(ctx context.Context, clinicID string, slotAt time.Time, patientID uuid.UUID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM waitlist_entries
			WHERE clinic_id = $1 AND slot_at = $2 AND patient_id = $3 AND status = 'pending'
		)`, clinicID, slotAt, patientID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("waitlist: has pending: %w", err)
	}
	return exists, nil
}

const entryColumns = `w.id, w.clinic_id, w.patient_id, w.slot_at, w.priority, w.notified, w.notified_at, w.claim_expires_at, w.status, w.claimed_at, w.created_at`

// TopPending returns up to limit pending entries for the slot, ordered by
// priority descending then creation time ascending, with patient contact
// details joined for notification dispatch.
func (s *Store) TopPending(ctx context.Context, clinicID string, slotAt time.Time, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`, p.name, p.phone
		FROM waitlist_entries w
		JOIN patients p ON w.patient_id = p.id
		WHERE w.clinic_id = $1 AND w.slot_at = $2 AND w.status = 'pending'
		ORDER BY w.priority DESC, w.created_at ASC
		LIMIT $3`, clinicID, slotAt, limit)
	if err != nil {
		return nil, fmt.Errorf("waitlist: top pending: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows, true)
}

// PendingForSlot returns every pending entry for the slot in release ordering.
func (s *Store) PendingForSlot(ctx context.Context, clinicID string, slotAt time.Time) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries w
		WHERE w.clinic_id = $1 AND w.slot_at = $2 AND w.status = 'pending'
		ORDER BY w.priority DESC, w.created_at ASC`, clinicID, slotAt)
	if err != nil {
		return nil, fmt.Errorf("waitlist: pending for slot: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows, false)
}

// MarkNotified stamps the notification time and claim deadline on an entry.
func (s *Store) MarkNotified(ctx context.Context, id uuid.UUID, notifiedAt, claimExpiresAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE waitlist_entries
		SET notified = TRUE, notified_at = $1, claim_expires_at = $2
		WHERE id = $3 AND status = 'pending'`,
		notifiedAt, claimExpiresAt, id)
	if err != nil {
		return fmt.Errorf("waitlist: mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("waitlist: mark notified: entry %s is not pending", id)
	}
	return nil
}

// Claim runs the arbitration transaction. Every pending entry for the slot is
// locked up front in a stable order, so concurrent claimants serialize here
// instead of each flipping its own row under READ COMMITTED. The conditional
// update is then the oracle of success: a claimant that waited out a winner
// finds its entry no longer pending and loses cleanly. The sibling cascade
// happens inside the same transaction so no stale pending entry survives a
// win, and the uq_waitlist_claim_winner index backstops the whole thing: a
// second claimed row for the slot surfaces as a unique violation, which is a
// lost claim, not an error.
func (s *Store) Claim(ctx context.Context, entryID, patientID uuid.UUID, now time.Time) (won bool, expired int64, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("waitlist: claim: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT w.id
		FROM waitlist_entries w
		WHERE (w.clinic_id, w.slot_at) = (
			SELECT clinic_id, slot_at FROM waitlist_entries WHERE id = $1
		)
		  AND w.status = 'pending'
		ORDER BY w.id
		FOR UPDATE`, entryID)
	if err != nil {
		return false, 0, fmt.Errorf("waitlist: claim: lock slot entries: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, 0, fmt.Errorf("waitlist: claim: lock slot entries: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = 'claimed', claimed_at = $1
		WHERE id = $2
		  AND patient_id = $3
		  AND status = 'pending'
		  AND claim_expires_at > $1`,
		now, entryID, patientID)
	if err != nil {
		if isClaimConflict(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("waitlist: claim: conditional update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, 0, nil
	}

	cascade, err := tx.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = 'expired'
		WHERE (clinic_id, slot_at) = (
			SELECT clinic_id, slot_at FROM waitlist_entries WHERE id = $1
		)
		  AND id != $1
		  AND status = 'pending'`, entryID)
	if err != nil {
		return false, 0, fmt.Errorf("waitlist: claim: expire siblings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isClaimConflict(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("waitlist: claim: commit: %w", err)
	}
	return true, cascade.RowsAffected(), nil
}

// isClaimConflict reports whether the error means another claimant already
// won the slot: a violation of the claim-winner unique index.
func isClaimConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == "uq_waitlist_claim_winner"
}

// ExpireUnclaimed flips notified pending entries whose deadline has passed to
// expired. Entries never notified are left untouched so a future release can
// still pick them up.
func (s *Store) ExpireUnclaimed(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = 'expired'
		WHERE status = 'pending'
		  AND notified
		  AND claim_expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("waitlist: expire unclaimed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntries(rows pgx.Rows, withPatient bool) ([]Entry, error) {
	var result []Entry
	for rows.Next() {
		var e Entry
		var status string
		dest := []any{
			&e.ID, &e.ClinicID, &e.PatientID, &e.SlotAt, &e.Priority,
			&e.Notified, &e.NotifiedAt, &e.ClaimExpiresAt, &status, &e.ClaimedAt, &e.CreatedAt,
		}
		if withPatient {
			dest = append(dest, &e.PatientName, &e.PatientPhone)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("waitlist: scan entry: %w", err)
		}
		e.Status = EntryStatus(status)
		result = append(result, e)
	}
	return result, rows.Err()
}
