package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no matching appointment exists.
var ErrNotFound = errors.New("scheduling: appointment not found")

// PgxPool is the subset of pgxpool.Pool the store needs. Tests inject
// pgxmock through it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments and their paired calendar events. Every
// multi-row write runs inside one transaction so a mid-sequence failure
// can never leave an orphaned half of the pair.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, at, duration, notes, doctor_event_id, patient_event_id`

// Create inserts the doctor event, the patient event and the appointment
// row referencing both, atomically. Any failure rolls back all three.
func (s *Store) Create(ctx context.Context, patient, doctor Participant, at time.Time, duration, notes string) (*Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: create appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	a := Appointment{
		PatientID: patient.UserID,
		DoctorID:  doctor.UserID,
		At:        at,
		Duration:  duration,
		Notes:     notes,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO events (user_id, at, name, description) VALUES ($1, $2, $3, $4) RETURNING id`,
		doctor.UserID, at, "Appointment", "Appointment with "+patient.displayName(),
	).Scan(&a.DoctorEventID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: insert doctor event: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO events (user_id, at, name, description) VALUES ($1, $2, $3, $4) RETURNING id`,
		patient.UserID, at, "Appointment", "Appointment with "+doctor.displayName(),
	).Scan(&a.PatientEventID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: insert patient event: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO appointments (patient_id, doctor_id, at, duration, notes, doctor_event_id, patient_event_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.PatientID, a.DoctorID, a.At, a.Duration, a.Notes, a.DoctorEventID, a.PatientEventID,
	).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: create appointment: %w", err)
	}
	return &a, nil
}

// Get loads a single appointment by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id,
	).Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.At, &a.Duration, &a.Notes, &a.DoctorEventID, &a.PatientEventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: get appointment: %w", err)
	}
	return &a, nil
}

// Delete removes both linked events and then the appointment row in one
// transaction. The row is locked first so a concurrent delete or
// reschedule of the same appointment cannot interleave.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: delete appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	var doctorEventID, patientEventID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT doctor_event_id, patient_event_id FROM appointments WHERE id = $1 FOR UPDATE`, id,
	).Scan(&doctorEventID, &patientEventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("scheduling: lock appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("scheduling: delete appointment row: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE id = ANY($1)`, []uuid.UUID{doctorEventID, patientEventID}); err != nil {
		return fmt.Errorf("scheduling: delete paired events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: delete appointment: %w", err)
	}
	return nil
}

// Reschedule moves the appointment and both linked events to the new
// datetime and rewrites duration and notes, all in one transaction.
func (s *Store) Reschedule(ctx context.Context, a *Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE appointments SET at = $1, duration = $2, notes = $3 WHERE id = $4`,
		a.At, a.Duration, a.Notes, a.ID,
	)
	if err != nil {
		return fmt.Errorf("scheduling: update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE events SET at = $1 WHERE id = ANY($2)`,
		a.At, []uuid.UUID{a.DoctorEventID, a.PatientEventID},
	); err != nil {
		return fmt.Errorf("scheduling: re-sync paired events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: reschedule: %w", err)
	}
	return nil
}

// ListForPatient returns the appointments where the user is the patient.
func (s *Store) ListForPatient(ctx context.Context, userID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE patient_id = $1 ORDER BY at`, userID)
}

// ListForDoctor returns the appointments where the user is the doctor.
func (s *Store) ListForDoctor(ctx context.Context, userID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE doctor_id = $1 ORDER BY at`, userID)
}

func (s *Store) list(ctx context.Context, query string, userID uuid.UUID) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list appointments: %w", err)
	}
	defer rows.Close()
	out := []Appointment{}
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.At, &a.Duration, &a.Notes, &a.DoctorEventID, &a.PatientEventID); err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasEventAt reports whether the user already has any calendar event at
// the exact instant. Backs the optional overlap check.
func (s *Store) HasEventAt(ctx context.Context, userID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE user_id = $1 AND at = $2)`, userID, at,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("scheduling: overlap check: %w", err)
	}
	return exists, nil
}

// OccupiedSlots projects the datetimes already taken on a doctor's
// calendar. Free slots are derived by the caller.
func (s *Store) OccupiedSlots(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT at FROM events WHERE user_id = $1 ORDER BY at`, userID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: occupied slots: %w", err)
	}
	defer rows.Close()
	out := []time.Time{}
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scheduling: scan slot: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
