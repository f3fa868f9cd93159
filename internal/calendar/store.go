package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no matching event exists.
var ErrNotFound = errors.New("calendar: event not found")

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists standalone calendar events in Postgres. Appointment
// event pairs are written by the scheduling store inside its transaction.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

// Create inserts an event owned by userID and returns it with its id.
func (s *Store) Create(ctx context.Context, e Event) (*Event, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (user_id, at, name, description) VALUES ($1, $2, $3, $4) RETURNING id`,
		e.UserID, e.At, e.Name, e.Description,
	).Scan(&e.ID)
	if err != nil {
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}
	return &e, nil
}

// Get loads a single event by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	var e Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, at, name, description FROM events WHERE id = $1`, id,
	).Scan(&e.ID, &e.UserID, &e.At, &e.Name, &e.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: get event: %w", err)
	}
	return &e, nil
}

// ListByOwner returns all events on a user's calendar, soonest first.
func (s *Store) ListByOwner(ctx context.Context, userID uuid.UUID) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, at, name, description FROM events WHERE user_id = $1 ORDER BY at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}
	return scanEvents(rows)
}

// ListByOwnerBetween returns a user's events with start <= at <= end.
func (s *Store) ListByOwnerBetween(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, at, name, description FROM events
		 WHERE user_id = $1 AND at BETWEEN $2 AND $3 ORDER BY at`,
		userID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: list events by dates: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.At, &e.Name, &e.Description); err != nil {
			return nil, fmt.Errorf("calendar: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update rewrites an event's mutable fields, guarded by owner id so a
// stale or foreign id changes nothing.
func (s *Store) Update(ctx context.Context, e Event) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET at = $1, name = $2, description = $3 WHERE id = $4 AND user_id = $5`,
		e.At, e.Name, e.Description, e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("calendar: update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event owned by ownerID.
func (s *Store) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OccupiedSlots projects the datetimes already taken on a user's calendar.
// Callers derive free slots by subtracting these from the clinical window.
func (s *Store) OccupiedSlots(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT at FROM events WHERE user_id = $1 ORDER BY at`, userID)
	if err != nil {
		return nil, fmt.Errorf("calendar: occupied slots: %w", err)
	}
	defer rows.Close()
	out := []time.Time{}
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("calendar: scan slot: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
