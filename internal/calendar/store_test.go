package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestStoreCreateReturnsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	userID := uuid.New()
	eventID := uuid.New()
	at := time.Now().Add(24 * time.Hour)

	mock.ExpectQuery("INSERT INTO events").
		WithArgs(userID, at, "Checkup prep", "fast overnight").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(eventID))

	e, err := store.Create(context.Background(), Event{
		UserID: userID, At: at, Name: "Checkup prep", Description: "fast overnight",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID != eventID {
		t.Fatalf("expected id %s, got %s", eventID, e.ID)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	mock.ExpectQuery("SELECT id, user_id, at, name, description FROM events").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "at", "name", "description"}))

	if _, err := store.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListByOwnerBetween(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	userID := uuid.New()
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	mock.ExpectQuery("SELECT id, user_id, at, name, description FROM events").
		WithArgs(userID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "at", "name", "description"}).
			AddRow(uuid.New(), userID, start.Add(9*time.Hour), "first", "").
			AddRow(uuid.New(), userID, start.Add(33*time.Hour), "second", ""))

	events, err := store.ListByOwnerBetween(context.Background(), userID, start, end)
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(events) != 2 || events[0].Name != "first" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestStoreUpdateGuardsOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	e := Event{ID: uuid.New(), UserID: uuid.New(), At: time.Now(), Name: "x"}
	mock.ExpectExec("UPDATE events SET").
		WithArgs(e.At, e.Name, e.Description, e.ID, e.UserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.Update(context.Background(), e); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when no row matches, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id, owner := uuid.New(), uuid.New()
	mock.ExpectExec("DELETE FROM events").
		WithArgs(id, owner).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Delete(context.Background(), id, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestStoreOccupiedSlots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	userID := uuid.New()
	slot := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT at FROM events").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"at"}).AddRow(slot))

	slots, err := store.OccupiedSlots(context.Background(), userID)
	if err != nil {
		t.Fatalf("occupied slots: %v", err)
	}
	if len(slots) != 1 || !slots[0].Equal(slot) {
		t.Fatalf("unexpected slots %v", slots)
	}
}
