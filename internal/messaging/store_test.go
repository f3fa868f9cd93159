package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestStoreCreateStartsUnread(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	sender, receiver := uuid.New(), uuid.New()
	id := uuid.New()
	created := time.Now()

	mock.ExpectQuery("INSERT INTO messages").
		WithArgs("hello", sender, receiver).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, created))

	m, err := store.Create(context.Background(), "hello", sender, receiver)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID != id || m.Read {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestStoreListForUserJoinsSenderName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	userID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "content", "created_at", "sender_id", "receiver_id", "read", "sender_first_name", "sender_last_name"}).
		AddRow(uuid.New(), "hi", time.Now(), userID, uuid.New(), false, "Pat", "Doe").
		AddRow(uuid.New(), "hello back", time.Now(), uuid.New(), userID, true, "Dana", "Roe")
	mock.ExpectQuery("SELECT m.id, m.content").
		WithArgs(userID).
		WillReturnRows(rows)

	msgs, err := store.ListForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].SenderFirstName != "Pat" || msgs[1].SenderFirstName != "Dana" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestStoreConversationList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	doctorID := uuid.New()
	last := time.Now()
	rows := pgxmock.NewRows([]string{"user_id", "first_name", "last_name", "last_at"}).
		AddRow(uuid.New(), "Pat", "Doe", &last).
		AddRow(uuid.New(), "Quinn", "Poe", (*time.Time)(nil))
	mock.ExpectQuery("SELECT p.user_id, p.first_name, p.last_name, MAX").
		WithArgs(doctorID).
		WillReturnRows(rows)

	convos, err := store.ConversationList(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("conversation list: %v", err)
	}
	if len(convos) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convos))
	}
	if convos[1].LastAt != nil {
		t.Fatalf("patient without messages must have nil last_at: %+v", convos[1])
	}
}

func TestStoreUnreadCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	receiver := uuid.New()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(receiver).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.UnreadCount(context.Background(), receiver)
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d err=%v", n, err)
	}
}

func TestStoreMarkReadBeforeCountsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	receiver := uuid.New()
	bound := time.Now()
	mock.ExpectExec("UPDATE messages SET read").
		WithArgs(bound, receiver).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := store.MarkReadBefore(context.Background(), bound, receiver)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 rows, got %d err=%v", n, err)
	}
}

func TestStoreMarkReadBeforeFromSender(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	receiver, sender := uuid.New(), uuid.New()
	bound := time.Now()
	mock.ExpectExec("UPDATE messages SET read").
		WithArgs(bound, receiver, sender).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := store.MarkReadBeforeFromSender(context.Background(), bound, receiver, sender)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 row, got %d err=%v", n, err)
	}
}
