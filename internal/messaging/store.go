package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists direct messages in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

// Create inserts an unread message and returns it.
func (s *Store) Create(ctx context.Context, content string, senderID, receiverID uuid.UUID) (*Message, error) {
	m := Message{Content: content, SenderID: senderID, ReceiverID: receiverID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (content, sender_id, receiver_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
		content, senderID, receiverID,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("messaging: insert message: %w", err)
	}
	return &m, nil
}

// ListForUser returns every message the user sent or received, oldest
// first, with the sender's display name joined in from its role row.
func (s *Store) ListForUser(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.content, m.created_at, m.sender_id, m.receiver_id, m.read,
		        COALESCE(p.first_name, d.first_name, '') AS sender_first_name,
		        COALESCE(p.last_name, d.last_name, '') AS sender_last_name
		 FROM messages m
		 LEFT JOIN patients p ON p.user_id = m.sender_id
		 LEFT JOIN doctors d ON d.user_id = m.sender_id
		 WHERE m.sender_id = $1 OR m.receiver_id = $1
		 ORDER BY m.created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("messaging: list messages: %w", err)
	}
	defer rows.Close()
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.SenderID, &m.ReceiverID, &m.Read,
			&m.SenderFirstName, &m.SenderLastName); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ConversationList returns one row per patient assigned to the doctor with
// the timestamp of their latest exchange, for the chat overview.
func (s *Store) ConversationList(ctx context.Context, doctorID uuid.UUID) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.user_id, p.first_name, p.last_name, MAX(m.created_at) AS last_at
		 FROM patients p
		 LEFT JOIN messages m ON m.sender_id = p.user_id OR m.receiver_id = p.user_id
		 WHERE p.doctor_id = $1
		 GROUP BY p.user_id, p.first_name, p.last_name
		 ORDER BY last_at DESC NULLS LAST`, doctorID,
	)
	if err != nil {
		return nil, fmt.Errorf("messaging: conversation list: %w", err)
	}
	defer rows.Close()
	out := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.PatientID, &c.FirstName, &c.LastName, &c.LastAt); err != nil {
			return nil, fmt.Errorf("messaging: scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnreadCount returns how many unread messages the receiver has.
func (s *Store) UnreadCount(ctx context.Context, receiverID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(id) FROM messages WHERE receiver_id = $1 AND NOT read`, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("messaging: unread count: %w", err)
	}
	return n, nil
}

// UnreadPerChat groups the receiver's unread messages by sender.
func (s *Store) UnreadPerChat(ctx context.Context, receiverID uuid.UUID) ([]ChatUnread, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender_id, COUNT(*) FROM messages
		 WHERE receiver_id = $1 AND NOT read GROUP BY sender_id`, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("messaging: unread per chat: %w", err)
	}
	defer rows.Close()
	out := []ChatUnread{}
	for rows.Next() {
		var c ChatUnread
		if err := rows.Scan(&c.SenderID, &c.Count); err != nil {
			return nil, fmt.Errorf("messaging: scan unread: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkReadBefore acknowledges every message to the receiver created before
// the bound. Messages created afterwards are untouched. Returns how many
// rows flipped.
func (s *Store) MarkReadBefore(ctx context.Context, before time.Time, receiverID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE WHERE created_at < $1 AND receiver_id = $2 AND NOT read`,
		before, receiverID,
	)
	if err != nil {
		return 0, fmt.Errorf("messaging: mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkReadBeforeFromSender is MarkReadBefore scoped to a single sender.
func (s *Store) MarkReadBeforeFromSender(ctx context.Context, before time.Time, receiverID, senderID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE
		 WHERE created_at < $1 AND receiver_id = $2 AND sender_id = $3 AND NOT read`,
		before, receiverID, senderID,
	)
	if err != nil {
		return 0, fmt.Errorf("messaging: mark read from sender: %w", err)
	}
	return tag.RowsAffected(), nil
}
