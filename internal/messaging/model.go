package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Message is one direct message between a doctor and their assigned
// patient. Read starts false and is flipped only by the receiver's batch
// read receipt, never by the sender.
type Message struct {
	ID         uuid.UUID `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Read       bool      `json:"read"`

	// Display name of the sender, joined in for list views.
	SenderFirstName string `json:"sender_first_name,omitempty"`
	SenderLastName  string `json:"sender_last_name,omitempty"`
}

// Conversation is one row of a doctor's chat overview: a patient assigned
// to the doctor and the time of their latest exchange.
type Conversation struct {
	PatientID uuid.UUID  `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	LastAt    *time.Time `json:"date"`
}

// ChatUnread is the number of unread messages from one sender.
type ChatUnread struct {
	SenderID uuid.UUID `json:"sender_id"`
	Count    int       `json:"countUnread"`
}
