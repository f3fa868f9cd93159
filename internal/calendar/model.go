package calendar

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single slot on one user's calendar. It exists either on its
// own or as one half of an appointment pair.
type Event struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	At          time.Time `json:"datetime"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}
