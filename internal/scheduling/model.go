package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment links one doctor-owned and one patient-owned calendar event
// created as an atomic pair. The appointment datetime equals both linked
// events' datetime; rescheduling re-syncs all three rows in one
// transaction.
type Appointment struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	At             time.Time `json:"datetime"`
	Duration       string    `json:"duration"`
	Notes          string    `json:"notes"`
	DoctorEventID  uuid.UUID `json:"doctor_event_id"`
	PatientEventID uuid.UUID `json:"patient_event_id"`
}

// Participant identifies one side of an appointment with the fields needed
// for the paired event descriptions.
type Participant struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
}

func (p Participant) displayName() string {
	return p.FirstName + " " + p.LastName
}
