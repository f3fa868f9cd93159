package identity

import (
	"time"

	"github.com/google/uuid"
)

// User types. Every account is exactly one of the two.
const (
	TypePatient = "patient"
	TypeDoctor  = "doctor"
)

// User is the base account row shared by patients and doctors.
// PasswordHash is only populated when the caller explicitly asks for it.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Patient is the role row for users of type patient. DoctorID stays nil
// until a doctor is assigned.
type Patient struct {
	UserID    uuid.UUID  `json:"user_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Age       int        `json:"age"`
	Insurance string     `json:"insurance"`
	DoctorID  *uuid.UUID `json:"doctor_id"`
}

// Doctor is the role row for users of type doctor.
type Doctor struct {
	UserID     uuid.UUID `json:"user_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Department string    `json:"department"`
}

// Address is the optional mailing address attached to an account.
type Address struct {
	UserID uuid.UUID `json:"user_id"`
	Street string    `json:"street"`
	City   string    `json:"city"`
	State  string    `json:"state"`
	Zip    string    `json:"zip"`
}

// RegisterPatientParams carries the validated registration payload for a patient.
type RegisterPatientParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Age          int
	Insurance    string
}

// RegisterDoctorParams carries the validated registration payload for a doctor.
type RegisterDoctorParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Department   string
}

// ProfileUpdate holds the merged profile fields for an update. Empty
// strings leave the stored value untouched.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Email     string
}
