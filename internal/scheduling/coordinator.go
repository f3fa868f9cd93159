package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/observability/metrics"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

var (
	// ErrNotBookable rejects datetimes in the past or outside the
	// clinical day window.
	ErrNotBookable = errors.New("scheduling: datetime not bookable")
	// ErrSlotTaken rejects a booking when overlap checking is enabled
	// and the doctor already has an event at that instant.
	ErrSlotTaken = errors.New("scheduling: slot already taken")
	// ErrNotParticipant rejects principals that are neither the patient
	// nor the doctor of the appointment.
	ErrNotParticipant = errors.New("scheduling: not a participant")
	// ErrOpTimeout marks a store operation that exceeded its deadline.
	ErrOpTimeout = errors.New("scheduling: operation timed out")
)

// AppointmentStore is the persistence surface the coordinator drives.
// *Store implements it; tests inject fakes.
type AppointmentStore interface {
	Create(ctx context.Context, patient, doctor Participant, at time.Time, duration, notes string) (*Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, a *Appointment) error
	ListForPatient(ctx context.Context, userID uuid.UUID) ([]Appointment, error)
	ListForDoctor(ctx context.Context, userID uuid.UUID) ([]Appointment, error)
	HasEventAt(ctx context.Context, userID uuid.UUID, at time.Time) (bool, error)
	OccupiedSlots(ctx context.Context, userID uuid.UUID) ([]time.Time, error)
}

// Options tunes the coordinator's business rules.
type Options struct {
	OpenHour     int
	CloseHour    int
	OverlapCheck bool
	OpTimeout    time.Duration
}

// Coordinator enforces the appointment rules: clinical window, future-only
// booking, participant-only mutation, and the paired-event invariant (via
// the store's transactions).
type Coordinator struct {
	store   AppointmentStore
	opts    Options
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewCoordinator(store AppointmentStore, opts Options, m *metrics.SchedulingMetrics, logger *logging.Logger) *Coordinator {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{store: store, opts: opts, metrics: m, logger: logger, now: time.Now}
}

// Bookable reports whether at is strictly in the future and inside the
// clinical day window [open, close).
func (c *Coordinator) Bookable(at time.Time) bool {
	return at.After(c.now()) && at.Hour() >= c.opts.OpenHour && at.Hour() < c.opts.CloseHour
}

func (c *Coordinator) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opts.OpTimeout)
}

func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrOpTimeout
	}
	return err
}

// Book creates an appointment between a patient and their assigned doctor.
// The caller resolves both participants; the doctor must never come from
// client input.
func (c *Coordinator) Book(ctx context.Context, patient, doctor Participant, at time.Time, duration, notes string) (*Appointment, error) {
	if !c.Bookable(at) {
		c.metrics.ObserveRejected("window")
		return nil, ErrNotBookable
	}

	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	if c.opts.OverlapCheck {
		taken, err := c.store.HasEventAt(ctx, doctor.UserID, at)
		if err != nil {
			return nil, mapTimeout(err)
		}
		if taken {
			c.metrics.ObserveRejected("overlap")
			return nil, ErrSlotTaken
		}
	}

	a, err := c.store.Create(ctx, patient, doctor, at, duration, notes)
	if err != nil {
		return nil, mapTimeout(err)
	}
	c.metrics.ObserveBooked()
	c.logger.Info("appointment booked",
		"appointment_id", a.ID,
		"patient_id", a.PatientID,
		"doctor_id", a.DoctorID,
		"at", a.At,
	)
	return a, nil
}

// Cancel deletes an appointment with both linked events. Only the patient
// or doctor on the appointment may cancel; a missing appointment surfaces
// as ErrNotFound so handlers can conflate it with unauthorized.
func (c *Coordinator) Cancel(ctx context.Context, principalType string, principalID, apptID uuid.UUID) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	a, err := c.store.Get(ctx, apptID)
	if err != nil {
		return mapTimeout(err)
	}
	if err := authorize(a, principalType, principalID); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, apptID); err != nil {
		return mapTimeout(err)
	}
	c.metrics.ObserveCancelled()
	c.logger.Info("appointment cancelled", "appointment_id", apptID, "by", principalID)
	return nil
}

// Reschedule moves an appointment to a new datetime and/or rewrites its
// duration and notes, re-syncing both linked events atomically. A zero at
// keeps the current datetime.
func (c *Coordinator) Reschedule(ctx context.Context, principalType string, principalID, apptID uuid.UUID, at time.Time, duration, notes string) (*Appointment, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	a, err := c.store.Get(ctx, apptID)
	if err != nil {
		return nil, mapTimeout(err)
	}
	if err := authorize(a, principalType, principalID); err != nil {
		return nil, err
	}

	if !at.IsZero() {
		if !c.Bookable(at) {
			c.metrics.ObserveRejected("window")
			return nil, ErrNotBookable
		}
		a.At = at
	}
	if duration != "" {
		a.Duration = duration
	}
	if notes != "" {
		a.Notes = notes
	}

	if err := c.store.Reschedule(ctx, a); err != nil {
		return nil, mapTimeout(err)
	}
	c.logger.Info("appointment rescheduled", "appointment_id", apptID, "at", a.At)
	return a, nil
}

// ListFor returns the appointments visible to the principal: patients see
// rows where they are the patient, doctors where they are the doctor.
func (c *Coordinator) ListFor(ctx context.Context, principalType string, userID uuid.UUID) ([]Appointment, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	var (
		out []Appointment
		err error
	)
	if principalType == "doctor" {
		out, err = c.store.ListForDoctor(ctx, userID)
	} else {
		out, err = c.store.ListForPatient(ctx, userID)
	}
	if err != nil {
		return nil, mapTimeout(err)
	}
	return out, nil
}

// Availability returns the occupied datetimes on a doctor's calendar.
// This is a projection of taken slots, not a free-slot computation.
func (c *Coordinator) Availability(ctx context.Context, doctorID uuid.UUID) ([]time.Time, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	slots, err := c.store.OccupiedSlots(ctx, doctorID)
	if err != nil {
		return nil, mapTimeout(err)
	}
	return slots, nil
}

func authorize(a *Appointment, principalType string, principalID uuid.UUID) error {
	switch principalType {
	case "patient":
		if a.PatientID == principalID {
			return nil
		}
	case "doctor":
		if a.DoctorID == principalID {
			return nil
		}
	}
	return fmt.Errorf("%w: appointment %s", ErrNotParticipant, a.ID)
}
