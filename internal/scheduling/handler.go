package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/calendar"
	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// DoctorDirectory resolves doctor role rows. The counterpart doctor for a
// booking always comes from the patient's assignment, never from client
// input.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
}

// Handler serves the appointment endpoints under /api/events.
type Handler struct {
	coord   *Coordinator
	doctors DoctorDirectory
	logger  *logging.Logger
}

func NewHandler(coord *Coordinator, doctors DoctorDirectory, logger *logging.Logger) *Handler {
	return &Handler{coord: coord, doctors: doctors, logger: logger}
}

// zeroTime tells Reschedule to keep the current datetime.
var zeroTime time.Time

type appointmentRequest struct {
	Datetime string `json:"datetime"`
	Duration string `json:"duration"`
	Notes    string `json:"notes"`
}

// resolveAssignedDoctor loads the participant record for the patient's
// assigned doctor.
func (h *Handler) resolveAssignedDoctor(ctx context.Context, p *session.Principal) (Participant, bool, error) {
	doctorID, ok := p.AssignedDoctorID()
	if !ok {
		return Participant{}, false, nil
	}
	doc, err := h.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return Participant{}, false, err
	}
	return Participant{UserID: doc.UserID, FirstName: doc.FirstName, LastName: doc.LastName}, true, nil
}

// Create handles POST /api/events/appointment. Patient-only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok || p.Type != identity.TypePatient {
		respond.Unauthorized(w)
		return
	}
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	at, err := calendar.ParseDateTime(req.Datetime)
	if err != nil {
		respond.FieldFailure(w, "Please select a valid date", "datetime")
		return
	}

	doctor, assigned, err := h.resolveAssignedDoctor(r.Context(), p)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if !assigned {
		respond.FieldFailure(w, "No doctor assigned", "doctor")
		return
	}

	patient := Participant{UserID: p.UserID, FirstName: p.FirstName, LastName: p.LastName}
	if _, err := h.coord.Book(r.Context(), patient, doctor, at, req.Duration, req.Notes); err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	respond.Success(w, nil)
}

// Delete handles DELETE /api/events/appointment/{apptID}. Participants only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "apptID"))
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	if err := h.coord.Cancel(r.Context(), p.Type, p.UserID, id); err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	respond.Success(w, map[string]string{"id": id.String()})
}

// Reschedule handles PUT /api/events/appointment/{apptID}. Participants
// only; the linked events move with the appointment.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "apptID"))
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	at := zeroTime
	if req.Datetime != "" {
		if at, err = calendar.ParseDateTime(req.Datetime); err != nil {
			respond.FieldFailure(w, "Please select a valid date", "datetime")
			return
		}
	}
	a, err := h.coord.Reschedule(r.Context(), p.Type, p.UserID, id, at, req.Duration, req.Notes)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	respond.Success(w, a)
}

// List handles GET /api/events/appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	appts, err := h.coord.ListFor(r.Context(), p.Type, p.UserID)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appts)
}

// Availability handles GET /api/events/availability. Patient-only; returns
// the occupied datetimes on the assigned doctor's calendar.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok || p.Type != identity.TypePatient {
		respond.Unauthorized(w)
		return
	}
	doctorID, assigned := p.AssignedDoctorID()
	if !assigned {
		respond.FieldFailure(w, "No doctor assigned", "doctor")
		return
	}
	slots, err := h.coord.Availability(r.Context(), doctorID)
	if err != nil {
		h.writeCoordinatorError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, slots)
}

func (h *Handler) writeCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotBookable):
		respond.FieldFailure(w, "Please select a valid date", "datetime")
	case errors.Is(err, ErrSlotTaken):
		respond.FieldFailure(w, "That time is already taken", "datetime")
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotParticipant):
		respond.Unauthorized(w)
	case errors.Is(err, ErrOpTimeout):
		respond.Timeout(w)
	default:
		respond.ServerError(w, h.logger, err)
	}
}
