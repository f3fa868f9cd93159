package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/observability/metrics"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// MessageStore is the slice of the store the handler needs; tests inject fakes.
type MessageStore interface {
	Create(ctx context.Context, content string, senderID, receiverID uuid.UUID) (*Message, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Message, error)
	ConversationList(ctx context.Context, doctorID uuid.UUID) ([]Conversation, error)
	UnreadCount(ctx context.Context, receiverID uuid.UUID) (int, error)
	UnreadPerChat(ctx context.Context, receiverID uuid.UUID) ([]ChatUnread, error)
	MarkReadBefore(ctx context.Context, before time.Time, receiverID uuid.UUID) (int64, error)
	MarkReadBeforeFromSender(ctx context.Context, before time.Time, receiverID, senderID uuid.UUID) (int64, error)
}

// PatientDirectory resolves patient role rows for the doctor-side ACL.
type PatientDirectory interface {
	GetPatient(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
}

// Handler serves /api/messages. The ACL is strict: a patient talks only
// to their assigned doctor, a doctor only to patients assigned to them.
type Handler struct {
	store    MessageStore
	patients PatientDirectory
	metrics  *metrics.MessagingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewHandler(store MessageStore, patients PatientDirectory, m *metrics.MessagingMetrics, logger *logging.Logger) *Handler {
	return &Handler{store: store, patients: patients, metrics: m, logger: logger, now: time.Now}
}

type sendRequest struct {
	Content string `json:"content"`
}

// Send handles POST /api/messages. Patient-only; the receiver is always
// the assigned doctor.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok || p.Type != identity.TypePatient {
		respond.Unauthorized(w)
		return
	}
	receiverID, assigned := p.AssignedDoctorID()
	if !assigned {
		respond.FieldFailure(w, "No doctor assigned", "doctor")
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	if _, err := h.store.Create(r.Context(), content, p.UserID, receiverID); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.metrics.ObserveSent(identity.TypePatient)
	respond.Success(w, nil)
}

// SendToPatient handles POST /api/messages/{patientID}. Doctor-only.
func (h *Handler) SendToPatient(w http.ResponseWriter, r *http.Request) {
	p, patientID, ok := h.doctorAndPatient(w, r)
	if !ok {
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	if _, err := h.store.Create(r.Context(), content, p.UserID, patientID); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.metrics.ObserveSent(identity.TypeDoctor)
	respond.Success(w, nil)
}

// List handles GET /api/messages: a patient gets their message history, a
// doctor gets the conversation overview.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	switch p.Type {
	case identity.TypePatient:
		msgs, err := h.store.ListForUser(r.Context(), p.UserID)
		if err != nil {
			respond.ServerError(w, h.logger, err)
			return
		}
		respond.JSON(w, http.StatusOK, msgs)
	case identity.TypeDoctor:
		convos, err := h.store.ConversationList(r.Context(), p.UserID)
		if err != nil {
			respond.ServerError(w, h.logger, err)
			return
		}
		respond.JSON(w, http.StatusOK, convos)
	default:
		respond.Unauthorized(w)
	}
}

// ListForPatient handles GET /api/messages/{patientID}. Doctor-only; the
// patient must be assigned to the doctor.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	_, patientID, ok := h.doctorAndPatient(w, r)
	if !ok {
		return
	}
	msgs, err := h.store.ListForUser(r.Context(), patientID)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, msgs)
}

// Unread handles GET /api/messages/unread.
func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	n, err := h.store.UnreadCount(r.Context(), p.UserID)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"countUnread": n})
}

// UnreadPerChat handles GET /api/messages/unread/doc. Doctor-only.
func (h *Handler) UnreadPerChat(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok || p.Type != identity.TypeDoctor {
		respond.Unauthorized(w)
		return
	}
	chats, err := h.store.UnreadPerChat(r.Context(), p.UserID)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, chats)
}

// MarkRead handles PUT /api/messages/read. Patient-only; acknowledges
// everything received up to now.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok || p.Type != identity.TypePatient {
		respond.Unauthorized(w)
		return
	}
	n, err := h.store.MarkReadBefore(r.Context(), h.now(), p.UserID)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.metrics.ObserveReadBatch(int(n))
	respond.Success(w, nil)
}

// MarkReadFromPatient handles PUT /api/messages/read/user/{patientID}.
// Doctor-only.
func (h *Handler) MarkReadFromPatient(w http.ResponseWriter, r *http.Request) {
	p, patientID, ok := h.doctorAndPatient(w, r)
	if !ok {
		return
	}
	n, err := h.store.MarkReadBeforeFromSender(r.Context(), h.now(), p.UserID, patientID)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.metrics.ObserveReadBatch(int(n))
	respond.Success(w, nil)
}

// doctorAndPatient authorizes the doctor-side routes: the principal must
// be a doctor and {patientID} must be one of their patients. Unknown
// patients get the same 401 as foreign ones.
func (h *Handler) doctorAndPatient(w http.ResponseWriter, r *http.Request) (*session.Principal, uuid.UUID, bool) {
	p, ok := session.FromContext(r.Context())
	if !ok || p.Type != identity.TypeDoctor {
		respond.Unauthorized(w)
		return nil, uuid.Nil, false
	}
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		respond.Unauthorized(w)
		return nil, uuid.Nil, false
	}
	patient, err := h.patients.GetPatient(r.Context(), patientID)
	if errors.Is(err, identity.ErrNotFound) {
		respond.Unauthorized(w)
		return nil, uuid.Nil, false
	}
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return nil, uuid.Nil, false
	}
	if patient.DoctorID == nil || *patient.DoctorID != p.UserID {
		respond.Unauthorized(w)
		return nil, uuid.Nil, false
	}
	return p, patientID, true
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		respond.FieldFailure(w, "Please enter a message", "content")
		return "", false
	}
	return req.Content, true
}
