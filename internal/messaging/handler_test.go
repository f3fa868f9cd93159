package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

type fakeMessageStore struct {
	messages []Message
}

func (f *fakeMessageStore) Create(_ context.Context, content string, senderID, receiverID uuid.UUID) (*Message, error) {
	m := Message{ID: uuid.New(), Content: content, CreatedAt: time.Now(), SenderID: senderID, ReceiverID: receiverID}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeMessageStore) ListForUser(_ context.Context, userID uuid.UUID) ([]Message, error) {
	out := []Message{}
	for _, m := range f.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ConversationList(_ context.Context, _ uuid.UUID) ([]Conversation, error) {
	return []Conversation{{PatientID: uuid.New(), FirstName: "Pat", LastName: "Doe"}}, nil
}

func (f *fakeMessageStore) UnreadCount(_ context.Context, receiverID uuid.UUID) (int, error) {
	n := 0
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageStore) UnreadPerChat(_ context.Context, receiverID uuid.UUID) ([]ChatUnread, error) {
	counts := map[uuid.UUID]int{}
	for _, m := range f.messages {
		if m.ReceiverID == receiverID && !m.Read {
			counts[m.SenderID]++
		}
	}
	out := []ChatUnread{}
	for sender, n := range counts {
		out = append(out, ChatUnread{SenderID: sender, Count: n})
	}
	return out, nil
}

func (f *fakeMessageStore) MarkReadBefore(_ context.Context, before time.Time, receiverID uuid.UUID) (int64, error) {
	var n int64
	for i, m := range f.messages {
		if m.ReceiverID == receiverID && !m.Read && m.CreatedAt.Before(before) {
			f.messages[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageStore) MarkReadBeforeFromSender(_ context.Context, before time.Time, receiverID, senderID uuid.UUID) (int64, error) {
	var n int64
	for i, m := range f.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read && m.CreatedAt.Before(before) {
			f.messages[i].Read = true
			n++
		}
	}
	return n, nil
}

type fakePatientDirectory struct {
	patients map[uuid.UUID]*identity.Patient
}

func (f *fakePatientDirectory) GetPatient(_ context.Context, userID uuid.UUID) (*identity.Patient, error) {
	p, ok := f.patients[userID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return p, nil
}

type msgFixture struct {
	store   *fakeMessageStore
	handler *Handler
	patient *session.Principal
	doctor  *session.Principal
}

func newMsgFixture(t *testing.T) *msgFixture {
	t.Helper()
	store := &fakeMessageStore{}
	doctorID := uuid.New()
	patientID := uuid.New()
	directory := &fakePatientDirectory{patients: map[uuid.UUID]*identity.Patient{
		patientID: {UserID: patientID, FirstName: "Pat", LastName: "Doe", DoctorID: &doctorID},
	}}
	return &msgFixture{
		store:   store,
		handler: NewHandler(store, directory, nil, logging.New("error")),
		patient: &session.Principal{
			UserID: patientID, Type: identity.TypePatient,
			Patient: &identity.Patient{UserID: patientID, DoctorID: &doctorID},
		},
		doctor: &session.Principal{UserID: doctorID, Type: identity.TypeDoctor},
	}
}

func msgRequest(t *testing.T, h http.HandlerFunc, method string, body any, p *session.Principal, patientID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, "/", bytes.NewReader(buf))
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	ctx := session.WithPrincipal(req.Context(), p)
	if patientID != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("patientID", patientID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	rec := httptest.NewRecorder()
	h(rec, req.WithContext(ctx))
	return rec
}

func TestSendGoesToAssignedDoctor(t *testing.T) {
	f := newMsgFixture(t)

	rec := msgRequest(t, f.handler.Send, http.MethodPost, map[string]string{"content": "hello"}, f.patient, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if len(f.store.messages) != 1 || f.store.messages[0].ReceiverID != f.doctor.UserID {
		t.Fatalf("unexpected messages %+v", f.store.messages)
	}
}

func TestSendWithoutAssignedDoctor(t *testing.T) {
	f := newMsgFixture(t)
	f.patient.Patient.DoctorID = nil

	rec := msgRequest(t, f.handler.Send, http.MethodPost, map[string]string{"content": "hello"}, f.patient, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	f := newMsgFixture(t)

	rec := msgRequest(t, f.handler.Send, http.MethodPost, map[string]string{}, f.patient, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSendToPatientChecksAssignment(t *testing.T) {
	f := newMsgFixture(t)

	rec := msgRequest(t, f.handler.SendToPatient, http.MethodPost,
		map[string]string{"content": "results are in"}, f.doctor, f.patient.UserID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	// A patient of another doctor is off limits; so is an unknown id. Both
	// answers are the same 401.
	foreign := uuid.New()
	rec = msgRequest(t, f.handler.SendToPatient, http.MethodPost,
		map[string]string{"content": "hi"}, f.doctor, foreign.String())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown patient, got %d", rec.Code)
	}

	otherDoctor := &session.Principal{UserID: uuid.New(), Type: identity.TypeDoctor}
	rec = msgRequest(t, f.handler.SendToPatient, http.MethodPost,
		map[string]string{"content": "hi"}, otherDoctor, f.patient.UserID.String())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign patient, got %d", rec.Code)
	}
}

func TestListSplitsByRole(t *testing.T) {
	f := newMsgFixture(t)
	if _, err := f.store.Create(context.Background(), "hello", f.patient.UserID, f.doctor.UserID); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := msgRequest(t, f.handler.List, http.MethodGet, nil, f.patient, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var msgs []Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode patient list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	rec = msgRequest(t, f.handler.List, http.MethodGet, nil, f.doctor, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var convos []Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &convos); err != nil {
		t.Fatalf("decode doctor overview: %v", err)
	}
	if len(convos) != 1 {
		t.Fatalf("expected conversation overview, got %+v", convos)
	}
}

func TestMarkReadLeavesLaterMessagesUnread(t *testing.T) {
	f := newMsgFixture(t)
	old := Message{ID: uuid.New(), SenderID: f.doctor.UserID, ReceiverID: f.patient.UserID,
		CreatedAt: time.Now().Add(-time.Hour)}
	future := Message{ID: uuid.New(), SenderID: f.doctor.UserID, ReceiverID: f.patient.UserID,
		CreatedAt: time.Now().Add(time.Hour)}
	f.store.messages = []Message{old, future}

	rec := msgRequest(t, f.handler.MarkRead, http.MethodPut, nil, f.patient, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !f.store.messages[0].Read {
		t.Fatal("old message should be read")
	}
	if f.store.messages[1].Read {
		t.Fatal("message created after the bound must stay unread")
	}
}

func TestUnreadEndpoints(t *testing.T) {
	f := newMsgFixture(t)
	for i := 0; i < 3; i++ {
		if _, err := f.store.Create(context.Background(), "hello", f.patient.UserID, f.doctor.UserID); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rec := msgRequest(t, f.handler.Unread, http.MethodGet, nil, f.doctor, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var count struct {
		CountUnread int `json:"countUnread"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.CountUnread != 3 {
		t.Fatalf("expected 3 unread, got %d", count.CountUnread)
	}

	rec = msgRequest(t, f.handler.UnreadPerChat, http.MethodGet, nil, f.doctor, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var chats []ChatUnread
	if err := json.Unmarshal(rec.Body.Bytes(), &chats); err != nil {
		t.Fatalf("decode chats: %v", err)
	}
	if len(chats) != 1 || chats[0].Count != 3 {
		t.Fatalf("unexpected chats %+v", chats)
	}
}

func TestMarkReadFromPatientScopedToSender(t *testing.T) {
	f := newMsgFixture(t)
	otherSender := uuid.New()
	f.store.messages = []Message{
		{ID: uuid.New(), SenderID: f.patient.UserID, ReceiverID: f.doctor.UserID, CreatedAt: time.Now().Add(-time.Minute)},
		{ID: uuid.New(), SenderID: otherSender, ReceiverID: f.doctor.UserID, CreatedAt: time.Now().Add(-time.Minute)},
	}

	rec := msgRequest(t, f.handler.MarkReadFromPatient, http.MethodPut, nil, f.doctor, f.patient.UserID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if !f.store.messages[0].Read {
		t.Fatal("message from the named patient should be read")
	}
	if f.store.messages[1].Read {
		t.Fatal("messages from other senders must stay unread")
	}
}
