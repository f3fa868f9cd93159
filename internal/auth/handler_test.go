package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

type fakeUserStore struct {
	users    map[string]*identity.User
	patients map[uuid.UUID]*identity.Patient
	doctors  map[uuid.UUID]*identity.Doctor
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    map[string]*identity.User{},
		patients: map[uuid.UUID]*identity.Patient{},
		doctors:  map[uuid.UUID]*identity.Doctor{},
	}
}

func (f *fakeUserStore) FindUserByEmail(_ context.Context, email string, includePassword bool) (*identity.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *u
	if !includePassword {
		cp.PasswordHash = ""
	}
	return &cp, nil
}

func (f *fakeUserStore) GetPatient(_ context.Context, userID uuid.UUID) (*identity.Patient, error) {
	p, ok := f.patients[userID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return p, nil
}

func (f *fakeUserStore) GetDoctor(_ context.Context, userID uuid.UUID) (*identity.Doctor, error) {
	d, ok := f.doctors[userID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return d, nil
}

type fakeSessions struct {
	created   *session.Principal
	updated   *session.Principal
	destroyed bool
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, p *session.Principal) error {
	f.created = p
	http.SetCookie(w, &http.Cookie{Name: "sid", Value: "test"})
	return nil
}

func (f *fakeSessions) Update(_ context.Context, _ *http.Request, p *session.Principal) error {
	f.updated = p
	return nil
}

func (f *fakeSessions) Destroy(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	f.destroyed = true
	return nil
}

func seedPatient(f *fakeUserStore, email, password string) *identity.User {
	hash, _ := HashPassword(password)
	u := &identity.User{ID: uuid.New(), Email: email, PasswordHash: hash, Type: identity.TypePatient}
	f.users[email] = u
	f.patients[u.ID] = &identity.Patient{UserID: u.ID, FirstName: "Pat", LastName: "Doe", Age: 30}
	return u
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLoginSuccess(t *testing.T) {
	store := newFakeUserStore()
	seedPatient(store, "pat@example.com", "Sup3r$ecret")
	sessions := &fakeSessions{}
	h := NewHandler(store, sessions, logging.New("error"))

	rec := postJSON(t, h.Login, map[string]string{"email": "pat@example.com", "password": "Sup3r$ecret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if sessions.created == nil || sessions.created.Type != identity.TypePatient {
		t.Fatalf("expected patient session, got %+v", sessions.created)
	}
	if sessions.created.FirstName != "Pat" {
		t.Fatalf("expected role snapshot in principal, got %+v", sessions.created)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	h := NewHandler(newFakeUserStore(), &fakeSessions{}, logging.New("error"))

	rec := postJSON(t, h.Login, map[string]string{"email": "nobody@example.com", "password": "Sup3r$ecret"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Errors []struct{ Msg, Param string } `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Errors) != 1 || body.Errors[0].Msg != "Email does not exist" {
		t.Fatalf("unexpected errors %+v", body.Errors)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	seedPatient(store, "pat@example.com", "Sup3r$ecret")
	sessions := &fakeSessions{}
	h := NewHandler(store, sessions, logging.New("error"))

	rec := postJSON(t, h.Login, map[string]string{"email": "pat@example.com", "password": "Wr0ng$pass"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if sessions.created != nil {
		t.Fatal("no session should be created")
	}
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	h := NewHandler(newFakeUserStore(), &fakeSessions{}, logging.New("error"))

	rec := postJSON(t, h.Login, map[string]string{"email": "not-an-email", "password": "abc"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Errors []struct{ Msg, Param string } `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Errors) != 2 {
		t.Fatalf("expected email and password errors, got %+v", body.Errors)
	}
}

func TestMeReturnsPrincipal(t *testing.T) {
	h := NewHandler(newFakeUserStore(), &fakeSessions{}, logging.New("error"))

	p := &session.Principal{UserID: uuid.New(), Type: identity.TypeDoctor, FirstName: "Dana"}
	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	req = req.WithContext(session.WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Data session.Principal `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.UserID != p.UserID {
		t.Fatalf("expected principal echoed back, got %+v", body.Data)
	}
}

func TestMeWithoutSession(t *testing.T) {
	h := NewHandler(newFakeUserStore(), &fakeSessions{}, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
