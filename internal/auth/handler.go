package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// UserStore is the slice of the identity store the auth handler needs.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string, includePassword bool) (*identity.User, error)
	GetPatient(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	GetDoctor(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
}

// RoleSource resolves the role row backing a user account.
type RoleSource interface {
	GetPatient(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	GetDoctor(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
}

// SessionGate is the part of the session manager used here.
type SessionGate interface {
	Create(ctx context.Context, w http.ResponseWriter, p *session.Principal) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Handler serves login and logout.
type Handler struct {
	users    UserStore
	sessions SessionGate
	logger   *logging.Logger
}

func NewHandler(users UserStore, sessions SessionGate, logger *logging.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, logger: logger}
}

// BuildPrincipal assembles the session principal for a user, including its
// patient or doctor role snapshot.
func BuildPrincipal(ctx context.Context, roles RoleSource, u *identity.User) (*session.Principal, error) {
	p := &session.Principal{UserID: u.ID, Type: u.Type, Email: u.Email}
	switch u.Type {
	case identity.TypePatient:
		pat, err := roles.GetPatient(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("auth: load patient role: %w", err)
		}
		p.Patient = pat
		p.FirstName, p.LastName = pat.FirstName, pat.LastName
	case identity.TypeDoctor:
		doc, err := roles.GetDoctor(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("auth: load doctor role: %w", err)
		}
		p.Doctor = doc
		p.FirstName, p.LastName = doc.FirstName, doc.LastName
	default:
		return nil, fmt.Errorf("auth: unknown user type %q", u.Type)
	}
	return p, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	var errs []respond.FieldError
	if !ValidEmail(req.Email) {
		errs = append(errs, respond.FieldError{Msg: "Please include a valid email", Param: "email"})
	}
	if len(req.Password) < 6 {
		errs = append(errs, respond.FieldError{Msg: "Please include a password with at least 6 characters", Param: "password"})
	}
	if len(errs) > 0 {
		respond.ValidationErrors(w, errs)
		return
	}

	u, err := h.users.FindUserByEmail(r.Context(), req.Email, true)
	if errors.Is(err, identity.ErrNotFound) {
		respond.FieldFailure(w, "Email does not exist", "email")
		return
	}
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if !CheckPassword(u.PasswordHash, req.Password) {
		respond.FieldFailure(w, "Incorrect password", "password")
		return
	}

	p, err := BuildPrincipal(r.Context(), h.users, u)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if err := h.sessions.Create(r.Context(), w, p); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.logger.Info("signed in", "user_id", u.ID, "type", u.Type)
	respond.Success(w, map[string]string{"op": "signed in"})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, map[string]string{"op": "signed out"})
}

// Me handles GET /api/auth, returning the current principal.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	respond.Success(w, p)
}
