package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// AccountStore is the slice of the identity store the registration and
// profile handlers need.
type AccountStore interface {
	RegisterPatient(ctx context.Context, p identity.RegisterPatientParams) (*identity.User, error)
	RegisterDoctor(ctx context.Context, d identity.RegisterDoctorParams) (*identity.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID, includePassword bool) (*identity.User, error)
	GetPatient(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
	GetDoctor(ctx context.Context, userID uuid.UUID) (*identity.Doctor, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, userType string, upd identity.ProfileUpdate) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error
	GetAddress(ctx context.Context, userID uuid.UUID) (*identity.Address, error)
	UpsertAddress(ctx context.Context, a identity.Address) error
}

// AccountSessions extends SessionGate with the refresh used after
// profile edits.
type AccountSessions interface {
	SessionGate
	Update(ctx context.Context, r *http.Request, p *session.Principal) error
}

// AccountHandler serves registration and profile management.
type AccountHandler struct {
	store    AccountStore
	sessions AccountSessions
	logger   *logging.Logger
}

func NewAccountHandler(store AccountStore, sessions AccountSessions, logger *logging.Logger) *AccountHandler {
	return &AccountHandler{store: store, sessions: sessions, logger: logger}
}

type registerRequest struct {
	Type            string `json:"type"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Age             int    `json:"age"`
	Insurance       string `json:"insurance"`
	Department      string `json:"department"`
}

func (req *registerRequest) validate() []respond.FieldError {
	var errs []respond.FieldError
	if req.Type != identity.TypePatient && req.Type != identity.TypeDoctor {
		errs = append(errs, respond.FieldError{Msg: "Type must be patient or doctor", Param: "type"})
	}
	if req.FirstName == "" {
		errs = append(errs, respond.FieldError{Msg: "First name is required", Param: "first_name"})
	}
	if req.LastName == "" {
		errs = append(errs, respond.FieldError{Msg: "Last name is required", Param: "last_name"})
	}
	if !ValidEmail(req.Email) {
		errs = append(errs, respond.FieldError{Msg: "Please include a valid email", Param: "email"})
	}
	errs = append(errs, ValidatePassword(req.Password)...)
	if req.Password != req.ConfirmPassword {
		errs = append(errs, respond.FieldError{Msg: "Passwords do not match", Param: "confirm_password"})
	}
	if req.Type == identity.TypeDoctor && req.Department == "" {
		errs = append(errs, respond.FieldError{Msg: "Department is required", Param: "department"})
	}
	if req.Type == identity.TypePatient && req.Age <= 0 {
		errs = append(errs, respond.FieldError{Msg: "Please enter a valid age", Param: "age"})
	}
	return errs
}

// Register handles POST /api/users. A successful registration signs the
// new account in immediately.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respond.ValidationErrors(w, errs)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}

	var u *identity.User
	switch req.Type {
	case identity.TypePatient:
		u, err = h.store.RegisterPatient(r.Context(), identity.RegisterPatientParams{
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Age:          req.Age,
			Insurance:    req.Insurance,
		})
	case identity.TypeDoctor:
		u, err = h.store.RegisterDoctor(r.Context(), identity.RegisterDoctorParams{
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Department:   req.Department,
		})
	}
	if errors.Is(err, identity.ErrEmailTaken) {
		respond.FieldFailure(w, "Email already exists", "email")
		return
	}
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}

	p, err := BuildPrincipal(r.Context(), h.store, u)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if err := h.sessions.Create(r.Context(), w, p); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.logger.Info("registered", "user_id", u.ID, "type", u.Type)
	respond.Created(w, map[string]string{"op": "registered"})
}
