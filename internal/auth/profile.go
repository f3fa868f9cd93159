package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
)

type profileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// UpdateProfile handles PUT /api/profile. Empty fields keep their stored
// value. The session principal is refreshed to match.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	if req.Email != "" && !ValidEmail(req.Email) {
		respond.FieldFailure(w, "Please include a valid email", "email")
		return
	}

	upd := identity.ProfileUpdate{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
	err := h.store.UpdateProfile(r.Context(), p.UserID, p.Type, upd)
	if errors.Is(err, identity.ErrEmailTaken) {
		respond.FieldFailure(w, "Email already exists", "email")
		return
	}
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}

	u, err := h.store.FindUserByID(r.Context(), p.UserID, false)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	fresh, err := BuildPrincipal(r.Context(), h.store, u)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if err := h.sessions.Update(r.Context(), r, fresh); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, fresh)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UpdatePassword handles PUT /api/profile/password. On success the
// session is destroyed so the client signs in again.
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	if errs := ValidatePassword(req.Password); len(errs) > 0 {
		respond.ValidationErrors(w, errs)
		return
	}
	if req.Password != req.ConfirmPassword {
		respond.FieldFailure(w, "Passwords do not match", "confirm_password")
		return
	}

	u, err := h.store.FindUserByID(r.Context(), p.UserID, true)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if !CheckPassword(u.PasswordHash, req.CurrentPassword) {
		respond.FieldFailure(w, "Incorrect password", "current_password")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if err := h.store.UpdatePassword(r.Context(), p.UserID, hash); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	h.logger.Info("password changed", "user_id", p.UserID)
	respond.Success(w, map[string]string{"op": "password changed"})
}

// GetAddress handles GET /api/profile/address. An unset address comes
// back as an empty object rather than an error.
func (h *AccountHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	a, err := h.store.GetAddress(r.Context(), p.UserID)
	if errors.Is(err, identity.ErrNotFound) {
		respond.Success(w, &identity.Address{UserID: p.UserID})
		return
	}
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, a)
}

type addressRequest struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// UpdateAddress handles PUT /api/profile/address.
func (h *AccountHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	a := identity.Address{UserID: p.UserID, Street: req.Street, City: req.City, State: req.State, Zip: req.Zip}
	if err := h.store.UpsertAddress(r.Context(), a); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, a)
}
