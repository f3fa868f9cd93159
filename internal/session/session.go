// Package session implements the cookie-backed authorization gate. A
// session is a random id stored as an HTTP-only cookie pointing at a JSON
// principal in Redis. The TTL slides: every authenticated request renews
// both the Redis key and the cookie, so a session dies one idle hour after
// the last activity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/openclinic/telemed-portal/internal/identity"
)

// ErrNoSession is returned when the request carries no live session.
var ErrNoSession = errors.New("session: none")

const keyPrefix = "session:"

// Principal is the authenticated actor attached to a request. It is
// populated once at login and passed by value into every component; no
// process-wide session state exists.
type Principal struct {
	UserID    uuid.UUID         `json:"user_id"`
	Type      string            `json:"type"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Patient   *identity.Patient `json:"patient,omitempty"`
	Doctor    *identity.Doctor  `json:"doctor,omitempty"`
}

// DisplayName returns "First Last" for event descriptions and message lists.
func (p *Principal) DisplayName() string {
	return p.FirstName + " " + p.LastName
}

// AssignedDoctorID returns the patient's assigned doctor, or false when the
// principal is not a patient or no doctor is assigned yet.
func (p *Principal) AssignedDoctorID() (uuid.UUID, bool) {
	if p.Type != identity.TypePatient || p.Patient == nil || p.Patient.DoctorID == nil {
		return uuid.Nil, false
	}
	return *p.Patient.DoctorID, true
}

// Manager creates, resolves and destroys sessions.
type Manager struct {
	redis      *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{redis: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Create stores the principal under a fresh session id and sets the cookie.
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, p *Principal) error {
	id := uuid.NewString()
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: marshal principal: %w", err)
	}
	if err := m.redis.Set(ctx, keyPrefix+id, payload, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: store: %w", err)
	}
	m.setCookie(w, id, int(m.ttl.Seconds()))
	return nil
}

// Get resolves the request's session. When w is non-nil the expiry slides:
// the Redis TTL and cookie max-age are both renewed.
func (m *Manager) Get(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Principal, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	payload, err := m.redis.Get(ctx, keyPrefix+c.Value).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("session: decode principal: %w", err)
	}
	if w != nil {
		if err := m.redis.Expire(ctx, keyPrefix+c.Value, m.ttl).Err(); err != nil {
			return nil, fmt.Errorf("session: renew: %w", err)
		}
		m.setCookie(w, c.Value, int(m.ttl.Seconds()))
	}
	return &p, nil
}

// Update rewrites the stored principal for the request's session, keeping
// its remaining TTL.
func (m *Manager) Update(ctx context.Context, r *http.Request, p *Principal) error {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return ErrNoSession
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("session: marshal principal: %w", err)
	}
	if err := m.redis.Set(ctx, keyPrefix+c.Value, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	return nil
}

// Destroy deletes the session and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	c, err := r.Cookie(m.cookieName)
	if err == nil && c.Value != "" {
		if err := m.redis.Del(ctx, keyPrefix+c.Value).Err(); err != nil {
			return fmt.Errorf("session: destroy: %w", err)
		}
	}
	m.setCookie(w, "", -1)
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the request's principal if the auth middleware set one.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
