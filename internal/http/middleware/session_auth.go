package middleware

import (
	"net/http"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/session"
)

// RequireUser resolves the request's session, renews its sliding expiry
// and stores the principal in the request context. Requests without a live
// session get a 401.
func RequireUser(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := sessions.Get(r.Context(), w, r)
			if err != nil {
				respond.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAnon rejects requests that already carry a session. Used on
// registration and login.
func RequireAnon(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := sessions.Get(r.Context(), nil, r); err == nil {
				respond.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePatient allows only principals of type patient. Must be stacked
// after RequireUser.
func RequirePatient(next http.Handler) http.Handler {
	return requireType(identity.TypePatient, next)
}

// RequireDoctor allows only principals of type doctor. Must be stacked
// after RequireUser.
func RequireDoctor(next http.Handler) http.Handler {
	return requireType(identity.TypeDoctor, next)
}

func requireType(userType string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := session.FromContext(r.Context())
		if !ok || p.Type != userType {
			respond.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
