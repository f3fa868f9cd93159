package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclinic/telemed-portal/internal/auth"
	"github.com/openclinic/telemed-portal/internal/calendar"
	httpmiddleware "github.com/openclinic/telemed-portal/internal/http/middleware"
	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/messaging"
	"github.com/openclinic/telemed-portal/internal/scheduling"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/internal/video"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sessions           *session.Manager
	AuthHandler        *auth.Handler
	AccountHandler     *auth.AccountHandler
	CalendarHandler    *calendar.Handler
	SchedulingHandler  *scheduling.Handler
	MessagingHandler   *messaging.Handler
	VideoHandler       *video.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AuthRateLimit      float64
	AuthRateBurst      int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		// Credential endpoints are rate limited per client IP and closed
		// to signed-in callers.
		public.Group(func(creds chi.Router) {
			if cfg.AuthRateLimit > 0 {
				creds.Use(httpmiddleware.RateLimit(cfg.AuthRateLimit, cfg.AuthRateBurst))
			}
			creds.Use(httpmiddleware.RequireAnon(cfg.Sessions))
			creds.Post("/api/users", cfg.AccountHandler.Register)
			creds.Post("/api/auth", cfg.AuthHandler.Login)
		})
	})

	// Session-scoped API
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.RequireUser(cfg.Sessions))

		authed.Get("/api/auth", cfg.AuthHandler.Me)
		authed.Post("/api/auth/logout", cfg.AuthHandler.Logout)

		authed.Route("/api/events", func(r chi.Router) {
			r.Post("/", cfg.CalendarHandler.Create)
			r.Get("/", cfg.CalendarHandler.List)
			r.Get("/week", cfg.CalendarHandler.Week)

			r.Get("/appointments", cfg.SchedulingHandler.List)
			r.With(httpmiddleware.RequirePatient).Get("/availability", cfg.SchedulingHandler.Availability)
			r.With(httpmiddleware.RequirePatient).Post("/appointment", cfg.SchedulingHandler.Create)
			r.Put("/appointment/{apptID}", cfg.SchedulingHandler.Reschedule)
			r.Delete("/appointment/{apptID}", cfg.SchedulingHandler.Delete)

			r.Put("/{eventID}", cfg.CalendarHandler.Update)
			r.Delete("/{eventID}", cfg.CalendarHandler.Delete)
		})

		authed.Route("/api/messages", func(r chi.Router) {
			r.Get("/", cfg.MessagingHandler.List)
			r.With(httpmiddleware.RequirePatient).Post("/", cfg.MessagingHandler.Send)
			r.Get("/unread", cfg.MessagingHandler.Unread)
			r.With(httpmiddleware.RequireDoctor).Get("/unread/doc", cfg.MessagingHandler.UnreadPerChat)
			r.With(httpmiddleware.RequirePatient).Put("/read", cfg.MessagingHandler.MarkRead)
			r.With(httpmiddleware.RequireDoctor).Put("/read/user/{patientID}", cfg.MessagingHandler.MarkReadFromPatient)
			r.With(httpmiddleware.RequireDoctor).Get("/{patientID}", cfg.MessagingHandler.ListForPatient)
			r.With(httpmiddleware.RequireDoctor).Post("/{patientID}", cfg.MessagingHandler.SendToPatient)
		})

		authed.Route("/api/profile", func(r chi.Router) {
			r.Put("/", cfg.AccountHandler.UpdateProfile)
			r.Put("/password", cfg.AccountHandler.UpdatePassword)
			r.Get("/address", cfg.AccountHandler.GetAddress)
			r.Put("/address", cfg.AccountHandler.UpdateAddress)
		})

		authed.Get("/api/video/token", cfg.VideoHandler.Token)
	})

	return r
}
