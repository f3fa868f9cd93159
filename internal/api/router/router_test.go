package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclinic/telemed-portal/internal/auth"
	"github.com/openclinic/telemed-portal/internal/calendar"
	"github.com/openclinic/telemed-portal/internal/identity"
	"github.com/openclinic/telemed-portal/internal/messaging"
	"github.com/openclinic/telemed-portal/internal/scheduling"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/internal/video"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.New("error")

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := session.NewManager(client, "sid", time.Hour, false)

	identityStore := identity.NewStore(mock)
	coordinator := scheduling.NewCoordinator(scheduling.NewStore(mock), scheduling.Options{
		OpenHour: 9, CloseHour: 17, OpTimeout: time.Second,
	}, nil, logger)
	issuer := video.NewIssuer([]byte("secret"), "telemedicineAppointment", time.Hour)

	cfg := &Config{
		Logger:            logger,
		Sessions:          sessions,
		AuthHandler:       auth.NewHandler(identityStore, sessions, logger),
		AccountHandler:    auth.NewAccountHandler(identityStore, sessions, logger),
		CalendarHandler:   calendar.NewHandler(calendar.NewStore(mock), 9, 17, logger),
		SchedulingHandler: scheduling.NewHandler(coordinator, identityStore, logger),
		MessagingHandler:  messaging.NewHandler(messaging.NewStore(mock), identityStore, nil, logger),
		VideoHandler:      video.NewHandler(issuer, logger),
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterRejectsUnauthenticated(t *testing.T) {
	router := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/events"},
		{http.MethodPost, "/api/events"},
		{http.MethodGet, "/api/events/appointments"},
		{http.MethodGet, "/api/messages"},
		{http.MethodPut, "/api/profile"},
		{http.MethodGet, "/api/video/token"},
		{http.MethodGet, "/api/auth"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equalf(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterRegistrationValidation(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"type":"patient"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp struct {
		Errors []struct{ Msg, Param string } `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Errors)
}

func TestRouterLoginValidation(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{"email":"bad","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
