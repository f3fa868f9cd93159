package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// EventStore is the slice of the store the handler needs; tests inject fakes.
type EventStore interface {
	Create(ctx context.Context, e Event) (*Event, error)
	Get(ctx context.Context, id uuid.UUID) (*Event, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]Event, error)
	ListByOwnerBetween(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Event, error)
	Update(ctx context.Context, e Event) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// Handler serves the personal calendar endpoints under /api/events.
type Handler struct {
	store     EventStore
	openHour  int
	closeHour int
	logger    *logging.Logger
	now       func() time.Time
}

func NewHandler(store EventStore, openHour, closeHour int, logger *logging.Logger) *Handler {
	return &Handler{store: store, openHour: openHour, closeHour: closeHour, logger: logger, now: time.Now}
}

// ParseDateTime accepts the wire datetime format used across the API.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", s)
}

func (h *Handler) validDatetime(t time.Time) bool {
	return t.After(h.now()) && t.Hour() >= h.openHour && t.Hour() < h.closeHour
}

type eventRequest struct {
	Datetime    string `json:"datetime"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/events.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}
	var errs []respond.FieldError
	at, err := ParseDateTime(req.Datetime)
	if err != nil || !h.validDatetime(at) {
		errs = append(errs, respond.FieldError{Msg: "Please select a valid date", Param: "datetime"})
	}
	if req.Name == "" {
		errs = append(errs, respond.FieldError{Msg: "Please enter a valid name", Param: "name"})
	}
	if len(errs) > 0 {
		respond.ValidationErrors(w, errs)
		return
	}

	data, err := h.store.Create(r.Context(), Event{
		UserID:      p.UserID,
		At:          at,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, data)
}

// List handles GET /api/events.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	events, err := h.store.ListByOwner(r.Context(), p.UserID)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}

// Week handles GET /api/events/week?date=YYYY-MM-DD, returning the events
// in the Sunday-to-Saturday week containing date.
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.Local)
	if err != nil {
		respond.FieldFailure(w, "Please select a valid date", "date")
		return
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start = start.AddDate(0, 0, -int(start.Weekday()))
	end := start.AddDate(0, 0, 6).Add(24*time.Hour - time.Millisecond)

	events, err := h.store.ListByOwnerBetween(r.Context(), p.UserID, start, end)
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}

// Update handles PUT /api/events/{eventID}. Missing fields keep their
// stored values. Foreign and missing events are both rejected with 401 so
// existence is not leaked.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.FieldFailure(w, "Invalid request body", "body")
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		respond.Unauthorized(w)
		return
	}
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	if event.UserID != p.UserID {
		respond.Unauthorized(w)
		return
	}

	if req.Datetime != "" {
		at, err := ParseDateTime(req.Datetime)
		if err != nil {
			respond.FieldFailure(w, "Please select a valid date", "datetime")
			return
		}
		event.At = at
	}
	if req.Name != "" {
		event.Name = req.Name
	}
	if req.Description != "" {
		event.Description = req.Description
	}

	if err := h.store.Update(r.Context(), *event); err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, event)
}

// Delete handles DELETE /api/events/{eventID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		respond.Unauthorized(w)
		return
	}
	if err := h.store.Delete(r.Context(), id, p.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Unauthorized(w)
			return
		}
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.Success(w, map[string]string{"id": id.String()})
}
