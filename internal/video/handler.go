package video

import (
	"net/http"

	"github.com/openclinic/telemed-portal/internal/http/respond"
	"github.com/openclinic/telemed-portal/internal/session"
	"github.com/openclinic/telemed-portal/pkg/logging"
)

// Handler serves GET /api/video/token.
type Handler struct {
	issuer *Issuer
	logger *logging.Logger
}

func NewHandler(issuer *Issuer, logger *logging.Logger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// Token hands the caller a grant for the consultation room under their
// display name.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	p, ok := session.FromContext(r.Context())
	if !ok {
		respond.Unauthorized(w)
		return
	}
	token, err := h.issuer.Token(p.DisplayName())
	if err != nil {
		respond.ServerError(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"token": token})
}
