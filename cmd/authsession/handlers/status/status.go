// Package status reports the session state to the UI
package status

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wrale/authsession/cmd/authsession/handlers/common"
	"github.com/wrale/authsession/internal/refresh"
)

// Service reports the session state
type Service interface {
	Status(ctx context.Context) (refresh.AuthStatus, error)
}

// Handler serves GET /auth/status
type Handler struct {
	svc Service
	log zerolog.Logger
}

// New creates a status handler
func New(svc Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// ServeHTTP reports the session state. A store failure reads as logged out.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("reading auth status failed")
	}
	common.WriteJSON(w, http.StatusOK, st)
}
