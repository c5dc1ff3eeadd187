// Package window relays authorization window events from the UI
package window

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wrale/authsession/cmd/authsession/handlers/common"
	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/popup"
)

// Relay receives window events
type Relay interface {
	Deliver(id string, msg popup.Message) error
	MarkClosed(id string) error
}

// Handler serves /popup/{id}/...
type Handler struct {
	relay Relay
}

// New creates a popup handler
func New(relay Relay) *Handler {
	return &Handler{relay: relay}
}

// Message handles POST /popup/{id}/message
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var msg popup.Message
	if err := common.DecodeJSON(r, &msg); err != nil {
		common.WriteAuthError(w, err)
		return
	}
	if msg.Type == "" {
		common.WriteError(w, http.StatusBadRequest, autherr.CodeInvalidRequest, "message type is required")
		return
	}
	h.respond(w, h.relay.Deliver(chi.URLParam(r, "id"), msg))
}

// Closed handles POST /popup/{id}/closed
func (h *Handler) Closed(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.relay.MarkClosed(chi.URLParam(r, "id")))
}

func (h *Handler) respond(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, popup.ErrUnknownWindow):
		common.WriteError(w, http.StatusNotFound, autherr.CodeInvalidRequest, err.Error())
	case err != nil:
		common.WriteAuthError(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
