// Package provider serves the provider popup login endpoints
package provider

import (
	"context"
	"net/http"

	"github.com/wrale/authsession/cmd/authsession/handlers/common"
	"github.com/wrale/authsession/internal/auth"
)

// Service runs provider logins
type Service interface {
	StartProviderLogin(ctx context.Context) *auth.ProviderLogin
	CurrentProvider() (*auth.ProviderLogin, error)
}

// WindowLocator reports the authorization window awaiting the UI, if any
type WindowLocator interface {
	Current() (id, url string, ok bool)
}

// Response describes the current provider login
type Response struct {
	AuthURL  string `json:"auth_url,omitempty"`
	WindowID string `json:"window_id,omitempty"`
	common.ProgressResponse
}

// Handler serves /auth/provider
type Handler struct {
	svc     Service
	windows WindowLocator
}

// New creates a provider handler. windows may be nil when windows are not relayed.
func New(svc Service, windows WindowLocator) *Handler {
	return &Handler{svc: svc, windows: windows}
}

// Start handles POST /auth/provider
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.svc.StartProviderLogin(r.Context())
	common.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Progress handles GET /auth/provider
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CurrentProvider()
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, h.newResponse(p))
}

// Cancel handles DELETE /auth/provider
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.CurrentProvider()
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	p.Cancel()
	<-p.Done()
	common.WriteJSON(w, http.StatusOK, h.newResponse(p))
}

func (h *Handler) newResponse(p *auth.ProviderLogin) Response {
	progress := p.Progress()
	resp := Response{
		AuthURL:          progress.AuthURL,
		ProgressResponse: common.NewProgressResponse(progress),
	}
	if h.windows != nil && !progress.Done {
		if id, _, ok := h.windows.Current(); ok {
			resp.WindowID = id
		}
	}
	return resp
}
