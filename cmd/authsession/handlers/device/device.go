// Package device serves the device login endpoints
package device

import (
	"context"
	"net/http"
	"time"

	"github.com/wrale/authsession/cmd/authsession/handlers/common"
	"github.com/wrale/authsession/internal/auth"
)

// Service runs device logins
type Service interface {
	StartDeviceLogin(ctx context.Context) (*auth.DeviceLogin, error)
	CurrentDevice() (*auth.DeviceLogin, error)
}

// Response describes the current device login
type Response struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	common.ProgressResponse
}

// Handler serves /auth/device
type Handler struct {
	svc Service
}

// New creates a device handler
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Start handles POST /auth/device
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.StartDeviceLogin(r.Context())
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, newResponse(d))
}

// Progress handles GET /auth/device
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.CurrentDevice()
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, newResponse(d))
}

// Cancel handles DELETE /auth/device
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.CurrentDevice()
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	d.Cancel()
	<-d.Done()
	common.WriteJSON(w, http.StatusOK, newResponse(d))
}

func newResponse(d *auth.DeviceLogin) Response {
	return Response{
		Code:             d.Code,
		ExpiresAt:        d.ExpiresAt,
		ProgressResponse: common.NewProgressResponse(d.Progress()),
	}
}
