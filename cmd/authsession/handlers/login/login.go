// Package login serves the credential, registration and logout endpoints
package login

import (
	"context"
	"net/http"

	"github.com/wrale/authsession/cmd/authsession/handlers/common"
	"github.com/wrale/authsession/internal/session"
)

// Service performs credential logins
type Service interface {
	Login(ctx context.Context, username, password, role string) (*session.Session, error)
	Register(ctx context.Context, username, email, password, role string) (*session.Session, error)
	Logout(ctx context.Context) error
}

// Request is the body of POST /auth/login and POST /auth/register
type Request struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Response is the body of a successful login or registration
type Response struct {
	Status string            `json:"status"`
	Token  string            `json:"token"`
	User   *session.UserInfo `json:"user_info"`
}

// Handler serves the credential endpoints
type Handler struct {
	svc Service
}

// New creates a login handler
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteAuthError(w, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, Response{Status: "success", Token: sess.Token, User: sess.User})
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteAuthError(w, err)
		return
	}

	sess, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		common.WriteAuthError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, Response{Status: "success", Token: sess.Token, User: sess.User})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		common.WriteAuthError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
