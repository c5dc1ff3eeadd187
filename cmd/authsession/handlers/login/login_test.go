package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/authsession/cmd/authsession/handlers/common"
	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/session"
)

type mockService struct {
	loginFunc    func(ctx context.Context, username, password, role string) (*session.Session, error)
	registerFunc func(ctx context.Context, username, email, password, role string) (*session.Session, error)
	logoutErr    error
	logouts      int
}

func (m *mockService) Login(ctx context.Context, username, password, role string) (*session.Session, error) {
	return m.loginFunc(ctx, username, password, role)
}

func (m *mockService) Register(ctx context.Context, username, email, password, role string) (*session.Session, error) {
	return m.registerFunc(ctx, username, email, password, role)
}

func (m *mockService) Logout(ctx context.Context) error {
	m.logouts++
	return m.logoutErr
}

var testUser = &session.UserInfo{ID: "u1", Username: "alice", Email: "alice@example.com"}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		loginFunc  func(ctx context.Context, username, password, role string) (*session.Session, error)
		wantStatus int
		wantBody   any
	}{
		{
			name: "success",
			body: `{"username":"alice","password":"secret","role":"admin"}`,
			loginFunc: func(ctx context.Context, username, password, role string) (*session.Session, error) {
				if username != "alice" || password != "secret" || role != "admin" {
					return nil, errors.New("unexpected arguments")
				}
				return &session.Session{Token: "T", User: testUser}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   &Response{Status: "success", Token: "T", User: testUser},
		},
		{
			name: "rejected",
			body: `{"username":"alice","password":"wrong"}`,
			loginFunc: func(ctx context.Context, username, password, role string) (*session.Session, error) {
				return nil, autherr.WithDetail(autherr.ErrInvalidCredentials, "用户名或密码错误")
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   &common.ErrorResponse{Error: autherr.CodeInvalidCredentials, ErrorDescription: "用户名或密码错误"},
		},
		{
			name: "malformed body",
			body: `{"username":`,
			loginFunc: func(ctx context.Context, username, password, role string) (*session.Session, error) {
				return nil, errors.New("must not be called")
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   &common.ErrorResponse{Error: autherr.CodeInvalidRequest, ErrorDescription: "invalid body: must be a JSON object"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&mockService{loginFunc: tt.loginFunc})
			w := httptest.NewRecorder()
			h.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}

			got := newLike(tt.wantBody)
			if err := json.NewDecoder(w.Body).Decode(got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	svc := &mockService{registerFunc: func(ctx context.Context, username, email, password, role string) (*session.Session, error) {
		if email != "alice@example.com" {
			return nil, errors.New("email not forwarded")
		}
		return &session.Session{Token: "T", User: testUser}, nil
	}}

	w := httptest.NewRecorder()
	New(svc).Register(w, httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"pw"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var got Response
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if diff := cmp.Diff(Response{Status: "success", Token: "T", User: testUser}, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestLogout(t *testing.T) {
	svc := &mockService{}
	w := httptest.NewRecorder()
	New(svc).Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.logouts != 1 {
		t.Errorf("logouts = %d, want 1", svc.logouts)
	}

	svc.logoutErr = errors.New("redis down")
	w = httptest.NewRecorder()
	New(svc).Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// newLike returns a new zero value of the same pointer type as v
func newLike(v any) any {
	switch v.(type) {
	case *Response:
		return &Response{}
	case *common.ErrorResponse:
		return &common.ErrorResponse{}
	}
	panic("unexpected type")
}
