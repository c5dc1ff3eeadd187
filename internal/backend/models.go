package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wrale/authsession/internal/session"
)

// PollStatus is the device code state reported by the backend
type PollStatus string

// Device code states
const (
	StatusPending    PollStatus = "pending"
	StatusAuthorized PollStatus = "authorized"
	StatusExpired    PollStatus = "expired"
	StatusError      PollStatus = "error"
)

// DeviceAuthorization is the response to POST /api/device/auth
type DeviceAuthorization struct {
	Status    string    `json:"status"`
	Code      string    `json:"code"`
	ExpiresAt Timestamp `json:"expires_at"`
	Message   string    `json:"message,omitempty"`
}

// PollResult is the response to GET /api/device/poll
type PollResult struct {
	Status  PollStatus        `json:"status"`
	Token   string            `json:"token,omitempty"`
	User    *session.UserInfo `json:"user_info,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Session returns the session carried by an authorized poll, or nil
func (p *PollResult) Session() *session.Session {
	if p.Status != StatusAuthorized {
		return nil
	}
	return session.New(p.Token, p.User)
}

// AuthorizeRequest is the body of POST /api/device/authorize
type AuthorizeRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AuthorizeResult is the response to POST /api/device/authorize. Token and
// User are only present when the backend resolves the session directly.
type AuthorizeResult struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Token   string            `json:"token,omitempty"`
	User    *session.UserInfo `json:"user_info,omitempty"`
}

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ProviderAuthorization is the response to GET /api/auth/google/start
type ProviderAuthorization struct {
	Status    string    `json:"status"`
	Code      string    `json:"code"`
	AuthURL   string    `json:"auth_url"`
	ExpiresAt Timestamp `json:"expires_at"`
	Message   string    `json:"message,omitempty"`
}

type tokenPair struct {
	Token string            `json:"token"`
	User  *session.UserInfo `json:"user_info"`
}

type refreshResponse struct {
	NewToken string `json:"new_token"`
}

// zonelessLayout is the ISO-8601 form the backend emits without an offset
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// Timestamp accepts RFC 3339 and zone-less ISO-8601 timestamps. Zone-less
// values are interpreted in local time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(zonelessLayout, raw, time.Local)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
