// Package session holds the authenticated session and the store that owns it
package session

import "errors"

var (
	// ErrIncompleteSession indicates a session missing its token or its user
	ErrIncompleteSession = errors.New("session requires both token and user")
)

// UserInfo is the user profile returned by the backend alongside a token
type UserInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	ImageURL  string `json:"image_url,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Session pairs a bearer token with the profile it was issued for
type Session struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user_info"`
}

// New builds a session, returning nil unless both parts are present
func New(token string, user *UserInfo) *Session {
	s := &Session{Token: token, User: user}
	if s.Validate() != nil {
		return nil
	}
	return s
}

// Validate reports whether the session is fully present
func (s *Session) Validate() error {
	if s == nil || s.Token == "" || s.User == nil {
		return ErrIncompleteSession
	}
	return nil
}

// WithToken returns a copy of the session carrying token
func (s *Session) WithToken(token string) *Session {
	user := *s.User
	return &Session{Token: token, User: &user}
}
