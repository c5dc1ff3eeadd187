// Package refresh keeps the session token fresh and derives the auth status
package refresh

import (
	"context"
	"errors"
	"net/http"

	"github.com/wrale/authsession/internal/backend"
)

// Backend exchanges a token for a new one
type Backend interface {
	RefreshToken(ctx context.Context, token string) (string, error)
}

// Refresher classifies refresh responses
type Refresher struct {
	backend Backend
}

// NewRefresher creates a Refresher over b
func NewRefresher(b Backend) *Refresher {
	return &Refresher{backend: b}
}

// Refresh exchanges token once. Only a 401, or a success reply without a
// new token, is definitive; every other failure is transient.
func (r *Refresher) Refresh(ctx context.Context, token string) Outcome {
	if token == "" {
		return DefinitelyExpired{}
	}

	newToken, err := r.backend.RefreshToken(ctx, token)
	if err != nil {
		var httpErr *backend.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return DefinitelyExpired{}
		}
		return TransientFailure{Err: err}
	}
	if newToken == "" {
		return DefinitelyExpired{}
	}
	return Refreshed{Token: newToken}
}
