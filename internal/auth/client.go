package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/wrale/authsession/internal/session"
)

// keeperTokenSource reads the bearer token from the session on every request
type keeperTokenSource struct {
	ctx    context.Context
	keeper *session.Keeper
}

func (s keeperTokenSource) Token() (*oauth2.Token, error) {
	sess, err := s.keeper.Get(s.ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotLoggedIn
	}
	return &oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}, nil
}

// TokenSource returns a token source over the held session. It is not
// cached, so refreshes and logouts apply to the next request.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return keeperTokenSource{ctx: ctx, keeper: m.keeper}
}

// HTTPClient returns a client that authenticates requests with the held
// session token. base may be nil.
func (m *Manager) HTTPClient(ctx context.Context, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: m.TokenSource(ctx),
			Base:   base,
		},
	}
}
