package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wrale/authsession/internal/session"
)

// Backend endpoint paths
const (
	PathDeviceAuth      = "/api/device/auth"
	PathDevicePoll      = "/api/device/poll"
	PathDeviceAuthorize = "/api/device/authorize"
	PathRegister        = "/api/auth/register"
	PathGoogleStart     = "/api/auth/google/start"
	PathRefreshToken    = "/api/device/refresh-token"
)

// ErrMalformedResponse indicates a 2xx response missing required fields
var ErrMalformedResponse = errors.New("malformed backend response")

// Timeouts bounds each backend call
type Timeouts struct {
	Start         time.Duration `envconfig:"START" default:"10s"`
	Poll          time.Duration `envconfig:"POLL" default:"5s"`
	Authorize     time.Duration `envconfig:"AUTHORIZE" default:"10s"`
	Register      time.Duration `envconfig:"REGISTER" default:"10s"`
	ProviderStart time.Duration `envconfig:"PROVIDER_START" default:"10s"`
	Refresh       time.Duration `envconfig:"REFRESH" default:"10s"`
}

// DefaultTimeouts returns the standard per-endpoint bounds
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Start:         10 * time.Second,
		Poll:          5 * time.Second,
		Authorize:     10 * time.Second,
		Register:      10 * time.Second,
		ProviderStart: 10 * time.Second,
		Refresh:       10 * time.Second,
	}
}

func (t Timeouts) merge(o Timeouts) Timeouts {
	pick := func(cur, override time.Duration) time.Duration {
		if override > 0 {
			return override
		}
		return cur
	}
	return Timeouts{
		Start:         pick(t.Start, o.Start),
		Poll:          pick(t.Poll, o.Poll),
		Authorize:     pick(t.Authorize, o.Authorize),
		Register:      pick(t.Register, o.Register),
		ProviderStart: pick(t.ProviderStart, o.ProviderStart),
		Refresh:       pick(t.Refresh, o.Refresh),
	}
}

// StartDeviceAuth mints a new device code
func (c *Client) StartDeviceAuth(ctx context.Context) (*DeviceAuthorization, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: PathDeviceAuth}, c.timeouts.Start)
	if err != nil {
		return nil, fmt.Errorf("starting device auth: %w", err)
	}

	var auth DeviceAuthorization
	if err := resp.DecodeJSON(&auth); err != nil {
		return nil, err
	}
	if auth.Code == "" {
		return nil, fmt.Errorf("starting device auth: %w: missing code", ErrMalformedResponse)
	}
	return &auth, nil
}

// PollDevice checks the state of a device code once
func (c *Client) PollDevice(ctx context.Context, code string) (*PollResult, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   PathDevicePoll,
		Query:  url.Values{"code": {code}},
	}, c.timeouts.Poll)
	if err != nil {
		return nil, fmt.Errorf("polling device auth: %w", err)
	}

	var result PollResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AuthorizeDevice authorizes a device code with user credentials
func (c *Client) AuthorizeDevice(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathDeviceAuthorize,
		Body:   req,
	}, c.timeouts.Authorize)
	if err != nil {
		return nil, fmt.Errorf("authorizing device: %w", err)
	}

	var result AuthorizeResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account and returns its session
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*session.Session, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathRegister,
		Body:   req,
	}, c.timeouts.Register)
	if err != nil {
		return nil, fmt.Errorf("registering: %w", err)
	}

	var pair tokenPair
	if err := resp.DecodeJSON(&pair); err != nil {
		return nil, err
	}
	sess := session.New(pair.Token, pair.User)
	if sess == nil {
		return nil, fmt.Errorf("registering: %w: token and user_info required", ErrMalformedResponse)
	}
	return sess, nil
}

// StartGoogleAuth mints a device code bound to a provider authorization page
func (c *Client) StartGoogleAuth(ctx context.Context) (*ProviderAuthorization, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: PathGoogleStart}, c.timeouts.ProviderStart)
	if err != nil {
		return nil, fmt.Errorf("starting provider auth: %w", err)
	}

	var auth ProviderAuthorization
	if err := resp.DecodeJSON(&auth); err != nil {
		return nil, err
	}
	if auth.Code == "" || auth.AuthURL == "" {
		return nil, fmt.Errorf("starting provider auth: %w: code and auth_url required", ErrMalformedResponse)
	}
	return &auth, nil
}

// RefreshToken exchanges token for a new one. A 200 response without a new
// token yields an empty string and no error.
func (c *Client) RefreshToken(ctx context.Context, token string) (string, error) {
	resp, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   PathRefreshToken,
		Token:  token,
	}, c.timeouts.Refresh)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}

	var result refreshResponse
	if err := resp.DecodeJSON(&result); err != nil {
		return "", err
	}
	return result.NewToken, nil
}
