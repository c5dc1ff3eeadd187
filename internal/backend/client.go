// Package backend implements the timed request client and the design-tool
// backend calls built on it
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/wrale/authsession/internal/autherr"
)

// maxBodySize bounds how much of a response body is read
const maxBodySize = 1 << 20

// Request describes one backend call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any    // encoded as JSON when non-nil
	Token  string // bearer token, optional
}

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Client issues bounded-wait requests against the backend
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
	log      zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeouts overrides the per-endpoint timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		c.timeouts = c.timeouts.merge(t)
	}
}

// WithLogger sets the client logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if err := ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{},
		timeouts: DefaultTimeouts(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do issues req and waits at most timeout for the full response. When the
// bound is exceeded the in-flight call is canceled and ErrTimeout is returned.
// Cancellation of ctx itself is reported as the context error.
func (c *Client) Do(ctx context.Context, req Request, timeout time.Duration) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.newRequest(reqCtx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.classify(ctx, reqCtx, req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.classify(ctx, reqCtx, req, err)
	}

	c.log.Debug().
		Str("method", httpReq.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.StatusCode, body)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		(&oauth2.Token{AccessToken: req.Token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}
	return httpReq, nil
}

// classify maps a transport failure onto the error kinds
func (c *Client) classify(parent, reqCtx context.Context, req Request, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return fmt.Errorf("%s: %w", req.Path, parentErr)
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		c.log.Warn().Str("path", req.Path).Msg("backend request timed out")
		return fmt.Errorf("%s: %w", req.Path, autherr.ErrTimeout)
	}
	c.log.Warn().Err(err).Str("path", req.Path).Msg("backend unreachable")
	return fmt.Errorf("%s: %w: %v", req.Path, autherr.ErrNetwork, err)
}

// ValidateBaseURL checks that the backend URL is absolute http(s)
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("backend URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend URL scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("backend URL must include a host")
	}
	return nil
}
