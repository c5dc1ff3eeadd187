package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wrale/authsession/internal/autherr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c, srv
}

func TestNewClientValidatesURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http", "http://localhost:8000", false},
		{"valid https with slash", "https://api.example.com/", false},
		{"empty", "", true},
		{"wrong scheme", "ftp://example.com", true},
		{"missing host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestDoTimeoutCancelsTransport(t *testing.T) {
	canceled := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(canceled)
		case <-release:
		}
	})

	start := time.Now()
	_, err := c.Do(context.Background(), Request{Path: "/slow"}, 50*time.Millisecond)
	if !errors.Is(err, autherr.ErrTimeout) {
		t.Fatalf("Do() error = %v, want %v", err, autherr.ErrTimeout)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Do() returned after %v, want prompt timeout", elapsed)
	}

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the request being canceled")
	}
}

func TestDoParentCancellationIsNotTimeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Do(ctx, Request{Path: "/slow"}, 5*time.Second)
	if errors.Is(err, autherr.ErrTimeout) {
		t.Fatalf("Do() error = %v, parent cancellation must not read as timeout", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDoHTTPError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"用户名或密码错误"}`))
	})

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Body: map[string]string{"a": "b"}}, time.Second)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Do() error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, http.StatusBadRequest)
	}
	if httpErr.Detail != "用户名或密码错误" {
		t.Errorf("Detail = %q", httpErr.Detail)
	}
	if got := autherr.Detail(err); got != "用户名或密码错误" {
		t.Errorf("autherr.Detail() = %q", got)
	}
}

func TestDoNetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.Do(context.Background(), Request{Path: "/x"}, time.Second)
	if !errors.Is(err, autherr.ErrNetwork) {
		t.Errorf("Do() error = %v, want %v", err, autherr.ErrNetwork)
	}
}

func TestDoSetsHeaders(t *testing.T) {
	var gotAuth, gotType, gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotQuery = r.URL.Query().Get("code")
		w.Write([]byte(`{}`))
	})

	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/x",
		Query:  map[string][]string{"code": {"ABC123"}},
		Body:   struct{}{},
		Token:  "tok",
	}, time.Second)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok")
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotQuery != "ABC123" {
		t.Errorf("code query = %q", gotQuery)
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":" bad "}`, "bad"},
		{`{"detail":[{"msg":"field required"}]}`, ""},
		{`not json`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		if got := parseDetail([]byte(tt.body)); got != tt.want {
			t.Errorf("parseDetail(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", `"2024-05-01T10:00:00Z"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), false},
		{"zoneless micro", `"2024-05-01T10:00:00.123456"`, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.Local), false},
		{"zoneless", `"2024-05-01T10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), false},
		{"null", `null`, time.Time{}, false},
		{"garbage", `"yesterday"`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := ts.UnmarshalJSON([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("UnmarshalJSON() = %v, want %v", ts.Time, tt.want)
			}
		})
	}
}
