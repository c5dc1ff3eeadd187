package refresh_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/authsession/internal/backend"
	"github.com/wrale/authsession/internal/backendtest"
	"github.com/wrale/authsession/internal/refresh"
	"github.com/wrale/authsession/internal/session"
)

func TestRefreshOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    refresh.Outcome
		// transient outcomes carry an error that is not compared
		transient bool
	}{
		{
			name: "rotated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				backendtest.WriteJSON(w, http.StatusOK, map[string]string{"new_token": "T2"})
			},
			want: refresh.Refreshed{Token: "T2"},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				backendtest.WriteDetail(w, http.StatusUnauthorized, backendtest.DetailTokenInvalid)
			},
			want: refresh.DefinitelyExpired{},
		},
		{
			name: "success without token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				backendtest.WriteJSON(w, http.StatusOK, map[string]string{})
			},
			want: refresh.DefinitelyExpired{},
		},
		{
			name: "service unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			transient: true,
		},
		{
			name: "forbidden is not definitive",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := backendtest.New(t)
			srv.Handle(backend.PathRefreshToken, tt.handler)
			got := refresh.NewRefresher(srv.Client(t)).Refresh(context.Background(), "T1")

			if tt.transient {
				tf, ok := got.(refresh.TransientFailure)
				if !ok {
					t.Fatalf("Refresh() = %T, want TransientFailure", got)
				}
				if tf.Err == nil {
					t.Error("TransientFailure carries no error")
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Refresh() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRefreshEmptyTokenSkipsBackend(t *testing.T) {
	srv := backendtest.New(t)
	r := refresh.NewRefresher(srv.Client(t))

	if got := r.Refresh(context.Background(), ""); got != (refresh.DefinitelyExpired{}) {
		t.Errorf("Refresh() = %#v, want DefinitelyExpired", got)
	}
	if n := srv.Calls(backend.PathRefreshToken); n != 0 {
		t.Errorf("backend called %d times, want 0", n)
	}
}

func TestRefreshTimeoutIsTransient(t *testing.T) {
	srv := backendtest.New(t)
	srv.Handle(backend.PathRefreshToken, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := srv.Client(t, backend.WithTimeouts(backend.Timeouts{Refresh: 20 * time.Millisecond}))

	o := refresh.NewRefresher(client).Refresh(context.Background(), "T1")
	if _, ok := o.(refresh.TransientFailure); !ok {
		t.Errorf("Refresh() = %T, want TransientFailure", o)
	}
}

func TestRefreshAgainstBackendRotates(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddUser("alice", "secret", session.UserInfo{ID: "u1"})
	old := srv.IssueToken("alice")
	r := refresh.NewRefresher(srv.Client(t))

	o := r.Refresh(context.Background(), old)
	rotated, ok := o.(refresh.Refreshed)
	if !ok {
		t.Fatalf("Refresh() = %T, want Refreshed", o)
	}
	if !srv.TokenValid(rotated.Token) {
		t.Error("rotated token not valid")
	}
	if srv.TokenValid(old) {
		t.Error("old token still valid")
	}

	if got := r.Refresh(context.Background(), old); got != (refresh.DefinitelyExpired{}) {
		t.Errorf("Refresh(old) = %#v, want DefinitelyExpired", got)
	}
}
