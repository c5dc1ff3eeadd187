package device_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrale/authsession/cmd/authsession/handlers/device"
	"github.com/wrale/authsession/internal/auth"
	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/backendtest"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/session"
)

func newHandler(t *testing.T) (*device.Handler, *backendtest.Backend, *auth.Manager) {
	t.Helper()
	srv := backendtest.New(t)
	srv.AddUser("alice", "secret", session.UserInfo{ID: "u1"})
	m := auth.NewManager(session.NewKeeper(session.NewMemoryStore()), srv.Client(t),
		auth.WithMinPollInterval(time.Millisecond),
		auth.WithSchedules(auth.Schedules{
			Device: deviceflow.Schedule{Interval: 2 * time.Millisecond, Immediate: true},
		}),
	)
	return device.New(m), srv, m
}

func decode(t *testing.T, w *httptest.ResponseRecorder) device.Response {
	t.Helper()
	var resp device.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestDeviceHandlers(t *testing.T) {
	h, srv, m := newHandler(t)
	srv.SetNextCodes("ABC123")

	w := httptest.NewRecorder()
	h.Progress(w, httptest.NewRequest(http.MethodGet, "/auth/device", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/auth/device", nil))
	require.Equal(t, http.StatusOK, w.Code)
	started := decode(t, w)
	require.Equal(t, "ABC123", started.Code)
	require.False(t, started.ExpiresAt.IsZero())
	require.False(t, started.Done)

	require.NoError(t, srv.Approve("ABC123", "alice"))
	d, err := m.CurrentDevice()
	require.NoError(t, err)
	<-d.Done()

	w = httptest.NewRecorder()
	h.Progress(w, httptest.NewRequest(http.MethodGet, "/auth/device", nil))
	require.Equal(t, http.StatusOK, w.Code)
	done := decode(t, w)
	require.True(t, done.Done)
	require.Equal(t, deviceflow.StateAuthorized.String(), done.State)
	require.Empty(t, done.Error)
}

func TestDeviceCancel(t *testing.T) {
	h, _, _ := newHandler(t)

	w := httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/auth/device", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Cancel(w, httptest.NewRequest(http.MethodDelete, "/auth/device", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.True(t, resp.Done)
	require.Equal(t, deviceflow.StateError.String(), resp.State)
	require.Equal(t, autherr.CodeCanceled, resp.Error)
}

func TestDeviceStartBackendDown(t *testing.T) {
	h, srv, _ := newHandler(t)
	srv.Server.Close()

	w := httptest.NewRecorder()
	h.Start(w, httptest.NewRequest(http.MethodPost, "/auth/device", nil))
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, autherr.CodeNetwork, resp["error"])
}
