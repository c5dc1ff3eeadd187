package auth_test

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wrale/authsession/internal/auth"
	"github.com/wrale/authsession/internal/backendtest"
	"github.com/wrale/authsession/internal/dependent"
	"github.com/wrale/authsession/internal/popup"
	"github.com/wrale/authsession/internal/refresh"
)

// gatedCredential parks the first armed Update or Clear until released
type gatedCredential struct {
	*dependent.Memory

	gateUpdate atomic.Bool
	gateClear  atomic.Bool
	entered    chan struct{}
	release    chan struct{}
	once       sync.Once
}

func newGatedCredential() *gatedCredential {
	return &gatedCredential{
		Memory:  dependent.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedCredential) park() {
	g.once.Do(func() { close(g.entered) })
	<-g.release
}

func (g *gatedCredential) Update(ctx context.Context, token string) error {
	if g.gateUpdate.CompareAndSwap(true, false) {
		g.park()
	}
	return g.Memory.Update(ctx, token)
}

func (g *gatedCredential) Clear(ctx context.Context) error {
	if g.gateClear.CompareAndSwap(true, false) {
		g.park()
	}
	return g.Memory.Clear(ctx)
}

// runAsync runs fn in a goroutine and returns a channel closed when it returns
func runAsync(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func requireBlocked(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
		t.Fatalf("%s finished while a refresh was committing", what)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogoutWaitsForRefreshCommit(t *testing.T) {
	cred := newGatedCredential()
	f := newFixture(t, auth.WithDependent(cred))
	ctx := context.Background()

	_, err := f.manager.Login(ctx, "alice", "secret", "")
	require.NoError(t, err)

	cred.gateUpdate.Store(true)
	var st refresh.AuthStatus
	statusDone := runAsync(func() { st, _ = f.manager.Status(ctx) })
	<-cred.entered

	var logoutErr error
	logoutDone := runAsync(func() { logoutErr = f.manager.Logout(ctx) })
	requireBlocked(t, logoutDone, "logout")

	close(cred.release)
	waitDone(t, statusDone)
	waitDone(t, logoutDone)
	require.NoError(t, logoutErr)
	require.Equal(t, refresh.StatusLoggedIn, st.Status)

	stored, err := f.manager.Session(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)
	require.Empty(t, cred.Token(), "credential cleared together with the session")
}

func TestLoginWaitsForExpiryCommit(t *testing.T) {
	cred := newGatedCredential()
	f := newFixture(t, auth.WithDependent(cred))
	ctx := context.Background()

	_, err := f.manager.Login(ctx, "alice", "secret", "")
	require.NoError(t, err)
	f.srv.RevokeAll()

	cred.gateClear.Store(true)
	var st refresh.AuthStatus
	statusDone := runAsync(func() { st, _ = f.manager.Status(ctx) })
	<-cred.entered

	var loginErr error
	loginDone := runAsync(func() { _, loginErr = f.manager.Login(ctx, "alice", "secret", "") })
	requireBlocked(t, loginDone, "login")

	close(cred.release)
	waitDone(t, statusDone)
	waitDone(t, loginDone)
	require.NoError(t, loginErr)
	require.True(t, st.TokenExpired)

	stored, err := f.manager.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, stored.Token, cred.Token(), "credential follows the newer login")
}

// readyWindow has a success message queued and already reads as closed
type readyWindow struct {
	messages chan popup.Message
	closes   atomic.Int32
}

func (w *readyWindow) Messages() <-chan popup.Message { return w.messages }
func (w *readyWindow) Closed() bool                   { return true }
func (w *readyWindow) Close() error {
	w.closes.Add(1)
	return nil
}

// approvingOpener approves the provider code and hands out a window whose
// message and closed triggers are both ready
type approvingOpener struct {
	srv *backendtest.Backend
	win *readyWindow
}

func (o *approvingOpener) Open(ctx context.Context, rawURL string) (popup.Window, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if err := o.srv.Approve(u.Query().Get("state"), "alice"); err != nil {
		return nil, err
	}
	o.win = &readyWindow{messages: make(chan popup.Message, 1)}
	o.win.messages <- popup.Message{Type: popup.SuccessMessage}
	return o.win, nil
}

func TestProviderTriggersWriteSessionOnce(t *testing.T) {
	opener := &approvingOpener{}
	f := newFixture(t, auth.WithOpener(opener), auth.WithPopupTiming(time.Millisecond, 2*time.Millisecond))
	opener.srv = f.srv

	sess, err := f.manager.LoginWithProvider(context.Background())
	if err != nil {
		require.ErrorIs(t, err, popup.ErrPopupTimeout)
		require.Zero(t, f.store.saves.Load())
		require.Zero(t, f.cred.Updates())
	} else {
		require.Equal(t, "u1", sess.User.ID)
		require.Equal(t, int32(1), f.store.saves.Load())
		require.Equal(t, 1, f.cred.Updates())
	}
	require.Equal(t, int32(1), opener.win.closes.Load())
}
