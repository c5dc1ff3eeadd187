// Package backendtest provides a programmable in-process design-tool backend for tests
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wrale/authsession/internal/backend"
	"github.com/wrale/authsession/internal/session"
)

// Wire-visible messages used by the backend
const (
	DetailBadCredentials = "用户名或密码错误"
	DetailUnknownCode    = "设备码无效或已过期"
	DetailUserExists     = "用户名已存在"
	DetailTokenInvalid   = "令牌无效或已过期"
	MessageUnknownCode   = "设备码不存在或已过期"
	MessageExpired       = "设备码已过期，请重新生成"
)

const zonelessLayout = "2006-01-02T15:04:05.000000"

var signingKey = []byte("backendtest-signing-key")

type account struct {
	password string
	info     session.UserInfo
}

type deviceState struct {
	status  backend.PollStatus
	token   string
	user    *session.UserInfo
	message string
	// pendingPolls is the number of pending replies to send before reporting authorized
	pendingPolls int
}

// Backend is a fake backend served over httptest
type Backend struct {
	Server *httptest.Server

	mu           sync.Mutex
	codes        map[string]*deviceState
	accounts     map[string]*account
	tokens       map[string]string // token -> username
	nextCodes    []string
	codeSeq      int
	tokenSeq     int
	calls        map[string]int
	overrides    map[string]http.HandlerFunc
	directTokens bool
	pendingPolls int
}

// New starts a fake backend that stops when the test ends
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		codes:        make(map[string]*deviceState),
		accounts:     make(map[string]*account),
		tokens:       make(map[string]string),
		calls:        make(map[string]int),
		overrides:    make(map[string]http.HandlerFunc),
		directTokens: true,
	}

	r := chi.NewRouter()
	r.Post(backend.PathDeviceAuth, b.route(backend.PathDeviceAuth, b.handleDeviceAuth))
	r.Get(backend.PathDevicePoll, b.route(backend.PathDevicePoll, b.handlePoll))
	r.Post(backend.PathDeviceAuthorize, b.route(backend.PathDeviceAuthorize, b.handleAuthorize))
	r.Post(backend.PathRegister, b.route(backend.PathRegister, b.handleRegister))
	r.Get(backend.PathGoogleStart, b.route(backend.PathGoogleStart, b.handleGoogleStart))
	r.Get(backend.PathRefreshToken, b.route(backend.PathRefreshToken, b.handleRefresh))

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend base URL
func (b *Backend) URL() string {
	return b.Server.URL
}

// Client returns a backend client for this server
func (b *Backend) Client(t testing.TB, opts ...backend.Option) *backend.Client {
	t.Helper()
	c, err := backend.NewClient(b.URL(), opts...)
	if err != nil {
		t.Fatalf("creating backend client: %v", err)
	}
	return c
}

// route wraps h so tests can count calls and override the endpoint
func (b *Backend) route(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[path]++
		override := b.overrides[path]
		b.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		h(w, r)
	}
}

// Handle replaces the handler for path
func (b *Backend) Handle(path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[path] = h
}

// Calls returns how many requests path has received
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// SetNextCodes queues the device codes the backend will mint next
func (b *Backend) SetNextCodes(codes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextCodes = append(b.nextCodes, codes...)
}

// SetDirectTokens controls whether /api/device/authorize returns the session directly
func (b *Backend) SetDirectTokens(direct bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.directTokens = direct
}

// SetPendingPolls sets how many pending replies an approved code sends before authorized
func (b *Backend) SetPendingPolls(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingPolls = n
}

// AddUser registers an account
func (b *Backend) AddUser(username, password string, info session.UserInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if info.Username == "" {
		info.Username = username
	}
	b.accounts[username] = &account{password: password, info: info}
}

// Approve authorizes code on behalf of username, as the out-of-band channel would
func (b *Backend) Approve(code, username string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.approveLocked(code, username)
}

// Expire marks code expired
func (b *Backend) Expire(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.codes[code]; ok {
		st.status = backend.StatusExpired
	}
}

// Fail marks code failed with message
func (b *Backend) Fail(code, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.codes[code]; ok {
		st.status = backend.StatusError
		st.message = message
	}
}

// IssueToken mints a valid token for username
func (b *Backend) IssueToken(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueTokenLocked(username)
}

// RevokeAll invalidates every issued token
func (b *Backend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

// TokenValid reports whether token is currently accepted by refresh
func (b *Backend) TokenValid(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tokens[token]
	return ok
}

func (b *Backend) approveLocked(code, username string) error {
	st, ok := b.codes[code]
	if !ok {
		return fmt.Errorf("unknown code %q", code)
	}
	acct, ok := b.accounts[username]
	if !ok {
		return fmt.Errorf("unknown user %q", username)
	}
	user := acct.info
	st.status = backend.StatusAuthorized
	st.token = b.issueTokenLocked(username)
	st.user = &user
	st.pendingPolls = b.pendingPolls
	return nil
}

func (b *Backend) issueTokenLocked(username string) string {
	b.tokenSeq++
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"jti": fmt.Sprintf("t-%d", b.tokenSeq),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("signing token: %v", err))
	}
	b.tokens[token] = username
	return token
}

func (b *Backend) mintCodeLocked() string {
	if len(b.nextCodes) > 0 {
		code := b.nextCodes[0]
		b.nextCodes = b.nextCodes[1:]
		return code
	}
	b.codeSeq++
	return fmt.Sprintf("code-%d", b.codeSeq)
}

func (b *Backend) handleDeviceAuth(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	code := b.mintCodeLocked()
	b.codes[code] = &deviceState{status: backend.StatusPending}
	b.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "pending",
		"code":       code,
		"expires_at": time.Now().Add(10 * time.Minute).Format(zonelessLayout),
		"message":    "请在新打开的浏览器窗口中完成认证",
	})
}

func (b *Backend) handlePoll(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.codes[code]
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "error", "message": MessageUnknownCode})
		return
	}

	switch st.status {
	case backend.StatusExpired:
		delete(b.codes, code)
		WriteJSON(w, http.StatusOK, map[string]string{"status": "expired", "message": MessageExpired})
	case backend.StatusError:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "error", "message": st.message})
	case backend.StatusAuthorized:
		if st.pendingPolls > 0 {
			st.pendingPolls--
			WriteJSON(w, http.StatusOK, map[string]string{"status": "pending", "message": "等待用户完成认证"})
			return
		}
		delete(b.codes, code)
		WriteJSON(w, http.StatusOK, backend.PollResult{
			Status:  backend.StatusAuthorized,
			Token:   st.token,
			User:    st.user,
			Message: "认证成功",
		})
	default:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "pending", "message": "等待用户完成认证"})
	}
}

func (b *Backend) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req backend.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.codes[req.Code]; !ok {
		WriteDetail(w, http.StatusBadRequest, DetailUnknownCode)
		return
	}
	acct, ok := b.accounts[req.Username]
	if !ok || acct.password != req.Password {
		WriteDetail(w, http.StatusBadRequest, DetailBadCredentials)
		return
	}
	if err := b.approveLocked(req.Code, req.Username); err != nil {
		WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := backend.AuthorizeResult{Status: "success", Message: "设备认证成功", Code: req.Code}
	if b.directTokens {
		st := b.codes[req.Code]
		resp.Token, resp.User = st.token, st.user
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req backend.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[req.Username]; exists {
		WriteDetail(w, http.StatusBadRequest, DetailUserExists)
		return
	}
	info := session.UserInfo{
		ID:       fmt.Sprintf("user-%d", len(b.accounts)+1),
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		Provider: "local",
	}
	b.accounts[req.Username] = &account{password: req.Password, info: info}

	WriteJSON(w, http.StatusOK, map[string]any{
		"token":     b.issueTokenLocked(req.Username),
		"user_info": info,
	})
}

func (b *Backend) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	code := b.mintCodeLocked()
	b.codes[code] = &deviceState{status: backend.StatusPending}
	b.mu.Unlock()

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":     "pending",
		"code":       code,
		"auth_url":   b.URL() + "/oauth/google?state=" + code,
		"expires_at": time.Now().Add(10 * time.Minute).Format(time.RFC3339),
		"message":    "请在新窗口中完成 Google 登录",
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		WriteDetail(w, http.StatusUnauthorized, "缺少授权令牌")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	username, ok := b.tokens[token]
	if !ok {
		WriteDetail(w, http.StatusUnauthorized, DetailTokenInvalid)
		return
	}
	delete(b.tokens, token)
	WriteJSON(w, http.StatusOK, map[string]string{"new_token": b.issueTokenLocked(username)})
}

// WriteJSON writes v with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes a {"detail": ...} error body
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, map[string]string{"detail": detail})
}
