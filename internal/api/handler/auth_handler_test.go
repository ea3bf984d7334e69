package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/api/middleware"
	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
	"github.com/pulsechat/chat-api/internal/security/session"
)

// authServiceStub implements ports.AuthService against a fixed user table.
// Passwords are compared in the clear; hashing is the real service's concern.
type authServiceStub struct {
	users map[string]*domain.User // keyed by username
	pass  map[string]string
}

func newAuthServiceStub() *authServiceStub {
	return &authServiceStub{
		users: make(map[string]*domain.User),
		pass:  make(map[string]string),
	}
}

func (s *authServiceStub) add(id, username, password string, role domain.Role) *domain.User {
	u := &domain.User{ID: id, Username: username, Role: role}
	s.users[username] = u
	s.pass[username] = password
	return u
}

func (s *authServiceStub) Login(_ context.Context, username, password string) (*domain.User, error) {
	u, ok := s.users[username]
	if !ok || s.pass[username] != password {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *authServiceStub) Register(_ context.Context, username, password, _ string) (*domain.User, error) {
	if _, exists := s.users[username]; exists {
		return nil, domain.ErrUserExists
	}
	return s.add("u-"+username, username, password, domain.RoleUser), nil
}

func (s *authServiceStub) UpdateRole(_ context.Context, userID string, newRole domain.Role) (*domain.User, error) {
	for _, u := range s.users {
		if u.ID == userID {
			u.Role = newRole
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *authServiceStub) InitAdmin(context.Context) (*domain.User, error) { return nil, nil }

func (s *authServiceStub) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// auditStub collects emitted events synchronously.
type auditStub struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (a *auditStub) Emit(event domain.SecurityEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *auditStub) has(kind domain.SecurityEventKind) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// memTokenRepo is an in-memory rememberme.TokenRepository.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RememberMeToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*domain.RememberMeToken)}
}

func (m *memTokenRepo) Save(_ context.Context, token *domain.RememberMeToken, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	m.tokens[token.Series] = &cp
	return nil
}

func (m *memTokenRepo) Get(_ context.Context, series string) (*domain.RememberMeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[series]
	if !ok {
		return nil, rememberme.ErrSeriesNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) Rotate(_ context.Context, series, oldToken, newToken string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[series]
	if !ok {
		return rememberme.ErrSeriesNotFound
	}
	if t.Token != oldToken {
		return rememberme.ErrTokenMismatch
	}
	t.Token = newToken
	t.LastUsed = time.Now().UTC()
	return nil
}

func (m *memTokenRepo) Delete(_ context.Context, series string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, series)
	return nil
}

type handlerHarness struct {
	e        *echo.Echo
	handler  *AuthHandler
	svc      *authServiceStub
	registry *session.Registry
	tokens   *memTokenRepo
	audit    *auditStub
}

func newHarness(maxSessions int, policy session.Policy) *handlerHarness {
	e := echo.New()
	e.Validator = NewValidator()

	svc := newAuthServiceStub()
	registry := session.NewRegistry(maxSessions, policy, zerolog.Nop())
	tokens := newMemTokenRepo()
	audit := &auditStub{}
	remember := rememberme.NewService(tokens, time.Hour, zerolog.Nop())
	cookies := CookieSettings{Session: "SESSION", RememberMe: "remember-me"}

	return &handlerHarness{
		e:        e,
		handler:  NewAuthHandler(svc, registry, remember, audit, cookies),
		svc:      svc,
		registry: registry,
		tokens:   tokens,
		audit:    audit,
	}
}

func (h *handlerHarness) postJSON(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return h.e.NewContext(req, rec), rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	c, rec := h.postJSON("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	if err := h.handler.Login(c); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var principal domain.Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &principal); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if principal.Username != "alice" || !principal.Online {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	cookie := responseCookie(rec, "SESSION")
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("session cookie not set")
	}
	if got, ok := h.registry.Get(cookie.Value); !ok || got.PrincipalID != "u1" {
		t.Fatalf("session not registered: %+v", got)
	}
	if !h.audit.has(domain.EventLoginSuccess) {
		t.Fatalf("expected login_success audit event")
	}
}

func TestAuthHandler_LoginWrongPassword(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	c, rec := h.postJSON("/api/auth/login", `{"username":"alice","password":"wrong"}`)
	err := h.handler.Login(c)
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if cookie := responseCookie(rec, "SESSION"); cookie != nil {
		t.Fatalf("no session cookie on failed login")
	}
	if !h.audit.has(domain.EventLoginFailure) {
		t.Fatalf("expected login_failure audit event")
	}
}

func TestAuthHandler_LoginMalformedBody(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)

	c, _ := h.postJSON("/api/auth/login", `{"username": 42}`)
	if err := h.handler.Login(c); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("want ErrMalformedRequest for bad JSON, got %v", err)
	}

	c, _ = h.postJSON("/api/auth/login", `{"username":"alice"}`)
	if err := h.handler.Login(c); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("want ErrMalformedRequest for missing password, got %v", err)
	}
}

func TestAuthHandler_LoginEvictsOldest(t *testing.T) {
	h := newHarness(1, session.PolicyEvictOldest)
	h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	c, rec := h.postJSON("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	if err := h.handler.Login(c); err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	first := responseCookie(rec, "SESSION").Value

	c, rec = h.postJSON("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	if err := h.handler.Login(c); err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	second := responseCookie(rec, "SESSION").Value

	old, _ := h.registry.Get(first)
	if old.State != domain.SessionExpired || old.ExpiryReason != domain.ExpiredByEviction {
		t.Fatalf("first session should be evicted: %+v", old)
	}
	if got, _ := h.registry.Get(second); got.State != domain.SessionActive {
		t.Fatalf("second session should be active: %+v", got)
	}
	if !h.audit.has(domain.EventSessionEvicted) {
		t.Fatalf("expected session_evicted audit event")
	}
}

func TestAuthHandler_LoginRejectedAtLimit(t *testing.T) {
	h := newHarness(1, session.PolicyRejectNew)
	h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	c, _ := h.postJSON("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	if err := h.handler.Login(c); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	c, _ = h.postJSON("/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	if err := h.handler.Login(c); !errors.Is(err, domain.ErrTooManySessions) {
		t.Fatalf("want ErrTooManySessions, got %v", err)
	}
	if n := h.registry.ActiveCount("u1"); n != 1 {
		t.Fatalf("expected 1 active session, got %d", n)
	}
}

func TestAuthHandler_LoginIssuesRememberMe(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	c, rec := h.postJSON("/api/auth/login", `{"username":"alice","password":"correct horse","rememberMe":true}`)
	if err := h.handler.Login(c); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	cookie := responseCookie(rec, "remember-me")
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("remember-me cookie not set")
	}
	series, token, err := rememberme.DecodeCookie(cookie.Value)
	if err != nil {
		t.Fatalf("remember-me cookie not decodable: %v", err)
	}
	stored, err := h.tokens.Get(context.Background(), series)
	if err != nil || stored.Token != token || stored.Username != "alice" {
		t.Fatalf("stored token does not match cookie: %+v %v", stored, err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	user := h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	// Two devices logged in; logout must only kill the calling one.
	current := session.NewSession(user)
	other := session.NewSession(user)
	for _, s := range []*domain.Session{current, other} {
		if _, err := h.registry.Register(s); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	c, rec := h.postJSON("/api/auth/logout", "")
	c.Set(middleware.SessionContextKey, *current)

	if err := h.handler.Logout(c); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if _, ok := h.registry.Get(current.ID); ok {
		t.Fatalf("current session should be removed")
	}
	if got, ok := h.registry.Get(other.ID); !ok || got.State != domain.SessionActive {
		t.Fatalf("other device's session must survive logout: %+v", got)
	}

	cookie := responseCookie(rec, "SESSION")
	if cookie == nil || cookie.MaxAge != -1 {
		t.Fatalf("session cookie should be cleared")
	}
	if !h.audit.has(domain.EventLogout) {
		t.Fatalf("expected logout audit event")
	}
}

func TestAuthHandler_LogoutForgetsRememberMeSeries(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	user := h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	sess := session.NewSession(user)
	if _, err := h.registry.Register(sess); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	token := &domain.RememberMeToken{Series: "series-1", Token: "tok", Username: "alice"}
	if err := h.tokens.Save(context.Background(), token, time.Hour); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	c, rec := h.postJSON("/api/auth/logout", "")
	c.Request().AddCookie(&http.Cookie{
		Name:  "remember-me",
		Value: rememberme.EncodeCookie("series-1", "tok"),
	})
	c.Set(middleware.SessionContextKey, *sess)

	if err := h.handler.Logout(c); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := h.tokens.Get(context.Background(), "series-1"); !errors.Is(err, rememberme.ErrSeriesNotFound) {
		t.Fatalf("series should be forgotten on logout, got %v", err)
	}
	if cookie := responseCookie(rec, "remember-me"); cookie == nil || cookie.MaxAge != -1 {
		t.Fatalf("remember-me cookie should be cleared")
	}
}

func TestAuthHandler_LogoutWithoutSession(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	c, _ := h.postJSON("/api/auth/logout", "")
	if err := h.handler.Logout(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	user := h.svc.add("u1", "alice", "correct horse", domain.RoleUser)
	sess := session.NewSession(user)
	if _, err := h.registry.Register(sess); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	c := h.e.NewContext(req, rec)
	c.Set(middleware.PrincipalContextKey, domain.PrincipalOf(user, false))

	if err := h.handler.Me(c); err != nil {
		t.Fatalf("me failed: %v", err)
	}
	var principal domain.Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &principal); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if principal.ID != "u1" || !principal.Online {
		t.Fatalf("online flag should reflect the registry: %+v", principal)
	}
}

func TestAuthHandler_UpdateRole(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	h.svc.add("u1", "alice", "correct horse", domain.RoleUser)

	c, rec := h.postJSON("/api/auth/role", `{"userId":"u1","newRole":"CHANNEL_MANAGER"}`)
	if err := h.handler.UpdateRole(c); err != nil {
		t.Fatalf("update role failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var principal domain.Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &principal); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if principal.Role != domain.RoleChannelManager {
		t.Fatalf("unexpected role: %+v", principal)
	}
}

func TestAuthHandler_UpdateRoleRejectsUnknownRole(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	c, _ := h.postJSON("/api/auth/role", `{"userId":"u1","newRole":"SUPERUSER"}`)
	if err := h.handler.UpdateRole(c); !errors.Is(err, domain.ErrMalformedRequest) {
		t.Fatalf("want ErrMalformedRequest, got %v", err)
	}
}

func TestUserHandler_Register(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	uh := NewUserHandler(h.svc)

	c, rec := h.postJSON("/api/users", `{"username":"alice","password":"longenough"}`)
	if err := uh.Register(c); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var principal domain.Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &principal); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if principal.Role != domain.RoleUser || principal.Online {
		t.Fatalf("sign-up must create an offline USER: %+v", principal)
	}
}

func TestUserHandler_RegisterValidation(t *testing.T) {
	h := newHarness(0, session.PolicyEvictOldest)
	uh := NewUserHandler(h.svc)

	cases := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","password":"longenough"}`},
		{"short password", `{"username":"alice","password":"short"}`},
		{"bad email", `{"username":"alice","password":"longenough","email":"not-an-email"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := h.postJSON("/api/users", tc.body)
			if err := uh.Register(c); !errors.Is(err, domain.ErrMalformedRequest) {
				t.Fatalf("want ErrMalformedRequest, got %v", err)
			}
		})
	}
}
