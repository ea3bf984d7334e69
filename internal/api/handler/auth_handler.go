package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulsechat/chat-api/internal/api/middleware"
	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
	"github.com/pulsechat/chat-api/internal/pkg/metrics"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
	"github.com/pulsechat/chat-api/internal/security/session"
)

// CookieSettings carries the cookie names and flags shared by the auth
// handlers and the session middleware.
type CookieSettings struct {
	Session    string
	RememberMe string
	Secure     bool
}

type AuthHandler struct {
	authService ports.AuthService
	registry    *session.Registry
	rememberMe  *rememberme.Service
	audit       ports.AuditSink
	cookies     CookieSettings
}

func NewAuthHandler(
	authService ports.AuthService,
	registry *session.Registry,
	rememberMe *rememberme.Service,
	audit ports.AuditSink,
	cookies CookieSettings,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		registry:    registry,
		rememberMe:  rememberMe,
		audit:       audit,
		cookies:     cookies,
	}
}

type loginRequest struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type roleUpdateRequest struct {
	UserID  string `json:"userId"  validate:"required"`
	NewRole string `json:"newRole" validate:"required,oneof=ADMIN CHANNEL_MANAGER USER"`
}

type csrfTokenResponse struct {
	Token string `json:"token"`
}

// Login authenticates a user and establishes a session.
//
// @Summary      Login with username and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  domain.Principal
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		metrics.LoginsTotal.WithLabelValues("malformed").Inc()
		return domain.ErrMalformedRequest
	}
	if err := c.Validate(&req); err != nil {
		metrics.LoginsTotal.WithLabelValues("malformed").Inc()
		return domain.NewError(domain.ErrCodeMalformedRequest, err.Error())
	}

	ctx := c.Request().Context()
	user, err := h.authService.Login(ctx, req.Username, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		h.audit.Emit(domain.SecurityEvent{
			Kind:    domain.EventLoginFailure,
			Details: map[string]string{"remote": c.RealIP()},
		})
		return err
	}

	sess := session.NewSession(user)
	evicted, err := h.registry.Register(sess)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("rejected_limit").Inc()
		return err
	}
	middleware.ReportEvictions(h.audit, evicted)
	middleware.SetSessionCookie(c, h.cookies.Session, sess.ID, h.cookies.Secure)

	if req.RememberMe {
		token, issueErr := h.rememberMe.Issue(ctx, user.Username)
		if issueErr != nil {
			// The login itself succeeded; a missing remember-me cookie only
			// costs the user a future password prompt.
			c.Logger().Error(issueErr)
		} else {
			middleware.SetRememberMeCookie(c, h.cookies.RememberMe, token, h.rememberMe.Validity(), h.cookies.Secure)
			metrics.RememberMeTotal.WithLabelValues("issued").Inc()
		}
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	metrics.ActiveSessions.Set(float64(h.registry.TotalActive()))
	h.audit.Emit(domain.SecurityEvent{
		Kind:      domain.EventLoginSuccess,
		Username:  user.Username,
		SessionID: sess.ID,
		Details:   map[string]string{"method": "password"},
	})

	return c.JSON(http.StatusOK, domain.PrincipalOf(user, true))
}

// CsrfToken returns the CSRF token bound to the caller, to be echoed in the
// X-CSRF-Token header on mutating requests.
//
// @Summary      Fetch a CSRF token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  csrfTokenResponse
// @Router       /api/auth/csrf-token [get]
func (h *AuthHandler) CsrfToken(c echo.Context) error {
	token, _ := c.Get("csrf").(string)
	return c.JSON(http.StatusOK, csrfTokenResponse{Token: token})
}

// Me returns the authenticated principal's own view.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  map[string]any
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	principal, err := CurrentPrincipal(c)
	if err != nil {
		return err
	}
	principal.Online = h.registry.HasActive(principal.ID)
	return c.JSON(http.StatusOK, principal)
}

// Logout invalidates the current session only; other devices of the same
// user stay logged in.
//
// @Summary      Logout
// @Tags         auth
// @Success      204  "no content"
// @Failure      401  {object}  map[string]any
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sess, err := CurrentSession(c)
	if err != nil {
		return err
	}

	h.registry.Expire(sess.ID, domain.ExpiredByLogout)
	h.registry.Remove(sess.ID)
	middleware.ClearSessionCookie(c, h.cookies.Session, h.cookies.Secure)

	if cookie, cookieErr := c.Cookie(h.cookies.RememberMe); cookieErr == nil && cookie.Value != "" {
		if series, _, decodeErr := rememberme.DecodeCookie(cookie.Value); decodeErr == nil {
			_ = h.rememberMe.Forget(c.Request().Context(), series)
		}
		middleware.ClearRememberMeCookie(c, h.cookies.RememberMe, h.cookies.Secure)
	}

	metrics.SessionsExpiredTotal.WithLabelValues(string(domain.ExpiredByLogout)).Inc()
	metrics.ActiveSessions.Set(float64(h.registry.TotalActive()))
	h.audit.Emit(domain.SecurityEvent{
		Kind:      domain.EventLogout,
		Username:  sess.Username,
		SessionID: sess.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

// UpdateRole changes another user's role and force-expires all of their live
// sessions, so stale sessions cannot keep old privileges.
//
// @Summary      Update a user's role
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      roleUpdateRequest  true  "Target user and new role"
// @Success      200   {object}  domain.Principal
// @Failure      400   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Router       /api/auth/role [put]
func (h *AuthHandler) UpdateRole(c echo.Context) error {
	var req roleUpdateRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrMalformedRequest
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewError(domain.ErrCodeMalformedRequest, err.Error())
	}

	updated, err := h.authService.UpdateRole(c.Request().Context(), req.UserID, domain.Role(req.NewRole))
	if err != nil {
		return err
	}

	metrics.ActiveSessions.Set(float64(h.registry.TotalActive()))
	return c.JSON(http.StatusOK, domain.PrincipalOf(updated, h.registry.HasActive(updated.ID)))
}
