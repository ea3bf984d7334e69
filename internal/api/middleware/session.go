package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
	"github.com/pulsechat/chat-api/internal/pkg/metrics"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
	"github.com/pulsechat/chat-api/internal/security/session"
)

// Context keys set by the session middleware for downstream handlers.
const (
	PrincipalContextKey = "principal"
	SessionContextKey   = "session"
)

// SessionConfig wires the session middleware. Everything is passed
// explicitly; the middleware owns no state of its own.
type SessionConfig struct {
	Registry   *session.Registry
	RememberMe *rememberme.Service
	Auth       ports.AuthService
	Audit      ports.AuditSink

	SessionCookie    string
	RememberMeCookie string
	SecureCookies    bool

	Log zerolog.Logger
}

// Session authenticates every non-exempt request: it resolves the session
// cookie against the registry, produces the structured expired-session
// response for sessions that were force-expired, and falls back to
// remember-me auto-login when no valid session is present.
func Session(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}

			if cookie, err := c.Cookie(cfg.SessionCookie); err == nil && cookie.Value != "" {
				sess, ok := cfg.Registry.Get(cookie.Value)
				switch {
				case ok && !sess.Expired():
					cfg.Registry.Touch(sess.ID)
					stashSession(c, sess)
					return next(c)

				case ok:
					// The session was force-expired (eviction, role change,
					// or logout elsewhere). Tell the client exactly that,
					// then forget the entry — the notification is one-shot.
					cfg.Registry.Remove(sess.ID)
					ClearSessionCookie(c, cfg.SessionCookie, cfg.SecureCookies)
					metrics.ExpiredSessionResponsesTotal.Inc()
					metrics.ActiveSessions.Set(float64(cfg.Registry.TotalActive()))
					cfg.Audit.Emit(domain.SecurityEvent{
						Kind:      domain.EventSessionExpired,
						Username:  sess.Username,
						SessionID: sess.ID,
						Details:   map[string]string{"reason": string(sess.ExpiryReason)},
					})
					return domain.SessionExpiredError(sess.ID).
						WithDetail("reason", string(sess.ExpiryReason))
				}
			}

			if handled, err := cfg.tryRememberMe(c); handled {
				if err != nil {
					return err
				}
				return next(c)
			}

			return domain.ErrUnauthenticated
		}
	}
}

// tryRememberMe attempts silent re-authentication from the remember-me
// cookie. It returns handled=false when no usable cookie is present.
func (cfg SessionConfig) tryRememberMe(c echo.Context) (handled bool, err error) {
	cookie, cookieErr := c.Cookie(cfg.RememberMeCookie)
	if cookieErr != nil || cookie.Value == "" {
		return false, nil
	}

	ctx := c.Request().Context()
	series, token, decodeErr := rememberme.DecodeCookie(cookie.Value)
	if decodeErr != nil {
		ClearRememberMeCookie(c, cfg.RememberMeCookie, cfg.SecureCookies)
		metrics.RememberMeTotal.WithLabelValues("invalid").Inc()
		return false, nil
	}

	rotated, validateErr := cfg.RememberMe.Validate(ctx, series, token)
	if validateErr != nil {
		ClearRememberMeCookie(c, cfg.RememberMeCookie, cfg.SecureCookies)
		if errors.Is(validateErr, rememberme.ErrReuse) {
			// Possible cookie theft. The series is already dead; respond
			// exactly like a credential failure so detection is not leaked.
			metrics.RememberMeTotal.WithLabelValues("reuse_detected").Inc()
			cfg.Audit.Emit(domain.SecurityEvent{
				Kind:    domain.EventRememberMeReuse,
				Details: map[string]string{"series": series},
			})
			return true, domain.ErrInvalidCredentials
		}
		metrics.RememberMeTotal.WithLabelValues("invalid").Inc()
		return false, nil
	}

	user, userErr := cfg.Auth.UserByUsername(ctx, rotated.Username)
	if userErr != nil {
		// Account deleted since the token was issued. Kill the series.
		_ = cfg.RememberMe.Forget(ctx, series)
		ClearRememberMeCookie(c, cfg.RememberMeCookie, cfg.SecureCookies)
		return true, domain.ErrUnauthenticated
	}

	sess := session.NewSession(user)
	evicted, regErr := cfg.Registry.Register(sess)
	if regErr != nil {
		return true, regErr
	}
	ReportEvictions(cfg.Audit, evicted)
	metrics.RememberMeTotal.WithLabelValues("rotated").Inc()
	metrics.ActiveSessions.Set(float64(cfg.Registry.TotalActive()))

	SetSessionCookie(c, cfg.SessionCookie, sess.ID, cfg.SecureCookies)
	SetRememberMeCookie(c, cfg.RememberMeCookie, rotated, cfg.RememberMe.Validity(), cfg.SecureCookies)

	cfg.Log.Info().
		Str("username", user.Username).
		Str("session_id", sess.ID).
		Msg("session re-established via remember-me")
	cfg.Audit.Emit(domain.SecurityEvent{
		Kind:      domain.EventLoginSuccess,
		Username:  user.Username,
		SessionID: sess.ID,
		Details:   map[string]string{"method": "remember_me"},
	})

	stashSession(c, *sess)
	return true, nil
}

// ReportEvictions emits audit events and metrics for sessions expired by the
// concurrency policy. Shared with the login handler.
func ReportEvictions(audit ports.AuditSink, evicted []domain.Session) {
	for _, old := range evicted {
		metrics.SessionsExpiredTotal.WithLabelValues(string(domain.ExpiredByEviction)).Inc()
		audit.Emit(domain.SecurityEvent{
			Kind:      domain.EventSessionEvicted,
			Username:  old.Username,
			SessionID: old.ID,
			Timestamp: time.Now().UTC(),
		})
	}
}

func stashSession(c echo.Context, sess domain.Session) {
	c.Set(SessionContextKey, sess)
	c.Set(PrincipalContextKey, domain.Principal{
		ID:       sess.PrincipalID,
		Username: sess.Username,
		Role:     sess.Role,
		Online:   true,
	})
}
