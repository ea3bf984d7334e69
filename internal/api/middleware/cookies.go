package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
)

// SetSessionCookie attaches the short-lived session id cookie. No Max-Age:
// the cookie lives for the browser session, the server-side registry is the
// source of truth for validity.
func SetSessionCookie(c echo.Context, name, sessionID string, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(c echo.Context, name string, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetRememberMeCookie attaches the long-lived remember-me cookie encoding the
// (series, token) pair.
func SetRememberMeCookie(c echo.Context, name string, token *domain.RememberMeToken, validity time.Duration, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    rememberme.EncodeCookie(token.Series, token.Token),
		Path:     "/",
		MaxAge:   int(validity.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRememberMeCookie expires the remember-me cookie on the client.
func ClearRememberMeCookie(c echo.Context, name string, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
