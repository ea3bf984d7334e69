package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Paths with special treatment in the auth chain. Exemptions are exact-match
// on method and path (or the single /api/ prefix check) so nothing is
// accidentally broad.
const (
	LoginPath     = "/api/auth/login"
	LogoutPath    = "/api/auth/logout"
	CSRFTokenPath = "/api/auth/csrf-token"
	SignUpPath    = "/api/users"
)

// AuthSkipper reports whether a request bypasses the session check and the
// authorization gate entirely: anything outside /api, the CSRF token
// endpoint, sign-up, and the login path. The login path is exempt for every
// method so a wrong-method request surfaces as the router's 405 instead of a
// credential failure.
func AuthSkipper(c echo.Context) bool {
	req := c.Request()
	path := req.URL.Path

	if !strings.HasPrefix(path, "/api/") {
		return true
	}
	switch {
	case path == LoginPath:
		return true
	case req.Method == http.MethodGet && path == CSRFTokenPath:
		return true
	case req.Method == http.MethodPost && path == SignUpPath:
		return true
	}
	return false
}

// CSRFSkipper exempts logout from CSRF enforcement: the session cookie being
// invalidated is itself the credential, so requiring a token would only lock
// out clients that already lost their CSRF state.
func CSRFSkipper(c echo.Context) bool {
	req := c.Request()
	return req.Method == http.MethodPost && req.URL.Path == LogoutPath
}
