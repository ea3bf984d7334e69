package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/pulsechat/chat-api/internal/api/middleware"
	"github.com/pulsechat/chat-api/internal/core/domain"
)

// CurrentPrincipal extracts the authenticated principal stashed by the
// session middleware. This is the surface the chat CRUD handlers use to
// answer "who is making this request".
func CurrentPrincipal(c echo.Context) (domain.Principal, error) {
	principal, ok := c.Get(middleware.PrincipalContextKey).(domain.Principal)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return principal, nil
}

// CurrentSession extracts the session record bound to this request.
func CurrentSession(c echo.Context) (domain.Session, error) {
	sess, ok := c.Get(middleware.SessionContextKey).(domain.Session)
	if !ok {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}
