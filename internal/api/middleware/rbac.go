package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/pkg/metrics"
	"github.com/pulsechat/chat-api/internal/security/rbac"
)

// RequireRole is the authorization gate: it allows the request iff the
// required role is implied by the authenticated principal's base role.
func RequireRole(h *rbac.Hierarchy, required domain.Role) echo.MiddlewareFunc {
	return RequireRoleWithSkipper(h, required, nil)
}

// RequireRoleWithSkipper is RequireRole with path exemptions, used for the
// app-wide baseline gate (every /api request needs at least USER).
func RequireRoleWithSkipper(h *rbac.Hierarchy, required domain.Role, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			principal, ok := c.Get(PrincipalContextKey).(domain.Principal)
			if !ok {
				// The session middleware did not run; treat as unauthenticated
				// rather than guessing.
				return domain.ErrUnauthenticated
			}

			if !h.Allows(principal.Role, required) {
				metrics.AuthzDecisionsTotal.WithLabelValues("deny").Inc()
				return domain.NewError(domain.ErrCodeForbidden, "access forbidden").
					WithDetail("requiredRole", string(required))
			}
			metrics.AuthzDecisionsTotal.WithLabelValues("allow").Inc()
			return next(c)
		}
	}
}
