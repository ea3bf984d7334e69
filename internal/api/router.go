package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pulsechat/chat-api/internal/api/handler"
	"github.com/pulsechat/chat-api/internal/api/middleware"
	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
	"github.com/pulsechat/chat-api/internal/security/rbac"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
	"github.com/pulsechat/chat-api/internal/security/session"
)

// RouterConfig carries the already-constructed collaborators of the HTTP
// layer. Everything is injected; the router owns no state.
type RouterConfig struct {
	DB          *mongo.Database
	Redis       *redis.Client
	Registry    *session.Registry
	AuthService ports.AuthService
	RememberMe  *rememberme.Service
	Audit       ports.AuditSink
	Hierarchy   *rbac.Hierarchy
	Cookies     handler.CookieSettings
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("pulsechat"))
	e.Use(echomiddleware.CSRFWithConfig(echomiddleware.CSRFConfig{
		Skipper:        middleware.CSRFSkipper,
		TokenLookup:    "header:X-CSRF-Token",
		CookiePath:     "/",
		CookieHTTPOnly: false, // SPA reads it to echo the header
		CookieSecure:   cfg.Cookies.Secure,
	}))
	e.Use(middleware.Session(middleware.SessionConfig{
		Registry:         cfg.Registry,
		RememberMe:       cfg.RememberMe,
		Auth:             cfg.AuthService,
		Audit:            cfg.Audit,
		SessionCookie:    cfg.Cookies.Session,
		RememberMeCookie: cfg.Cookies.RememberMe,
		SecureCookies:    cfg.Cookies.Secure,
		Log:              cfg.Log,
	}))
	// Baseline gate: any authenticated /api request needs at least USER.
	e.Use(middleware.RequireRoleWithSkipper(cfg.Hierarchy, domain.RoleUser, middleware.AuthSkipper))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Registry, cfg.RememberMe, cfg.Audit, cfg.Cookies)
	userHandler := handler.NewUserHandler(cfg.AuthService)

	// --- Auth routes ---
	e.POST("/api/auth/login", authHandler.Login)
	e.GET("/api/auth/csrf-token", authHandler.CsrfToken)
	e.GET("/api/auth/me", authHandler.Me)
	e.POST("/api/auth/logout", authHandler.Logout)
	e.PUT("/api/auth/role", authHandler.UpdateRole,
		middleware.RequireRole(cfg.Hierarchy, domain.RoleAdmin))

	// --- Sign-up (exempt from the session gate) ---
	e.POST("/api/users", userHandler.Register)

	// --- Health probes and operational endpoints (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(cfg.DB, cfg.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e
}
