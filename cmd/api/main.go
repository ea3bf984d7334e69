package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsechat/chat-api/internal/api"
	"github.com/pulsechat/chat-api/internal/api/handler"
	"github.com/pulsechat/chat-api/internal/core/service"
	mongodb "github.com/pulsechat/chat-api/internal/infrastructure/db/mongo"
	redisdb "github.com/pulsechat/chat-api/internal/infrastructure/db/redis"
	"github.com/pulsechat/chat-api/internal/infrastructure/queue"
	"github.com/pulsechat/chat-api/internal/pkg/config"
	"github.com/pulsechat/chat-api/internal/security/rbac"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
	"github.com/pulsechat/chat-api/internal/security/session"
	"github.com/pulsechat/chat-api/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		_ = rdb.Close()
	}()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("user repository init failed")
	}

	// --- Security core ---
	policy, err := session.ParsePolicy(cfg.Security.SessionPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid session policy")
	}
	registry := session.NewRegistry(cfg.Security.MaxSessionsPerUser, policy, log)
	hierarchy := rbac.Default()
	rememberMe := rememberme.NewService(
		redisdb.NewRememberMeRepository(rdb),
		cfg.Security.RememberMeValidity,
		log,
	)

	// --- Audit pipeline ---
	auditService := service.NewAuditService(mongodb.NewAuditRepository(db), log)
	dispatcher := queue.NewDispatcher(cfg.Security.AuditWorkers, auditService, log)
	dispatcher.Start(ctx)

	authService := service.NewAuthService(userRepo, registry, dispatcher, service.AdminSeed{
		Username: cfg.Security.AdminUsername,
		Password: cfg.Security.AdminPassword,
		Email:    cfg.Security.AdminEmail,
	}, log)

	if _, err := authService.InitAdmin(ctx); err != nil {
		log.Fatal().Err(err).Msg("admin seeding failed")
	}

	// --- HTTP ---
	e := api.NewRouter(api.RouterConfig{
		DB:          db,
		Redis:       rdb,
		Registry:    registry,
		AuthService: authService,
		RememberMe:  rememberMe,
		Audit:       dispatcher,
		Hierarchy:   hierarchy,
		Cookies: handler.CookieSettings{
			Session:    cfg.Security.SessionCookie,
			RememberMe: cfg.Security.RememberMeCookie,
			Secure:     cfg.Security.SecureCookies,
		},
		Log: log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("chat-api listening")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("chat-api stopped")
}
