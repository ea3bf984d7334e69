package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Security SecurityConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=pulsechat"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// SecurityConfig drives the session and remember-me behaviour of the auth
// core.
type SecurityConfig struct {
	// SessionCookie is the name of the short-lived session id cookie.
	SessionCookie string `env:"SESSION_COOKIE, default=PULSECHAT_SESSION"`
	// RememberMeCookie is the name of the long-lived remember-me cookie.
	RememberMeCookie string `env:"REMEMBER_ME_COOKIE, default=remember-me"`
	// MaxSessionsPerUser caps concurrent sessions per principal.
	// Zero or negative means unlimited.
	MaxSessionsPerUser int `env:"MAX_SESSIONS_PER_USER, default=1"`
	// SessionPolicy is applied when the cap is hit: evict_oldest or reject_new.
	SessionPolicy string `env:"SESSION_POLICY, default=evict_oldest"`
	// RememberMeValidity bounds how long an untouched remember-me series lives.
	RememberMeValidity time.Duration `env:"REMEMBER_ME_VALIDITY, default=336h"`
	// SecureCookies marks auth cookies Secure; disable only in development.
	SecureCookies bool `env:"SECURE_COOKIES, default=false"`
	// AuditWorkers sizes the async security-event worker pool.
	AuditWorkers int `env:"AUDIT_WORKERS, default=4"`

	AdminUsername string `env:"ADMIN_USERNAME, default=admin"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminEmail    string `env:"ADMIN_EMAIL,    default=admin@pulsechat.local"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
