package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
	"github.com/pulsechat/chat-api/internal/pkg/metrics"
	"github.com/pulsechat/chat-api/internal/security/session"
)

// AdminSeed carries the bootstrap admin credentials from configuration.
type AdminSeed struct {
	Username string
	Password string
	Email    string
}

// AuthService verifies credentials against the user repository and owns the
// role-update workflow, including forced session expiry.
type AuthService struct {
	repo     ports.UserRepository
	registry *session.Registry
	audit    ports.AuditSink
	admin    AdminSeed
	log      zerolog.Logger
}

// NewAuthService wires the auth service. The registry is passed explicitly;
// there is no ambient shared state.
func NewAuthService(
	repo ports.UserRepository,
	registry *session.Registry,
	audit ports.AuditSink,
	admin AdminSeed,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{repo: repo, registry: registry, audit: audit, admin: admin, log: log}
}

// Login verifies username/password. Unknown usernames and wrong passwords
// both surface as ErrInvalidCredentials so the response cannot be used to
// probe which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Burn a comparison anyway so the timing of the two failure modes
		// stays close.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOa1cR9aC1mDRYyvXk1uF8mEFbPLaO/0y"), []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	s.log.Info().Str("user_id", user.ID).Str("username", username).Msg("login verified")
	return user, nil
}

// Register creates a regular USER account. The sign-up path is open to
// unauthenticated callers; privilege is only ever granted via UpdateRole.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	return s.createUser(ctx, username, password, email, domain.RoleUser)
}

// UpdateRole persists the new role and force-expires every live session of
// the target user before returning, so the next authorization decision for
// any of those sessions sees the expiry rather than stale privileges.
func (s *AuthService) UpdateRole(ctx context.Context, userID string, newRole domain.Role) (*domain.User, error) {
	if !newRole.Valid() {
		return nil, domain.NewError(domain.ErrCodeMalformedRequest, "unknown role").
			WithDetail("role", string(newRole))
	}

	updated, err := s.repo.UpdateRole(ctx, userID, newRole)
	if err != nil {
		return nil, err
	}

	expired := s.registry.ExpireAll(userID, domain.ExpiredByRoleChange)
	for range expired {
		metrics.SessionsExpiredTotal.WithLabelValues(string(domain.ExpiredByRoleChange)).Inc()
	}
	s.log.Info().
		Str("user_id", userID).
		Str("new_role", string(newRole)).
		Int("sessions_expired", len(expired)).
		Msg("role updated, sessions force-expired")

	s.audit.Emit(domain.SecurityEvent{
		Kind:      domain.EventRoleChanged,
		Username:  updated.Username,
		Timestamp: time.Now().UTC(),
		Details: map[string]string{
			"new_role":         string(newRole),
			"sessions_expired": strconv.Itoa(len(expired)),
		},
	})
	return updated, nil
}

// InitAdmin seeds the configured admin account at startup. It is a no-op when
// the username is already taken.
func (s *AuthService) InitAdmin(ctx context.Context) (*domain.User, error) {
	if s.admin.Username == "" || s.admin.Password == "" {
		return nil, nil
	}
	if _, err := s.repo.FindByUsername(ctx, s.admin.Username); err == nil {
		s.log.Debug().Str("username", s.admin.Username).Msg("admin account already present")
		return nil, nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	admin, err := s.createUser(ctx, s.admin.Username, s.admin.Password, s.admin.Email, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", admin.ID).Str("username", admin.Username).Msg("admin account seeded")
	return admin, nil
}

// UserByUsername resolves a user for remember-me session re-establishment.
func (s *AuthService) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.FindByUsername(ctx, username)
}

func (s *AuthService) createUser(ctx context.Context, username, password, email string, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.repo.Create(ctx, user)
}
