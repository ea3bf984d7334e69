package ports

import (
	"context"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

// AuthService implements the credential side of the authentication core.
// Session issuance lives in the HTTP layer; this service only verifies
// credentials and manages accounts.
type AuthService interface {
	// Login verifies username/password and returns the matching user. Unknown
	// usernames and wrong passwords are indistinguishable to the caller.
	Login(ctx context.Context, username, password string) (*domain.User, error)
	// Register creates a regular USER account (the sign-up path).
	Register(ctx context.Context, username, password, email string) (*domain.User, error)
	// UpdateRole persists a role change and force-expires every live session
	// of the target user as part of the same operation.
	UpdateRole(ctx context.Context, userID string, newRole domain.Role) (*domain.User, error)
	// InitAdmin seeds the configured admin account if it does not exist yet.
	InitAdmin(ctx context.Context) (*domain.User, error)
	// UserByUsername resolves a user for session re-establishment paths.
	UserByUsername(ctx context.Context, username string) (*domain.User, error)
}
