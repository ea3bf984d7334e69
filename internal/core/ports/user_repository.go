package ports

import (
	"context"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

// UserRepository is the credential store consumed by the auth core: it owns
// user persistence, including the stored password hash and base role.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
}
