package domain

import "time"

// Role is the base privilege level assigned to a user. Effective authority is
// derived from the role hierarchy, never from the raw value alone.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleChannelManager Role = "CHANNEL_MANAGER"
	RoleUser           Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleChannelManager, RoleUser:
		return true
	}
	return false
}

// User models an account in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the serialized view of a user returned by the auth endpoints
// and stashed in the request context after authentication. Online is computed
// from the session registry at render time.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	Online   bool   `json:"online"`
}

// PrincipalOf builds the principal view of a user.
func PrincipalOf(u *User, online bool) Principal {
	return Principal{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Online:   online,
	}
}
