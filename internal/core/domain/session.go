package domain

import "time"

// SessionState is the lifecycle state of a server-side session.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
)

// ExpiryReason records why a session left the active state.
type ExpiryReason string

const (
	ExpiredByLogout     ExpiryReason = "logout"
	ExpiredByEviction   ExpiryReason = "evicted"
	ExpiredByRoleChange ExpiryReason = "role_changed"
)

// Session is the server-side record of a successful login. The owning
// principal never changes after creation; a role change expires the session
// instead of mutating it.
type Session struct {
	ID           string       `json:"id"`
	PrincipalID  string       `json:"principal_id"`
	Username     string       `json:"username"`
	Role         Role         `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
	LastAccessed time.Time    `json:"last_accessed"`
	State        SessionState `json:"state"`
	ExpiredAt    time.Time    `json:"expired_at,omitempty"`
	ExpiryReason ExpiryReason `json:"expiry_reason,omitempty"`
}

// Expired reports whether the session has left the active state.
func (s *Session) Expired() bool {
	return s.State == SessionExpired
}
