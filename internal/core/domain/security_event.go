package domain

import "time"

// SecurityEventKind enumerates the auditable outcomes of the auth core.
type SecurityEventKind string

const (
	EventLoginSuccess    SecurityEventKind = "login_success"
	EventLoginFailure    SecurityEventKind = "login_failure"
	EventLogout          SecurityEventKind = "logout"
	EventSessionEvicted  SecurityEventKind = "session_evicted"
	EventSessionExpired  SecurityEventKind = "session_expired"
	EventRoleChanged     SecurityEventKind = "role_changed"
	EventRememberMeReuse SecurityEventKind = "rememberme_reuse"
)

// SecurityEvent is an append-only audit record emitted by the auth core and
// processed asynchronously by the event pipeline.
type SecurityEvent struct {
	Kind      SecurityEventKind `json:"kind"`
	Username  string            `json:"username,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}
