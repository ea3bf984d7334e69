package domain

import "time"

// RememberMeToken is the persisted half of a remember-me credential: a stable
// series identifier per device plus a token value that rotates on every
// successful presentation. The cookie carries both; only the pair
// authenticates.
type RememberMeToken struct {
	Series   string    `json:"series"`
	Token    string    `json:"token"`
	Username string    `json:"username"`
	LastUsed time.Time `json:"last_used"`
}
