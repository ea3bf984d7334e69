// Package session implements the server-side session registry: a process-wide
// table of live sessions per principal, enforcing the concurrent-session
// policy at registration time.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

// Policy decides what happens when a principal is already at the session limit.
type Policy string

const (
	// PolicyEvictOldest expires the least-recently-created session and lets
	// the new login proceed.
	PolicyEvictOldest Policy = "evict_oldest"
	// PolicyRejectNew refuses the new login and keeps existing sessions.
	PolicyRejectNew Policy = "reject_new"
)

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyEvictOldest, PolicyRejectNew:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown session policy %q", s)
}

// principalSet holds every resident session of one principal. Expired
// sessions stay resident until a request observes them, so the expiry
// notification can name the session id.
type principalSet struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// Registry is the shared session table. The outer lock guards the two maps;
// each principal's set has its own mutex so requests for different principals
// do not serialize against each other. Lock order is always outer before
// inner.
type Registry struct {
	mu         sync.RWMutex
	principals map[string]*principalSet
	owners     map[string]string // session id -> principal id

	maxSessions int // <= 0 means unlimited
	policy      Policy
	log         zerolog.Logger
}

// NewRegistry builds an empty registry. maxSessions <= 0 disables the limit.
func NewRegistry(maxSessions int, policy Policy, log zerolog.Logger) *Registry {
	return &Registry{
		principals:  make(map[string]*principalSet),
		owners:      make(map[string]string),
		maxSessions: maxSessions,
		policy:      policy,
		log:         log,
	}
}

// NewSession creates an active session bound to the given user. The id is an
// opaque UUID generated here, never supplied by the client.
func NewSession(u *domain.User) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID:           uuid.NewString(),
		PrincipalID:  u.ID,
		Username:     u.Username,
		Role:         u.Role,
		CreatedAt:    now,
		LastAccessed: now,
		State:        domain.SessionActive,
	}
}

// Register adds sess to the registry, applying the concurrency policy for its
// principal as one atomic step. It returns the sessions expired by eviction,
// if any, or ErrTooManySessions under PolicyRejectNew.
func (r *Registry) Register(sess *domain.Session) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.principals[sess.PrincipalID]
	if !ok {
		set = &principalSet{sessions: make(map[string]*domain.Session)}
		r.principals[sess.PrincipalID] = set
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	var evicted []domain.Session
	if r.maxSessions > 0 {
		active := activeByAge(set.sessions)
		for len(active) >= r.maxSessions {
			if r.policy == PolicyRejectNew {
				return nil, domain.ErrTooManySessions
			}
			oldest := active[0]
			expireLocked(oldest, domain.ExpiredByEviction)
			evicted = append(evicted, *oldest)
			active = active[1:]
			r.log.Info().
				Str("session_id", oldest.ID).
				Str("username", oldest.Username).
				Msg("session evicted by concurrency policy")
		}
	}

	set.sessions[sess.ID] = sess
	r.owners[sess.ID] = sess.PrincipalID
	return evicted, nil
}

// Get returns a snapshot of the session with the given id.
func (r *Registry) Get(id string) (domain.Session, bool) {
	set, sess := r.find(id)
	if set == nil {
		return domain.Session{}, false
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return *sess, true
}

// Touch updates the last-access timestamp of an active session.
func (r *Registry) Touch(id string) {
	set, sess := r.find(id)
	if set == nil {
		return
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	if sess.State == domain.SessionActive {
		sess.LastAccessed = time.Now().UTC()
	}
}

// Expire transitions one session to the expired state. The entry stays
// resident until Remove so the next request carrying its id can be told why
// it was logged out.
func (r *Registry) Expire(id string, reason domain.ExpiryReason) (domain.Session, bool) {
	set, sess := r.find(id)
	if set == nil {
		return domain.Session{}, false
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	if sess.State == domain.SessionActive {
		expireLocked(sess, reason)
	}
	return *sess, true
}

// ExpireAll expires every active session of a principal and returns snapshots
// of the sessions it transitioned. The expiry is visible to the very next
// lookup of any of those sessions.
func (r *Registry) ExpireAll(principalID string, reason domain.ExpiryReason) []domain.Session {
	r.mu.RLock()
	set, ok := r.principals[principalID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	var expired []domain.Session
	for _, sess := range set.sessions {
		if sess.State == domain.SessionActive {
			expireLocked(sess, reason)
			expired = append(expired, *sess)
		}
	}
	return expired
}

// Remove deletes a session from the registry entirely, returning its final
// snapshot. Called when the transport-level session terminates or after an
// expired entry has been observed.
func (r *Registry) Remove(id string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	principalID, ok := r.owners[id]
	if !ok {
		return domain.Session{}, false
	}
	set := r.principals[principalID]

	set.mu.Lock()
	defer set.mu.Unlock()

	sess := set.sessions[id]
	delete(set.sessions, id)
	delete(r.owners, id)
	if len(set.sessions) == 0 {
		delete(r.principals, principalID)
	}
	return *sess, true
}

// SessionsOf returns snapshots of every resident session of a principal,
// active and expired alike.
func (r *Registry) SessionsOf(principalID string) []domain.Session {
	r.mu.RLock()
	set, ok := r.principals[principalID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	out := make([]domain.Session, 0, len(set.sessions))
	for _, sess := range set.sessions {
		out = append(out, *sess)
	}
	return out
}

// ActiveCount returns the number of active sessions held by a principal.
func (r *Registry) ActiveCount(principalID string) int {
	n := 0
	for _, sess := range r.SessionsOf(principalID) {
		if sess.State == domain.SessionActive {
			n++
		}
	}
	return n
}

// HasActive reports whether the principal holds at least one active session.
// This backs the computed "online" flag of the principal view.
func (r *Registry) HasActive(principalID string) bool {
	return r.ActiveCount(principalID) > 0
}

// TotalActive counts active sessions across all principals.
func (r *Registry) TotalActive() int {
	r.mu.RLock()
	sets := make([]*principalSet, 0, len(r.principals))
	for _, set := range r.principals {
		sets = append(sets, set)
	}
	r.mu.RUnlock()

	n := 0
	for _, set := range sets {
		set.mu.Lock()
		for _, sess := range set.sessions {
			if sess.State == domain.SessionActive {
				n++
			}
		}
		set.mu.Unlock()
	}
	return n
}

// find resolves a session id to its principal set and live record. Callers
// must take the set lock before touching the record.
func (r *Registry) find(id string) (*principalSet, *domain.Session) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	principalID, ok := r.owners[id]
	if !ok {
		return nil, nil
	}
	set := r.principals[principalID]
	return set, set.sessions[id]
}

func expireLocked(sess *domain.Session, reason domain.ExpiryReason) {
	sess.State = domain.SessionExpired
	sess.ExpiredAt = time.Now().UTC()
	sess.ExpiryReason = reason
}

// activeByAge returns the active sessions of a set ordered oldest first.
func activeByAge(sessions map[string]*domain.Session) []*domain.Session {
	active := make([]*domain.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.State == domain.SessionActive {
			active = append(active, sess)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}
