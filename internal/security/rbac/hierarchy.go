// Package rbac resolves a principal's base role into its full set of implied
// authorities and answers per-request allow/deny questions against it.
package rbac

import "github.com/pulsechat/chat-api/internal/core/domain"

// Hierarchy is a static role graph. The transitive closure is computed once
// at construction; lookups afterwards are read-only and need no locking.
type Hierarchy struct {
	implied map[domain.Role]map[domain.Role]struct{}
}

// NewHierarchy builds a hierarchy from direct implication edges. A role
// always implies itself, whether or not it appears as a key.
func NewHierarchy(edges map[domain.Role][]domain.Role) *Hierarchy {
	h := &Hierarchy{implied: make(map[domain.Role]map[domain.Role]struct{}, len(edges))}
	for role := range edges {
		set := make(map[domain.Role]struct{})
		h.expand(role, edges, set)
		h.implied[role] = set
	}
	return h
}

// Default returns the hierarchy used by the chat backend:
// ADMIN implies CHANNEL_MANAGER and USER; CHANNEL_MANAGER implies USER.
func Default() *Hierarchy {
	return NewHierarchy(map[domain.Role][]domain.Role{
		domain.RoleAdmin:          {domain.RoleUser, domain.RoleChannelManager},
		domain.RoleChannelManager: {domain.RoleUser},
	})
}

func (h *Hierarchy) expand(role domain.Role, edges map[domain.Role][]domain.Role, set map[domain.Role]struct{}) {
	if _, seen := set[role]; seen {
		return
	}
	set[role] = struct{}{}
	for _, next := range edges[role] {
		h.expand(next, edges, set)
	}
}

// Implied returns every role reachable from base, base itself included.
func (h *Hierarchy) Implied(base domain.Role) []domain.Role {
	set, ok := h.implied[base]
	if !ok {
		return []domain.Role{base}
	}
	out := make([]domain.Role, 0, len(set))
	for role := range set {
		out = append(out, role)
	}
	return out
}

// Allows reports whether a principal with the given base role satisfies the
// required role.
func (h *Hierarchy) Allows(base, required domain.Role) bool {
	if base == required {
		return true
	}
	set, ok := h.implied[base]
	if !ok {
		return false
	}
	_, ok = set[required]
	return ok
}
