package model

import (
	"slices"
	"strings"
	"time"
)

// TokenID is the opaque bearer credential
type TokenID string

// Permissions understood by the hub
const (
	PermissionCreateGame = "CREATE_GAME"
	PermissionJoinGame   = "JOIN_GAME"
	PermissionAdmin      = "ADMIN"
)

// Permissions is a sorted set of permission names
type Permissions []string

// NewPermissions normalizes names into a sorted, de-duplicated set
func NewPermissions(names ...string) Permissions {
	out := make(Permissions, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ParsePermissions splits a "/" separated permission string
func ParsePermissions(s string) Permissions {
	return NewPermissions(strings.Split(s, "/")...)
}

// Has reports whether the set contains name
func (p Permissions) Has(name string) bool {
	_, found := slices.BinarySearch(p, name)
	return found
}

// HasAny reports whether the set intersects names. An empty names list always matches.
func (p Permissions) HasAny(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if p.Has(n) {
			return true
		}
	}
	return false
}

// Equal compares two normalized sets
func (p Permissions) Equal(other Permissions) bool {
	return slices.Equal(p, other)
}

// Token grants its holder a set of permissions for a limited time
type Token struct {
	ID          TokenID
	CreatedAt   time.Time
	Lifespan    time.Duration
	Permissions Permissions
	Note        string
	UserID      UserID // empty for tokens not tied to a user
	Temporary   bool   // never written to the token file
	Valid       bool
}

// ExpiresAt is the last instant the token is accepted
func (t *Token) ExpiresAt() time.Time {
	return t.CreatedAt.Add(t.Lifespan)
}

// IsValidAt reports whether the token is usable at now (inclusive of the expiry instant)
func (t *Token) IsValidAt(now time.Time) bool {
	return t.Valid && !now.After(t.ExpiresAt())
}
