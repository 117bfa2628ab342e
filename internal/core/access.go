package core

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the authorization role of an identity.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

// AllBranches is the active-branch sentinel meaning "every branch". Only an
// Admin may hold it.
const AllBranches = 0

// ParseRole accepts role names case-insensitively. Unknown values are rejected
// rather than defaulted.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN":
		return RoleAdmin, nil
	case "STAFF":
		return RoleStaff, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", s, ErrUnauthorized)
}

// Identity is the server-side view of an authenticated user.
type Identity struct {
	UserID           int
	Username         string
	Role             Role
	AssignedBranches []int
	PrimaryBranch    int
}

// AccessContext is the per-request authorization scope: who is acting and on
// which branch. It is built fresh for every request and never shared.
type AccessContext struct {
	identity Identity
	assigned map[int]struct{}
	ordered  []int
	active   int
}

// NewAccessContext builds an access context from an identity. Staff identities
// must have at least one assigned branch; their active branch starts at the
// primary branch when it is assigned, otherwise at the lowest assigned id.
// Admins start with AllBranches active.
func NewAccessContext(id Identity) (*AccessContext, error) {
	if id.Role != RoleAdmin && id.Role != RoleStaff {
		return nil, fmt.Errorf("identity %d has no valid role: %w", id.UserID, ErrUnauthorized)
	}

	a := &AccessContext{identity: id, assigned: make(map[int]struct{})}
	for _, b := range id.AssignedBranches {
		if b <= 0 {
			continue
		}
		if _, dup := a.assigned[b]; dup {
			continue
		}
		a.assigned[b] = struct{}{}
		a.ordered = append(a.ordered, b)
	}
	sort.Ints(a.ordered)
	a.identity.AssignedBranches = append([]int(nil), a.ordered...)

	if id.Role == RoleAdmin {
		a.active = AllBranches
		return a, nil
	}

	if len(a.ordered) == 0 {
		return nil, fmt.Errorf("staff user %d has no assigned branches: %w", id.UserID, ErrUnauthorized)
	}
	if _, ok := a.assigned[id.PrimaryBranch]; ok {
		a.active = id.PrimaryBranch
	} else {
		a.active = a.ordered[0]
	}
	return a, nil
}

// Identity returns a copy of the identity behind this context.
func (a *AccessContext) Identity() Identity {
	id := a.identity
	id.AssignedBranches = append([]int(nil), a.ordered...)
	return id
}

// UserID returns the acting user's id.
func (a *AccessContext) UserID() int { return a.identity.UserID }

// Role returns the acting role.
func (a *AccessContext) Role() Role { return a.identity.Role }

// IsAdmin reports whether the actor is an Admin.
func (a *AccessContext) IsAdmin() bool { return a.identity.Role == RoleAdmin }

// AssignedBranches returns the sorted assigned branch ids. For an Admin the set
// is informational; Admins may act on every branch.
func (a *AccessContext) AssignedBranches() []int {
	return append([]int(nil), a.ordered...)
}

// ActiveBranch returns the selected branch, or AllBranches.
func (a *AccessContext) ActiveBranch() int { return a.active }

// SetActiveBranch selects the branch subsequent operations default to.
// Admins may select any positive id or AllBranches; Staff only an assigned id.
func (a *AccessContext) SetActiveBranch(id int) error {
	if a.IsAdmin() {
		if id < 0 {
			return fmt.Errorf("branch %d: %w", id, ErrInvalidBranch)
		}
		a.active = id
		return nil
	}
	if _, ok := a.assigned[id]; !ok {
		return fmt.Errorf("branch %d is not assigned to user %d: %w", id, a.identity.UserID, ErrInvalidBranch)
	}
	a.active = id
	return nil
}

// BranchFilterForQuery returns nil when the actor is an Admin looking at all
// branches (no filter), otherwise the concrete active branch.
func (a *AccessContext) BranchFilterForQuery() *int {
	if a.IsAdmin() && a.active == AllBranches {
		return nil
	}
	b := a.active
	return &b
}

// CanActOn reports whether the actor may operate on the given branch.
func (a *AccessContext) CanActOn(branchID int) bool {
	if branchID <= 0 {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	_, ok := a.assigned[branchID]
	return ok
}

// RequireAdmin fails with ErrUnauthorized for non-Admin actors.
func (a *AccessContext) RequireAdmin() error {
	if !a.IsAdmin() {
		return fmt.Errorf("user %d is not an admin: %w", a.identity.UserID, ErrUnauthorized)
	}
	return nil
}

// RequireBranch fails with ErrUnauthorized unless the actor may act on branchID.
func (a *AccessContext) RequireBranch(branchID int) error {
	if !a.CanActOn(branchID) {
		return fmt.Errorf("user %d may not act on branch %d: %w", a.identity.UserID, branchID, ErrUnauthorized)
	}
	return nil
}
