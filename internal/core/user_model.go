package core

import (
	"context"
	"time"
)

// User is an account of the surrounding application as stored in the shared
// users table.
type User struct {
	ID              int
	Username        string
	Email           string
	PasswordHash    string
	Role            string
	PrimaryBranchID *int
	IsActive        bool
	CreatedAt       time.Time
}

// UserRepository is the read-only user lookup.
type UserRepository interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key, active or not.
	GetByID(ctx context.Context, userID int) (*User, error)

	// AssignedBranches returns the branch ids a user may operate on.
	AssignedBranches(ctx context.Context, userID int) ([]int, error)
}

// IdentityService turns credentials and token subjects into server-verified identities.
type IdentityService interface {
	// Authenticate checks a username and password. Any mismatch is ErrUnauthorized.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)

	// Resolve reloads role and branches for an authenticated user id.
	Resolve(ctx context.Context, userID int) (*Identity, error)
}
