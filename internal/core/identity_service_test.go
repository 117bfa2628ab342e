package core_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"branch-supply/internal/core"
	"branch-supply/internal/store/memory"
)

func TestIdentityService(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	primary := branchSouth
	store := memory.New()
	store.PutUser(core.User{ID: 1, Username: "ana", PasswordHash: string(hash), Role: "staff", PrimaryBranchID: &primary, IsActive: true}, branchNorth, branchSouth)
	store.PutUser(core.User{ID: 2, Username: "old", PasswordHash: string(hash), Role: "STAFF", IsActive: false}, branchNorth)
	store.PutUser(core.User{ID: 3, Username: "odd", PasswordHash: string(hash), Role: "OWNER", IsActive: true})

	svc := core.NewIdentityService(store)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		id, err := svc.Authenticate(ctx, "ana", "s3cret")
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if id.Role != core.RoleStaff || id.PrimaryBranch != branchSouth || len(id.AssignedBranches) != 2 {
			t.Errorf("identity: %+v", id)
		}
		ac, err := core.NewAccessContext(*id)
		if err != nil || ac.ActiveBranch() != branchSouth {
			t.Errorf("access context from identity: %v, %v", ac, err)
		}
	})

	for _, tc := range []struct{ name, user, pass string }{
		{"wrong password", "ana", "nope"},
		{"unknown user", "ghost", "s3cret"},
		{"inactive user", "old", "s3cret"},
		{"unknown role", "odd", "s3cret"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Authenticate(ctx, tc.user, tc.pass); !errors.Is(err, core.ErrUnauthorized) {
				t.Errorf("want ErrUnauthorized, got %v", err)
			}
		})
	}

	t.Run("resolve reloads from store", func(t *testing.T) {
		if _, err := svc.Resolve(ctx, 2); !errors.Is(err, core.ErrUnauthorized) {
			t.Errorf("inactive: want ErrUnauthorized, got %v", err)
		}
		if _, err := svc.Resolve(ctx, 99); !errors.Is(err, core.ErrUnauthorized) {
			t.Errorf("missing: want ErrUnauthorized, got %v", err)
		}
		store.PutUser(core.User{ID: 1, Username: "ana", PasswordHash: string(hash), Role: "ADMIN", IsActive: true})
		id, err := svc.Resolve(ctx, 1)
		if err != nil || id.Role != core.RoleAdmin {
			t.Errorf("role change must be visible immediately: %+v, %v", id, err)
		}
	})
}
