package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type identityService struct {
	users UserRepository
	log   zerolog.Logger
}

// NewIdentityService constructs an IdentityService backed by users.
func NewIdentityService(users UserRepository, opts ...ServiceOption) IdentityService {
	o := defaultOptions(opts)
	return &identityService{users: users, log: o.logger.With().Str("component", "identity").Logger()}
}

func (s *identityService) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Warn().Str("username", username).Msg("failed login")
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	return s.identityFor(ctx, u)
}

func (s *identityService) Resolve(ctx context.Context, userID int) (*Identity, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrUnauthorized)
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return s.identityFor(ctx, u)
}

func (s *identityService) identityFor(ctx context.Context, u *User) (*Identity, error) {
	if !u.IsActive {
		return nil, fmt.Errorf("user %d is inactive: %w", u.ID, ErrUnauthorized)
	}
	role, err := ParseRole(u.Role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	branches, err := s.users.AssignedBranches(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load branches of user %d: %w", u.ID, err)
	}
	id := &Identity{
		UserID:           u.ID,
		Username:         u.Username,
		Role:             role,
		AssignedBranches: branches,
	}
	if u.PrimaryBranchID != nil {
		id.PrimaryBranch = *u.PrimaryBranchID
	}
	return id, nil
}
