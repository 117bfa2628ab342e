package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"branch-supply/internal/core"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository backed by PostgreSQL.
func NewUserRepository(pool *pgxpool.Pool) core.UserRepository {
	return &userRepository{pool: pool}
}

func (s *userRepository) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	u := &core.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, primary_branch_id, is_active, created_at
		FROM users
		WHERE username = $1 AND is_active = true
		LIMIT 1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.PrimaryBranchID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
		}
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return u, nil
}

func (s *userRepository) GetByID(ctx context.Context, userID int) (*core.User, error) {
	u := &core.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, primary_branch_id, is_active, created_at
		FROM users
		WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.PrimaryBranchID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user id=%d: %w", userID, core.ErrNotFound)
		}
		return nil, fmt.Errorf("user id=%d: %w", userID, err)
	}
	return u, nil
}

func (s *userRepository) AssignedBranches(ctx context.Context, userID int) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ub.branch_id
		FROM user_branches ub
		JOIN branches b ON b.id = ub.branch_id
		WHERE ub.user_id = $1 AND b.is_active = true
		ORDER BY ub.branch_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query branches of user %d: %w", userID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan branch id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
