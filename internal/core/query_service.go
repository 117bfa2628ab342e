package core

import (
	"context"
	"fmt"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// PendingCounts backs the dashboard badges.
type PendingCounts struct {
	Count     int // orders awaiting shipment (CREATED)
	InTransit int // orders awaiting receipt (IN_TRANSIT)
}

// QueryService produces branch-filtered order views. A branch passed by the
// caller is only a hint; Staff callers never see rows outside their branches.
type QueryService interface {
	ListOrders(ctx context.Context, ac *AccessContext, f ListFilter) ([]OrderSummary, error)
	// ListMyOrders lists orders destined for any of the caller's branches.
	ListMyOrders(ctx context.Context, ac *AccessContext, f ListFilter) ([]OrderSummary, error)
	PendingCount(ctx context.Context, ac *AccessContext, branchID *int) (PendingCounts, error)
}

type queryService struct {
	repo OrderRepository
}

// NewQueryService constructs a QueryService over repo.
func NewQueryService(repo OrderRepository) QueryService {
	return &queryService{repo: repo}
}

func (s *queryService) ListOrders(ctx context.Context, ac *AccessContext, f ListFilter) ([]OrderSummary, error) {
	rows, err := s.repo.List(ctx, RepoFilter{
		Status:    f.Status,
		BranchIDs: ActiveScope(ac, f.BranchID),
		Limit:     pageLimit(f.Limit),
		Offset:    max(f.Offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return rows, nil
}

func (s *queryService) ListMyOrders(ctx context.Context, ac *AccessContext, f ListFilter) ([]OrderSummary, error) {
	rows, err := s.repo.List(ctx, RepoFilter{
		Status:    f.Status,
		BranchIDs: AssignedScope(ac, f.BranchID),
		Limit:     pageLimit(f.Limit),
		Offset:    max(f.Offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("list own purchase orders: %w", err)
	}
	return rows, nil
}

func (s *queryService) PendingCount(ctx context.Context, ac *AccessContext, branchID *int) (PendingCounts, error) {
	scope := ActiveScope(ac, branchID)
	created, err := s.repo.CountByStatus(ctx, StatusCreated, scope)
	if err != nil {
		return PendingCounts{}, fmt.Errorf("count pending purchase orders: %w", err)
	}
	inTransit, err := s.repo.CountByStatus(ctx, StatusInTransit, scope)
	if err != nil {
		return PendingCounts{}, fmt.Errorf("count in-transit purchase orders: %w", err)
	}
	return PendingCounts{Count: created, InTransit: inTransit}, nil
}

// ActiveScope resolves the branches a single-branch view may read; nil means
// every branch. Admins honour the hint (0 meaning all) and otherwise fall back
// to their active branch. Staff get the hint only when it is assigned to them,
// otherwise their active branch.
func ActiveScope(ac *AccessContext, hint *int) []int {
	if ac.IsAdmin() {
		if hint != nil {
			if *hint == AllBranches {
				return nil
			}
			return []int{*hint}
		}
		if b := ac.BranchFilterForQuery(); b != nil {
			return []int{*b}
		}
		return nil
	}
	if hint != nil && ac.CanActOn(*hint) {
		return []int{*hint}
	}
	return []int{*ac.BranchFilterForQuery()}
}

// AssignedScope resolves the branches a "my orders" view may read: every
// assigned branch, narrowed to the hint when the caller may act on it.
func AssignedScope(ac *AccessContext, hint *int) []int {
	if hint != nil && *hint != AllBranches && ac.CanActOn(*hint) {
		return []int{*hint}
	}
	if ac.IsAdmin() {
		return nil
	}
	return ac.AssignedBranches()
}

func pageLimit(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return min(n, MaxPageSize)
}
