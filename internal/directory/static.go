package directory

import (
	"context"
	"fmt"
	"sort"

	"branch-supply/internal/core"
)

// Static serves a fixed set of branches and products.
type Static struct {
	branches map[int]core.Branch
	products map[int]core.Product
}

// NewStatic builds a Static directory.
func NewStatic(branches []core.Branch, products []core.Product) *Static {
	s := &Static{
		branches: make(map[int]core.Branch, len(branches)),
		products: make(map[int]core.Product, len(products)),
	}
	for _, b := range branches {
		s.branches[b.ID] = b
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

var (
	_ core.BranchDirectory = (*Static)(nil)
	_ core.ProductCatalog  = (*Static)(nil)
)

func (s *Static) ListBranches(context.Context) ([]core.Branch, error) {
	out := make([]core.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) GetBranch(_ context.Context, id int) (*core.Branch, error) {
	b, ok := s.branches[id]
	if !ok {
		return nil, fmt.Errorf("branch %d: %w", id, core.ErrNotFound)
	}
	return &b, nil
}

func (s *Static) CentralBranch(ctx context.Context) (*core.Branch, error) {
	all, _ := s.ListBranches(ctx)
	return pickCentral(all)
}

func (s *Static) GetProducts(_ context.Context, ids []int) (map[int]core.Product, error) {
	out := make(map[int]core.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
