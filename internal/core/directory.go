package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// Branch is a location that requests and receives goods.
type Branch struct {
	ID        int
	Name      string
	IsActive  bool
	IsCentral bool
}

// Product is a catalog entry as seen by purchase orders.
type Product struct {
	ID       int
	SKU      string
	Name     string
	Unit     string
	UnitCost decimal.Decimal
	IsActive bool
}

// BranchDirectory is the read-only branch lookup owned by the surrounding application.
type BranchDirectory interface {
	ListBranches(ctx context.Context) ([]Branch, error)
	// GetBranch returns ErrNotFound for an unknown id.
	GetBranch(ctx context.Context, id int) (*Branch, error)
	// CentralBranch returns the branch goods ship from.
	CentralBranch(ctx context.Context) (*Branch, error)
}

// ProductCatalog is the read-only product lookup owned by the surrounding application.
type ProductCatalog interface {
	// GetProducts returns the known products among ids, keyed by id. Unknown ids
	// are simply absent from the result.
	GetProducts(ctx context.Context, ids []int) (map[int]Product, error)
}
