package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"branch-supply/internal/core"
)

// SQL reads branches and products from the shared PostgreSQL tables.
type SQL struct {
	pool *pgxpool.Pool
}

// NewSQL constructs a SQL directory.
func NewSQL(pool *pgxpool.Pool) *SQL {
	return &SQL{pool: pool}
}

var (
	_ core.BranchDirectory = (*SQL)(nil)
	_ core.ProductCatalog  = (*SQL)(nil)
)

func (d *SQL) ListBranches(ctx context.Context) ([]core.Branch, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, is_active, is_central
		FROM branches
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query branches: %w", err)
	}
	defer rows.Close()

	var out []core.Branch
	for rows.Next() {
		var b core.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.IsActive, &b.IsCentral); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (d *SQL) GetBranch(ctx context.Context, id int) (*core.Branch, error) {
	var b core.Branch
	err := d.pool.QueryRow(ctx,
		"SELECT id, name, is_active, is_central FROM branches WHERE id = $1",
		id,
	).Scan(&b.ID, &b.Name, &b.IsActive, &b.IsCentral)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("branch %d: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch branch %d: %w", id, err)
	}
	return &b, nil
}

func (d *SQL) CentralBranch(ctx context.Context) (*core.Branch, error) {
	all, err := d.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	return pickCentral(all)
}

func (d *SQL) GetProducts(ctx context.Context, ids []int) (map[int]core.Product, error) {
	out := make(map[int]core.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := d.pool.Query(ctx, `
		SELECT id, sku, name, unit, unit_cost, is_active
		FROM products
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.UnitCost, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
