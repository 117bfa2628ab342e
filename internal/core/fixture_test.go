package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"branch-supply/internal/core"
	"branch-supply/internal/directory"
	"branch-supply/internal/store/memory"
)

const (
	centralBranch = 1
	branchNorth   = 7
	branchSouth   = 8
	branchClosed  = 9
)

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	dir    *directory.Static
	orders core.PurchaseOrderService
	query  core.QueryService
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		now:   time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
	f.dir = directory.NewStatic(
		[]core.Branch{
			{ID: centralBranch, Name: "Matriz", IsActive: true},
			{ID: branchNorth, Name: "Norte", IsActive: true},
			{ID: branchSouth, Name: "Sur", IsActive: true},
			{ID: branchClosed, Name: "Cerrada", IsActive: false},
		},
		[]core.Product{
			{ID: 1, SKU: "RICE-5", Name: "Rice 5kg", Unit: "bag", UnitCost: decimal.RequireFromString("12.50"), IsActive: true},
			{ID: 2, SKU: "OIL-1", Name: "Oil 1L", Unit: "bottle", UnitCost: decimal.RequireFromString("3.20"), IsActive: true},
			{ID: 3, SKU: "OLD", Name: "Retired", Unit: "unit", IsActive: false},
		},
	)
	clock := func() time.Time { return f.now }
	f.orders = core.NewPurchaseOrderService(f.store, f.dir, f.dir, core.WithClock(clock))
	f.query = core.NewQueryService(f.store)
	return f
}

func admin(t *testing.T) *core.AccessContext {
	t.Helper()
	ac, err := core.NewAccessContext(core.Identity{UserID: 100, Username: "admin", Role: core.RoleAdmin})
	if err != nil {
		t.Fatalf("admin access context: %v", err)
	}
	return ac
}

func staff(t *testing.T, branches ...int) *core.AccessContext {
	t.Helper()
	ac, err := core.NewAccessContext(core.Identity{UserID: 200, Username: "staff", Role: core.RoleStaff, AssignedBranches: branches})
	if err != nil {
		t.Fatalf("staff access context: %v", err)
	}
	return ac
}

// createOrder creates a CREATED order for branch with product 1 ordered at qty.
func (f *fixture) createOrder(t *testing.T, branch, qty int) *core.PurchaseOrder {
	t.Helper()
	po, err := f.orders.CreateOrder(f.ctx, admin(t), core.CreateOrderInput{
		DestinationBranchID: branch,
		Lines:               []core.CreateLineInput{{ProductID: 1, QuantityOrdered: qty}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return po
}

func (f *fixture) ship(t *testing.T, id int) *core.PurchaseOrder {
	t.Helper()
	po, err := f.orders.ShipOrder(f.ctx, admin(t), core.ShipInput{OrderID: id})
	if err != nil {
		t.Fatalf("ShipOrder: %v", err)
	}
	return po
}

func (f *fixture) confirm(t *testing.T, id int) *core.PurchaseOrder {
	t.Helper()
	po, err := f.orders.ConfirmOrder(f.ctx, admin(t), core.ConfirmInput{OrderID: id})
	if err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	return po
}
