package core_test

import (
	"testing"

	"branch-supply/internal/core"
)

func seedOrders(t *testing.T, f *fixture) {
	t.Helper()
	north1 := f.createOrder(t, branchNorth, 1)
	f.createOrder(t, branchNorth, 2)
	south := f.createOrder(t, branchSouth, 3)
	f.createOrder(t, branchSouth, 4)
	f.ship(t, north1.ID)
	f.ship(t, south.ID)
}

func TestListOrders_StaffNeverSeesOtherBranches(t *testing.T) {
	f := newFixture(t)
	seedOrders(t, f)
	ac := staff(t, branchNorth)

	for _, hint := range []*int{nil, intPtr(branchSouth), intPtr(core.AllBranches), intPtr(branchNorth), intPtr(12345)} {
		for _, list := range []func() ([]core.OrderSummary, error){
			func() ([]core.OrderSummary, error) {
				return f.query.ListOrders(f.ctx, ac, core.ListFilter{BranchID: hint})
			},
			func() ([]core.OrderSummary, error) {
				return f.query.ListMyOrders(f.ctx, ac, core.ListFilter{BranchID: hint})
			},
		} {
			rows, err := list()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(rows) != 2 {
				t.Errorf("hint %v: want 2 rows, got %d", hint, len(rows))
			}
			for _, r := range rows {
				if r.DestinationBranchID != branchNorth {
					t.Errorf("hint %v: leaked row for branch %d", hint, r.DestinationBranchID)
				}
			}
		}
	}
}

func TestListOrders_Admin(t *testing.T) {
	f := newFixture(t)
	seedOrders(t, f)
	ac := admin(t)

	all, err := f.query.ListOrders(f.ctx, ac, core.ListFilter{})
	if err != nil || len(all) != 4 {
		t.Fatalf("all branches: want 4, got %d (%v)", len(all), err)
	}
	if all[0].ID < all[len(all)-1].ID {
		t.Errorf("want newest first, got ids %d..%d", all[0].ID, all[len(all)-1].ID)
	}

	south, _ := f.query.ListOrders(f.ctx, ac, core.ListFilter{BranchID: intPtr(branchSouth)})
	if len(south) != 2 {
		t.Errorf("south: want 2, got %d", len(south))
	}

	inTransit := core.StatusInTransit
	rows, _ := f.query.ListOrders(f.ctx, ac, core.ListFilter{Status: &inTransit})
	if len(rows) != 2 {
		t.Errorf("in transit: want 2, got %d", len(rows))
	}
	for _, r := range rows {
		if r.TotalShipped != r.TotalOrdered || r.ItemsCount != 1 {
			t.Errorf("row totals: %+v", r)
		}
	}

	if err := ac.SetActiveBranch(branchNorth); err != nil {
		t.Fatal(err)
	}
	north, _ := f.query.ListOrders(f.ctx, ac, core.ListFilter{})
	if len(north) != 2 {
		t.Errorf("admin active branch narrows list: want 2, got %d", len(north))
	}
	reset, _ := f.query.ListOrders(f.ctx, ac, core.ListFilter{BranchID: intPtr(core.AllBranches)})
	if len(reset) != 4 {
		t.Errorf("explicit all-branches hint: want 4, got %d", len(reset))
	}

	page, _ := f.query.ListOrders(f.ctx, admin(t), core.ListFilter{Limit: 3, Offset: 2})
	if len(page) != 2 {
		t.Errorf("page: want 2, got %d", len(page))
	}
}

func TestListMyOrders_StaffWithSeveralBranches(t *testing.T) {
	f := newFixture(t)
	seedOrders(t, f)
	ac := staff(t, branchNorth, branchSouth)

	mine, _ := f.query.ListMyOrders(f.ctx, ac, core.ListFilter{})
	if len(mine) != 4 {
		t.Errorf("all assigned branches: want 4, got %d", len(mine))
	}
	active, _ := f.query.ListOrders(f.ctx, ac, core.ListFilter{})
	if len(active) != 2 {
		t.Errorf("ListOrders uses the active branch only: want 2, got %d", len(active))
	}
	south, _ := f.query.ListMyOrders(f.ctx, ac, core.ListFilter{BranchID: intPtr(branchSouth)})
	if len(south) != 2 || south[0].DestinationBranchID != branchSouth {
		t.Errorf("narrowed to south: %+v", south)
	}
}

func TestPendingCount(t *testing.T) {
	f := newFixture(t)
	seedOrders(t, f)

	got, err := f.query.PendingCount(f.ctx, admin(t), nil)
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if got.Count != 2 || got.InTransit != 2 {
		t.Errorf("admin all: %+v", got)
	}

	got, _ = f.query.PendingCount(f.ctx, staff(t, branchSouth), intPtr(branchNorth))
	if got.Count != 1 || got.InTransit != 1 {
		t.Errorf("staff south ignoring north hint: %+v", got)
	}
}
