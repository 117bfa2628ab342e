package core_test

import (
	"errors"
	"testing"

	"branch-supply/internal/core"
)

func intPtr(v int) *int { return &v }

func TestReceiveCap(t *testing.T) {
	tests := []struct {
		name             string
		ordered, shipped int
		want             int
	}{
		{"nothing shipped caps at ordered", 10, 0, 10},
		{"short shipment caps at shipped", 10, 5, 5},
		{"full shipment", 10, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := core.OrderLine{QuantityOrdered: tt.ordered, QuantityShipped: tt.shipped}
			if got := core.ReceiveCap(l); got != tt.want {
				t.Errorf("want %d, got %d", tt.want, got)
			}
		})
	}
}

func TestResolveShippedAndClampReceived(t *testing.T) {
	l := core.OrderLine{QuantityOrdered: 10}
	if got := core.ResolveShipped(l, nil); got != 10 {
		t.Errorf("omitted shipped: want 10, got %d", got)
	}
	if got := core.ResolveShipped(l, intPtr(14)); got != 10 {
		t.Errorf("over-ship clamps: want 10, got %d", got)
	}
	if got := core.ResolveShipped(l, intPtr(-3)); got != 0 {
		t.Errorf("negative clamps: want 0, got %d", got)
	}

	l.QuantityShipped = 5
	for _, tc := range []struct{ in, want int }{{9, 5}, {3, 3}, {-1, 0}} {
		if got := core.ClampReceived(l, tc.in); got != tc.want {
			t.Errorf("ClampReceived(%d): want %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestReceiptPlan(t *testing.T) {
	po := &core.PurchaseOrder{Lines: []core.OrderLine{
		{ID: 11, QuantityOrdered: 10, QuantityShipped: 5},
		{ID: 12, QuantityOrdered: 4, QuantityShipped: 4},
	}}
	plan := core.NewReceiptPlan(po)

	if v, _ := plan.Get(11); v != 5 {
		t.Errorf("preset to cap: want 5, got %d", v)
	}

	stored, err := plan.Set(11, 9)
	if err != nil || stored != 5 {
		t.Errorf("Set clamps: want 5, got %d (%v)", stored, err)
	}
	if stored, _ := plan.Set(12, 2); stored != 2 {
		t.Errorf("Set in range: want 2, got %d", stored)
	}
	if _, err := plan.Set(99, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown line: want ErrNotFound, got %v", err)
	}

	plan.SetAllToZero()
	for _, it := range plan.Items() {
		if it.QuantityReceived != 0 {
			t.Errorf("SetAllToZero: line %d = %d", it.LineID, it.QuantityReceived)
		}
	}

	plan.SetAllToCap()
	items := plan.Items()
	if len(items) != 2 || items[0].LineID != 11 || items[0].QuantityReceived != 5 || items[1].QuantityReceived != 4 {
		t.Errorf("SetAllToCap items: %+v", items)
	}
}

func TestDiscrepancies(t *testing.T) {
	po := &core.PurchaseOrder{Lines: []core.OrderLine{
		{ID: 1, ProductName: "Rice", QuantityOrdered: 10, QuantityShipped: 5, QuantityReceived: 5},
		{ID: 2, ProductName: "Oil", QuantityOrdered: 4, QuantityShipped: 4, QuantityReceived: 4},
	}}
	d := core.Discrepancies(po)
	if len(d) != 1 || d[0].LineID != 1 || d[0].Missing() != 5 {
		t.Errorf("discrepancies: %+v", d)
	}
}

func TestLifecycleTable(t *testing.T) {
	tests := []struct {
		from core.OrderStatus
		ev   core.Event
		to   core.OrderStatus
		ok   bool
	}{
		{core.StatusCreated, core.EventShip, core.StatusInTransit, true},
		{core.StatusCreated, core.EventCancel, core.StatusCancelled, true},
		{core.StatusCreated, core.EventConfirm, "", false},
		{core.StatusInTransit, core.EventConfirm, core.StatusConfirmed, true},
		{core.StatusInTransit, core.EventCancel, "", false},
		{core.StatusInTransit, core.EventShip, "", false},
		{core.StatusConfirmed, core.EventCancel, "", false},
		{core.StatusConfirmed, core.EventConfirm, "", false},
		{core.StatusCancelled, core.EventShip, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			to, err := core.NextStatus(tt.from, tt.ev)
			if tt.ok {
				if err != nil || to != tt.to {
					t.Errorf("want %s, got %s (%v)", tt.to, to, err)
				}
				return
			}
			if !errors.Is(err, core.ErrInvalidTransition) {
				t.Errorf("want ErrInvalidTransition, got %v", err)
			}
		})
	}

	if evs := core.AllowedEvents(core.StatusConfirmed); len(evs) != 0 {
		t.Errorf("terminal status allows %v", evs)
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]core.OrderStatus{
		"created":    core.StatusCreated,
		"1":          core.StatusCreated,
		"in-transit": core.StatusInTransit,
		"4":          core.StatusInTransit,
		"received":   core.StatusConfirmed,
		"2":          core.StatusConfirmed,
		"CANCELED":   core.StatusCancelled,
	} {
		got, err := core.ParseStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q): want %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := core.ParseStatus("lost"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("unknown status: want ErrValidation, got %v", err)
	}
}
