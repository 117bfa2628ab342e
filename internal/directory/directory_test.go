package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"branch-supply/internal/config"
	"branch-supply/internal/core"
)

func TestPickCentral(t *testing.T) {
	tests := []struct {
		name     string
		branches []core.Branch
		wantID   int
		wantErr  bool
	}{
		{
			name: "flag wins over name",
			branches: []core.Branch{
				{ID: 1, Name: "Matriz", IsActive: true},
				{ID: 2, Name: "Depot", IsActive: true, IsCentral: true},
			},
			wantID: 2,
		},
		{
			name:     "name fallback is case-insensitive",
			branches: []core.Branch{{ID: 3, Name: "Norte", IsActive: true}, {ID: 4, Name: " MATRIZ ", IsActive: true}},
			wantID:   4,
		},
		{
			name:     "inactive central ignored",
			branches: []core.Branch{{ID: 5, Name: "Matriz", IsActive: false, IsCentral: true}},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := pickCentral(tt.branches)
			if tt.wantErr {
				if !errors.Is(err, core.ErrNotFound) {
					t.Fatalf("want ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.ID != tt.wantID {
				t.Errorf("want branch %d, got %d", tt.wantID, b.ID)
			}
		})
	}
}

func TestStatic_Lookups(t *testing.T) {
	d := NewStatic(
		[]core.Branch{{ID: 1, Name: "Matriz", IsActive: true}, {ID: 7, Name: "Sur", IsActive: true}},
		[]core.Product{{ID: 1, SKU: "A-1", Name: "Rice", Unit: "kg", IsActive: true}},
	)
	ctx := context.Background()

	if _, err := d.GetBranch(ctx, 99); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown branch: want ErrNotFound, got %v", err)
	}
	c, err := d.CentralBranch(ctx)
	if err != nil || c.ID != 1 {
		t.Errorf("central: got %v, %v", c, err)
	}
	got, _ := d.GetProducts(ctx, []int{1, 2})
	if len(got) != 1 || got[1].SKU != "A-1" {
		t.Errorf("products: got %v", got)
	}
}

func TestHTTP_BranchesCachedAndProducts(t *testing.T) {
	var branchCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "bad token"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/branches":
			branchCalls.Add(1)
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "name": "Matriz", "isActive": true},
				{"id": 7, "name": "Sur", "isActive": true},
			})
		case "/api/products":
			if r.URL.Query().Get("ids") != "1,2" {
				t.Errorf("ids query: got %q", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "sku": "A-1", "name": "Rice", "unit": "kg", "unitCost": "2.50"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := NewHTTP(config.DirectoryConfig{BaseURL: srv.URL + "/", APIToken: "tok", Timeout: 2 * time.Second, CacheTTL: time.Minute})
	ctx := context.Background()

	b, err := d.GetBranch(ctx, 7)
	if err != nil || b.Name != "Sur" {
		t.Fatalf("GetBranch: %v, %v", b, err)
	}
	if c, err := d.CentralBranch(ctx); err != nil || c.ID != 1 {
		t.Fatalf("CentralBranch: %v, %v", c, err)
	}
	if n := branchCalls.Load(); n != 1 {
		t.Errorf("branches fetched %d times, want 1 (cached)", n)
	}

	products, err := d.GetProducts(ctx, []int{1, 2})
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	p, ok := products[1]
	if !ok || !p.IsActive || p.UnitCost.String() != "2.5" {
		t.Errorf("product 1: got %+v", p)
	}
	if _, ok := products[2]; ok {
		t.Error("product 2 should be absent")
	}
}

func TestHTTP_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
	}))
	defer srv.Close()

	d := NewHTTP(config.DirectoryConfig{BaseURL: srv.URL, Timeout: time.Second})
	if _, err := d.ListBranches(context.Background()); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
