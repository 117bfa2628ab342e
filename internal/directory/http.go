package directory

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"branch-supply/internal/config"
	"branch-supply/internal/core"
)

// HTTP is a resty-backed client of the surrounding application's branch and
// product endpoints. Branch lists are cached for CacheTTL.
type HTTP struct {
	client *resty.Client
	ttl    time.Duration

	mu        sync.Mutex
	cached    []core.Branch
	fetchedAt time.Time
	now       func() time.Time
}

// NewHTTP builds a directory client using the provided configuration values.
func NewHTTP(cfg config.DirectoryConfig) *HTTP {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	if cfg.APIToken != "" {
		c.SetAuthToken(cfg.APIToken)
	}
	return &HTTP{client: c, ttl: cfg.CacheTTL, now: time.Now}
}

var (
	_ core.BranchDirectory = (*HTTP)(nil)
	_ core.ProductCatalog  = (*HTTP)(nil)
)

type branchDTO struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"isActive"`
	IsCentral bool   `json:"isCentral"`
}

type productDTO struct {
	ID       int             `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	UnitCost decimal.Decimal `json:"unitCost"`
	IsActive *bool           `json:"isActive"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (d *HTTP) ListBranches(ctx context.Context) ([]core.Branch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached != nil && d.ttl > 0 && d.now().Sub(d.fetchedAt) < d.ttl {
		return append([]core.Branch(nil), d.cached...), nil
	}

	var body []branchDTO
	apiErr := new(apiError)
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(apiErr).
		Get("/api/branches")
	if err != nil {
		return nil, fmt.Errorf("fetch branches: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("directory api error: status=%d, message=%s", resp.StatusCode(), apiErr.text())
	}

	out := make([]core.Branch, 0, len(body))
	for _, b := range body {
		out = append(out, core.Branch{ID: b.ID, Name: b.Name, IsActive: b.IsActive, IsCentral: b.IsCentral})
	}
	d.cached = out
	d.fetchedAt = d.now()
	return append([]core.Branch(nil), out...), nil
}

func (d *HTTP) GetBranch(ctx context.Context, id int) (*core.Branch, error) {
	all, err := d.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("branch %d: %w", id, core.ErrNotFound)
}

func (d *HTTP) CentralBranch(ctx context.Context) (*core.Branch, error) {
	all, err := d.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	return pickCentral(all)
}

func (d *HTTP) GetProducts(ctx context.Context, ids []int) (map[int]core.Product, error) {
	out := make(map[int]core.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}

	var body []productDTO
	apiErr := new(apiError)
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("ids", strings.Join(parts, ",")).
		SetResult(&body).
		SetError(apiErr).
		Get("/api/products")
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("catalog api error: status=%d, message=%s", resp.StatusCode(), apiErr.text())
	}

	for _, p := range body {
		active := true
		if p.IsActive != nil {
			active = *p.IsActive
		}
		out[p.ID] = core.Product{ID: p.ID, SKU: p.SKU, Name: p.Name, Unit: p.Unit, UnitCost: p.UnitCost, IsActive: active}
	}
	return out, nil
}

func (e *apiError) text() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
