package cli_test

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"branch-supply/internal/adapters/cli"
	"branch-supply/internal/app"
	"branch-supply/internal/core"
	"branch-supply/internal/directory"
	"branch-supply/internal/storage"
	"branch-supply/internal/store/memory"
)

func newService(t *testing.T) app.ApplicationService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := memory.New()
	store.PutUser(core.User{ID: 1, Username: "boss", PasswordHash: string(hash), Role: "ADMIN", IsActive: true})
	primary := 7
	store.PutUser(core.User{ID: 2, Username: "ana", PasswordHash: string(hash), Role: "STAFF", PrimaryBranchID: &primary, IsActive: true}, 7)
	dir := directory.NewStatic(
		[]core.Branch{{ID: 1, Name: "Matriz", IsActive: true, IsCentral: true}, {ID: 7, Name: "Norte", IsActive: true}},
		[]core.Product{{ID: 1, SKU: "RICE-5", Name: "Rice 5kg", Unit: "bag", UnitCost: decimal.RequireFromString("12.50"), IsActive: true}},
	)
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return app.NewAppService(
		core.NewIdentityService(store),
		core.NewPurchaseOrderService(store, dir, dir),
		core.NewQueryService(store),
		core.NewEvidenceService(store, blobs),
		dir, nil, zerolog.Nop(),
	)
}

func run(t *testing.T, svc app.ApplicationService, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.Run(context.Background(), svc, args, &out)
	return out.String(), err
}

func TestRun_Lifecycle(t *testing.T) {
	svc := newService(t)
	res, err := svc.CreateOrder(context.Background(), app.Caller{UserID: 2}, app.CreateOrderRequest{
		DestinationBranchID: 7,
		Items:               []app.OrderLineInput{{ProductID: 1, QuantityOrdered: 6}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	id := strconv.Itoa(res.Order.ID)
	lineID := strconv.Itoa(res.Order.Lines[0].ID)

	out, err := run(t, svc, "list", "--user", "ana", "--password", "pw")
	if err != nil || !strings.Contains(out, "Norte") || !strings.Contains(out, "CREATED") {
		t.Fatalf("list: %v\n%s", err, out)
	}

	if _, err := run(t, svc, "ship", id, "--user", "ana", "--password", "pw"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("staff ship: want ErrUnauthorized, got %v", err)
	}

	out, err = run(t, svc, "ship", id, "-u", "boss", "--password", "pw", "-n", "van 2")
	if err != nil || !strings.Contains(out, "IN_TRANSIT") || !strings.Contains(out, "van 2") {
		t.Fatalf("ship: %v\n%s", err, out)
	}

	out, err = run(t, svc, "suggest", id, "-u", "ana", "--password", "pw", "-i", lineID+"=4")
	if err != nil || !strings.Contains(out, "2 bag missing") {
		t.Errorf("suggest: %v\n%s", err, out)
	}

	out, err = run(t, svc, "confirm", id, "-u", "ana", "--password", "pw", "-i", lineID+"=4", "--json")
	if err != nil || !strings.Contains(out, `"Status": "CONFIRMED"`) {
		t.Fatalf("confirm: %v\n%s", err, out)
	}

	out, err = run(t, svc, "history", id, "-u", "ana", "--password", "pw")
	if err != nil || strings.Count(out, "\n") != 4 {
		t.Errorf("history: %v\n%s", err, out)
	}

	out, err = run(t, svc, "pending", "-u", "boss", "--password", "pw")
	if err != nil || !strings.Contains(out, "awaiting shipment: 0") {
		t.Errorf("pending: %v\n%s", err, out)
	}
}

func TestRun_Errors(t *testing.T) {
	svc := newService(t)

	if _, err := run(t, svc); err == nil {
		t.Error("no command: expected an error")
	}
	if _, err := run(t, svc, "list"); err == nil {
		t.Error("missing --user: expected an error")
	}
	if _, err := run(t, svc, "list", "-u", "ana", "--password", "bad"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("bad password: want ErrUnauthorized, got %v", err)
	}
	if _, err := run(t, svc, "frobnicate", "-u", "ana", "--password", "pw"); err == nil {
		t.Error("unknown command: expected an error")
	}
	if _, err := run(t, svc, "show", "-u", "ana", "--password", "pw"); err == nil {
		t.Error("show without id: expected an error")
	}
	if _, err := run(t, svc, "confirm", "1", "-u", "ana", "--password", "pw", "-i", "oops"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad item: want ErrValidation, got %v", err)
	}
	if _, err := run(t, svc, "list", "-u", "ana", "--password", "pw", "-b", "99"); !errors.Is(err, core.ErrInvalidBranch) {
		t.Errorf("foreign branch: want ErrInvalidBranch, got %v", err)
	}
}
