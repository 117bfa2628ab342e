package migrations

import (
	"strings"
	"testing"
)

func TestNamesSorted(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("names: %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("not sorted: %v", names)
		}
	}
}

func TestChecksumStable(t *testing.T) {
	body, err := FS.ReadFile("001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	a, b := Checksum(body), Checksum(append([]byte(nil), body...))
	if a != b || len(a) != 64 {
		t.Fatalf("checksum %q vs %q", a, b)
	}
	if Checksum(append(body, '\n')) == a {
		t.Error("checksum ignores content change")
	}
}

func TestInitSchemaHasCoreTables(t *testing.T) {
	body, err := FS.ReadFile("001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"branches", "products", "users", "purchase_orders", "purchase_order_lines", "purchase_order_evidence", "order_events"} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("missing table %s", table)
		}
	}
}
