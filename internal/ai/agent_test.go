package ai

import (
	"strings"
	"testing"

	"branch-supply/internal/core"
)

func TestDraftReceiveNote(t *testing.T) {
	po := &core.PurchaseOrder{ID: 12, DestinationBranchName: "Norte"}

	complete := DraftReceiveNote(po, nil)
	if complete.Note != "All items received complete." || complete.Generated {
		t.Errorf("complete order: %+v", complete)
	}

	short := DraftReceiveNote(po, []core.Discrepancy{
		{ProductName: "Rice 5kg", Unit: "bag", Ordered: 10, Shipped: 8, Received: 7},
		{ProductName: "Oil 1L", Unit: "bottle", Ordered: 4, Shipped: 0, Received: 0},
	})
	if len(short.Highlights) != 2 {
		t.Fatalf("highlights: %v", short.Highlights)
	}
	for _, want := range []string{"Rice 5kg: 3 bag missing", "Oil 1L: 4 bottle missing"} {
		if !strings.Contains(short.Note, want) {
			t.Errorf("note %q does not mention %q", short.Note, want)
		}
	}
}

func TestSchemaMap_StrictShape(t *testing.T) {
	m, err := SchemaMap(ReceiveNoteSuggestion{})
	if err != nil {
		t.Fatalf("SchemaMap: %v", err)
	}
	if m["additionalProperties"] != false {
		t.Errorf("additionalProperties: %v", m["additionalProperties"])
	}
	props, _ := m["properties"].(map[string]any)
	if _, ok := props["note"]; !ok {
		t.Errorf("note property missing: %v", props)
	}
	if _, ok := props["Generated"]; ok {
		t.Error("internal field leaked into schema")
	}
	required, _ := m["required"].([]any)
	if len(required) != 3 {
		t.Errorf("required: %v", required)
	}
}
