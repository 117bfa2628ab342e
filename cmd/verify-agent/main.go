// verify-agent asks the configured model for a receive note on a sample
// shortfall and prints it next to the deterministic draft.
//
// Usage: go run ./cmd/verify-agent [--model gpt-4o-mini]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"branch-supply/internal/ai"
	"branch-supply/internal/core"
)

func main() {
	_ = godotenv.Load() // Load .env if present
	model := pflag.String("model", os.Getenv("OPENAI_MODEL"), "model to query")
	pflag.Parse()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	po := &core.PurchaseOrder{
		ID:                    42,
		OriginBranchName:      "Central Warehouse",
		DestinationBranchName: "North Branch",
		Status:                core.StatusInTransit,
		Lines: []core.OrderLine{
			{ID: 1, LineNumber: 1, ProductID: 1, SKU: "RICE-5", ProductName: "Rice 5kg", Unit: "bag",
				UnitCost: decimal.RequireFromString("12.50"), QuantityOrdered: 10, QuantityShipped: 10, QuantityReceived: 8},
			{ID: 2, LineNumber: 2, ProductID: 2, SKU: "OIL-1", ProductName: "Sunflower oil 1L", Unit: "bottle",
				UnitCost: decimal.RequireFromString("3.20"), QuantityOrdered: 12, QuantityShipped: 9, QuantityReceived: 9},
			{ID: 3, LineNumber: 3, ProductID: 3, SKU: "FLOUR-1", ProductName: "Wheat flour 1kg", Unit: "bag",
				UnitCost: decimal.RequireFromString("1.85"), QuantityOrdered: 5, QuantityShipped: 5, QuantityReceived: 5},
		},
	}
	lines := core.Discrepancies(po)

	fmt.Printf("DRAFT: %s\n", ai.DraftReceiveNote(po, lines).Note)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	suggestion, err := ai.NewAgent(apiKey, *model).SuggestReceiveNote(ctx, po, lines)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\n--- SUGGESTION ---\n")
	fmt.Printf("Confidence: %.2f\n", suggestion.Confidence)
	fmt.Printf("Note: %s\n", suggestion.Note)
	for _, h := range suggestion.Highlights {
		fmt.Printf("- %s\n", h)
	}
}
