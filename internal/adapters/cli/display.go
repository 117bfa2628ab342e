package cli

import (
	"fmt"
	"io"
	"strings"

	"branch-supply/internal/core"
)

// PrintOrders writes a list of orders as a fixed-width table.
func PrintOrders(w io.Writer, orders []core.OrderSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 84))
	fmt.Fprintf(w, "  %-6s %-18s %-11s %7s %7s %7s %12s  %s\n",
		"ID", "DESTINATION", "STATUS", "ORDERED", "SHIPPED", "RECVD", "COST", "CREATED")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	if len(orders) == 0 {
		fmt.Fprintln(w, "  No orders found.")
	}
	for _, o := range orders {
		fmt.Fprintf(w, "  %-6d %-18s %-11s %7d %7d %7d %12s  %s\n",
			o.ID, truncate(o.DestinationBranchName, 18), o.Status,
			o.TotalOrdered, o.TotalShipped, o.TotalReceived,
			o.TotalCost.StringFixed(2), o.CreatedAt.Format("2006-01-02"))
	}
	fmt.Fprintln(w, strings.Repeat("=", 84))
}

// PrintOrder writes one order with its lines and evidence.
func PrintOrder(w io.Writer, po *core.PurchaseOrder) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  Order:       #%d\n", po.ID)
	fmt.Fprintf(w, "  Route:       %s -> %s\n", po.OriginBranchName, po.DestinationBranchName)
	fmt.Fprintf(w, "  Status:      %s\n", po.Status)
	fmt.Fprintf(w, "  Created:     %s\n", po.CreatedAt.Format("2006-01-02 15:04"))
	if po.ShippedAt != nil {
		fmt.Fprintf(w, "  Shipped:     %s\n", po.ShippedAt.Format("2006-01-02 15:04"))
	}
	if po.ConfirmedAt != nil {
		fmt.Fprintf(w, "  Confirmed:   %s\n", po.ConfirmedAt.Format("2006-01-02 15:04"))
	}
	if po.CancelledAt != nil {
		fmt.Fprintf(w, "  Cancelled:   %s\n", po.CancelledAt.Format("2006-01-02 15:04"))
	}
	for _, n := range []struct {
		label string
		text  *string
	}{{"Note", po.Note}, {"Ship note", po.ShipNote}, {"Receive note", po.ReceiveNote}} {
		if n.text != nil {
			fmt.Fprintf(w, "  %-12s %s\n", n.label+":", *n.text)
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-5s %-6s %-26s %7s %7s %7s %10s\n", "LINE", "ID", "PRODUCT", "ORDERED", "SHIPPED", "RECVD", "COST")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, l := range po.Lines {
		fmt.Fprintf(w, "  %-5d %-6d %-26s %7d %7d %7d %10s\n",
			l.LineNumber, l.ID, truncate(l.ProductName, 26),
			l.QuantityOrdered, l.QuantityShipped, l.QuantityReceived, l.LineCost().StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-39s %7d %7d %7d %10s\n", "TOTAL",
		po.TotalOrdered(), po.TotalShipped(), po.TotalReceived(), po.TotalCost().StringFixed(2))
	if len(po.Evidence) > 0 {
		fmt.Fprintln(w, "  Evidence:")
		for _, e := range po.Evidence {
			fmt.Fprintf(w, "    %s (%s, %d bytes)\n", e.FileName, e.ContentType, e.SizeBytes)
		}
	}
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "~"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
