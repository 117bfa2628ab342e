package repl

import (
	"strings"

	"branch-supply/internal/core"
)

// printPlan shows the receipt being prepared next to what was ordered and shipped.
func (s *session) printPlan(po *core.PurchaseOrder, plan *core.ReceiptPlan) {
	s.println()
	s.println(strings.Repeat("-", 70))
	s.printf("  RECEIVING ORDER #%d  %s -> %s\n", po.ID, po.OriginBranchName, po.DestinationBranchName)
	s.println(strings.Repeat("-", 70))
	s.printf("  %-5s %-30s %7s %7s %7s %8s\n", "LINE", "PRODUCT", "ORDERED", "SHIPPED", "CAP", "RECEIVE")
	s.println(strings.Repeat("-", 70))
	for _, l := range po.Lines {
		qty, _ := plan.Get(l.ID)
		mark := ""
		if qty < l.QuantityOrdered {
			mark = "  short"
		}
		s.printf("  %-5d %-30s %7d %7d %7d %8d%s\n",
			l.LineNumber, l.ProductName, l.QuantityOrdered, l.QuantityShipped, core.ReceiveCap(l), qty, mark)
	}
	s.println(strings.Repeat("-", 70))
}

func (s *session) printHelp() {
	s.println()
	s.println("BRANCH SUPPLY - COMMANDS")
	s.println(strings.Repeat("=", 62))
	s.println()
	s.println("  PURCHASE ORDERS")
	s.println("  /orders [status]           List orders of the active branch")
	s.println("  /mine                      List orders of all your branches")
	s.println("  /pending                   Orders awaiting shipment / receipt")
	s.println("  /show <id>                 Order detail")
	s.println("  /new-order                 Request goods from the central branch (interactive)")
	s.println("  /ship <id>                 Ship the full ordered quantities (Admin)")
	s.println("  /receive <id>              Confirm receipt line by line (interactive)")
	s.println("  /cancel <id>               Cancel an order (Admin)")
	s.println()
	s.println("  SESSION")
	s.println("  /branches                  Branches you can act on")
	s.println("  /branch <id>               Switch the active branch")
	s.println("  /help                      Show this help")
	s.println("  /exit                      Exit")
	s.println(strings.Repeat("=", 62))
}
