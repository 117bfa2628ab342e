package repl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"branch-supply/internal/app"
	"branch-supply/internal/core"
)

// newOrder runs an interactive order request.
func (s *session) newOrder() error {
	dest, err := s.prompt("Destination branch id: ")
	if err != nil {
		return err
	}
	destID, err := strconv.Atoi(dest)
	if err != nil {
		return fmt.Errorf("invalid branch id %q", dest)
	}

	s.println("Enter order lines. Type 'done' when finished, 'cancel' to abort.")
	s.println("Format per line: <product-id> <quantity>")

	var lines []app.OrderLineInput
read:
	for n := 1; ; {
		raw, err := s.prompt(fmt.Sprintf("  Line %d: ", n))
		if err != nil {
			return err
		}
		switch strings.ToLower(raw) {
		case "cancel":
			s.println("Order request cancelled.")
			return nil
		case "done":
			break read
		case "":
			continue
		}
		parts := strings.Fields(raw)
		if len(parts) != 2 {
			s.println("  Invalid format. Use: <product-id> <quantity>")
			continue
		}
		productID, err1 := strconv.Atoi(parts[0])
		qty, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || qty <= 0 {
			s.println("  Product id and a positive quantity are required.")
			continue
		}
		lines = append(lines, app.OrderLineInput{ProductID: productID, QuantityOrdered: qty})
		n++
	}

	if len(lines) == 0 {
		s.println("No lines entered. Order not created.")
		return nil
	}
	note, err := s.prompt("Note (optional): ")
	if err != nil {
		return err
	}

	res, err := s.svc.CreateOrder(s.ctx, s.caller, app.CreateOrderRequest{
		DestinationBranchID: destID,
		Note:                note,
		Items:               lines,
	})
	if err != nil {
		return err
	}
	s.printf("\nOrder #%d requested (status %s).\n", res.Order.ID, res.Order.Status)
	return nil
}

// receive walks the caller through confirming an in-transit order. Every
// line starts fully received; the caller lowers the short ones.
func (s *session) receive(id int) error {
	res, err := s.svc.GetOrder(s.ctx, s.caller, id)
	if err != nil {
		return err
	}
	po := res.Order
	if po.Status != core.StatusInTransit {
		return fmt.Errorf("order #%d is %s, only IN_TRANSIT orders can be received", po.ID, po.Status)
	}

	byNumber := make(map[int]core.OrderLine, len(po.Lines))
	for _, l := range po.Lines {
		byNumber[l.LineNumber] = l
	}
	plan := core.NewReceiptPlan(po)

	s.printPlan(po, plan)
	s.println("Set a line with '<line> <qty>', 'all' for everything, 'none' for nothing,")
	s.println("'done' to continue, 'cancel' to abort.")
	for {
		raw, err := s.prompt("  receive> ")
		if err != nil {
			return err
		}
		switch strings.ToLower(raw) {
		case "":
			continue
		case "cancel":
			s.println("Receipt cancelled.")
			return nil
		case "all":
			plan.SetAllToCap()
			s.printPlan(po, plan)
			continue
		case "none":
			plan.SetAllToZero()
			s.printPlan(po, plan)
			continue
		case "done":
			return s.finishReceipt(po, plan)
		}

		parts := strings.Fields(raw)
		if len(parts) != 2 {
			s.println("  Use: <line> <qty>")
			continue
		}
		num, err1 := strconv.Atoi(parts[0])
		qty, err2 := strconv.Atoi(parts[1])
		line, ok := byNumber[num]
		if err1 != nil || err2 != nil || !ok {
			s.println("  Unknown line or invalid quantity.")
			continue
		}
		got, err := plan.Set(line.ID, qty)
		if err != nil {
			return err
		}
		if got != qty {
			s.printf("  Line %d clamped to %d.\n", num, got)
		}
	}
}

func (s *session) finishReceipt(po *core.PurchaseOrder, plan *core.ReceiptPlan) error {
	items := make([]app.ReceiveItem, 0, len(po.Lines))
	for _, it := range plan.Items() {
		items = append(items, app.ReceiveItem{LineID: it.LineID, QuantityReceived: it.QuantityReceived})
	}

	suggested, err := s.svc.SuggestReceiveNote(s.ctx, s.caller, app.SuggestNoteRequest{OrderID: po.ID, Items: items})
	if err != nil {
		return err
	}
	s.printPlan(po, plan)
	s.printf("Suggested note: %s\n", suggested.Note)
	note, err := s.prompt("Receive note (Enter to accept, '-' for none): ")
	if err != nil {
		return err
	}
	switch note {
	case "":
		note = suggested.Note
	case "-":
		note = ""
	}

	choice, err := s.prompt("Confirm receipt? (y/n): ")
	if err != nil {
		return err
	}
	if c := strings.ToLower(choice); c != "y" && c != "yes" {
		s.println("Receipt cancelled.")
		return nil
	}

	res, err := s.svc.ConfirmOrder(s.ctx, s.caller, app.ConfirmOrderRequest{
		OrderID:        po.ID,
		ReceiveNote:    note,
		Items:          items,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			return fmt.Errorf("order #%d changed while you were receiving it: %w", po.ID, err)
		}
		return err
	}
	s.printf("Order #%d CONFIRMED: %d of %d units received.\n", res.Order.ID, res.Order.TotalReceived(), res.Order.TotalOrdered())
	return nil
}
