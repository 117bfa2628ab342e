package core

import "fmt"

// Out-of-range shipped and received quantities are clamped into range, never
// rejected. Unknown line ids are ErrNotFound; a line id repeated within one
// request is a validation error.

// ShipCap is the most that can be shipped on a line.
func ShipCap(l OrderLine) int { return l.QuantityOrdered }

// ResolveShipped returns the shipped quantity for a line: the ordered quantity
// when requested is nil, otherwise requested clamped into [0, ordered].
func ResolveShipped(l OrderLine, requested *int) int {
	if requested == nil {
		return ShipCap(l)
	}
	return clamp(*requested, 0, ShipCap(l))
}

// ReceiveCap is the most that can be received on a line: min(ordered, shipped)
// once something was shipped, the ordered quantity otherwise.
func ReceiveCap(l OrderLine) int {
	if l.QuantityShipped > 0 {
		return min(l.QuantityOrdered, l.QuantityShipped)
	}
	return l.QuantityOrdered
}

// ClampReceived clamps requested into [0, ReceiveCap(l)].
func ClampReceived(l OrderLine, requested int) int {
	return clamp(requested, 0, ReceiveCap(l))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReceiptPlan holds the received quantity the caller intends to confirm for
// each line of an order. Every line starts at its cap.
type ReceiptPlan struct {
	lines map[int]OrderLine
	order []int
	qty   map[int]int
}

// NewReceiptPlan builds a plan with every line preset to its cap.
func NewReceiptPlan(po *PurchaseOrder) *ReceiptPlan {
	p := &ReceiptPlan{
		lines: make(map[int]OrderLine, len(po.Lines)),
		qty:   make(map[int]int, len(po.Lines)),
	}
	for _, l := range po.Lines {
		p.lines[l.ID] = l
		p.order = append(p.order, l.ID)
	}
	p.SetAllToCap()
	return p
}

// Set stores the clamped received quantity for one line and returns the value
// actually stored.
func (p *ReceiptPlan) Set(lineID, qty int) (int, error) {
	l, ok := p.lines[lineID]
	if !ok {
		return 0, fmt.Errorf("order line %d: %w", lineID, ErrNotFound)
	}
	v := ClampReceived(l, qty)
	p.qty[lineID] = v
	return v, nil
}

// Get returns the planned quantity of a line.
func (p *ReceiptPlan) Get(lineID int) (int, bool) {
	v, ok := p.qty[lineID]
	return v, ok
}

// SetAllToCap marks every line fully received.
func (p *ReceiptPlan) SetAllToCap() {
	for id, l := range p.lines {
		p.qty[id] = ReceiveCap(l)
	}
}

// SetAllToZero marks every line as not received.
func (p *ReceiptPlan) SetAllToZero() {
	for id := range p.lines {
		p.qty[id] = 0
	}
}

// Items returns the plan as confirm input, in line order.
func (p *ReceiptPlan) Items() []ReceiveLineInput {
	out := make([]ReceiveLineInput, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, ReceiveLineInput{LineID: id, QuantityReceived: p.qty[id]})
	}
	return out
}

// Discrepancy is a line where less was received than ordered.
type Discrepancy struct {
	LineID      int
	ProductID   int
	ProductName string
	Unit        string
	Ordered     int
	Shipped     int
	Received    int
}

// Missing is ordered minus received.
func (d Discrepancy) Missing() int { return d.Ordered - d.Received }

// Discrepancies lists the lines of a confirmed order where received < ordered.
func Discrepancies(po *PurchaseOrder) []Discrepancy {
	var out []Discrepancy
	for _, l := range po.Lines {
		if l.QuantityReceived >= l.QuantityOrdered {
			continue
		}
		out = append(out, Discrepancy{
			LineID:      l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Unit:        l.Unit,
			Ordered:     l.QuantityOrdered,
			Shipped:     l.QuantityShipped,
			Received:    l.QuantityReceived,
		})
	}
	return out
}

// applyShipment sets shipped quantities on po. Lines not mentioned ship their
// ordered quantity.
func applyShipment(po *PurchaseOrder, items []ShipLineInput) error {
	requested, err := indexShipItems(po, items)
	if err != nil {
		return err
	}
	for i := range po.Lines {
		l := &po.Lines[i]
		var req *int
		if v, ok := requested[l.ID]; ok {
			req = &v
		}
		l.QuantityShipped = ResolveShipped(*l, req)
	}
	return nil
}

// applyReceipt sets received quantities on po through a ReceiptPlan. Lines not
// mentioned are received at their cap.
func applyReceipt(po *PurchaseOrder, items []ReceiveLineInput) error {
	plan := NewReceiptPlan(po)
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.LineID]; dup {
			return invalid("items", "line %d appears more than once", it.LineID)
		}
		seen[it.LineID] = struct{}{}
		if _, err := plan.Set(it.LineID, it.QuantityReceived); err != nil {
			return err
		}
	}
	for i := range po.Lines {
		v, _ := plan.Get(po.Lines[i].ID)
		po.Lines[i].QuantityReceived = v
	}
	return nil
}

func indexShipItems(po *PurchaseOrder, items []ShipLineInput) (map[int]int, error) {
	out := make(map[int]int, len(items))
	for _, it := range items {
		if _, dup := out[it.LineID]; dup {
			return nil, invalid("items", "line %d appears more than once", it.LineID)
		}
		if _, ok := po.Line(it.LineID); !ok {
			return nil, fmt.Errorf("order line %d: %w", it.LineID, ErrNotFound)
		}
		out[it.LineID] = it.QuantityShipped
	}
	return out, nil
}
