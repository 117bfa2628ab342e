package core

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	StatusCreated   OrderStatus = "CREATED"
	StatusInTransit OrderStatus = "IN_TRANSIT"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is accepted.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusInTransit, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// LegacyCode returns the numeric status used by older clients
// (1 pending, 2 received, 3 cancelled, 4 in transit).
func (s OrderStatus) LegacyCode() int {
	switch s {
	case StatusCreated:
		return 1
	case StatusConfirmed:
		return 2
	case StatusCancelled:
		return 3
	case StatusInTransit:
		return 4
	}
	return 0
}

// ParseStatus accepts canonical names, older aliases ("pending", "received")
// and the legacy numeric codes.
func ParseStatus(s string) (OrderStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	switch v {
	case "CREATED", "PENDING", "1":
		return StatusCreated, nil
	case "IN_TRANSIT", "INTRANSIT", "SHIPPED", "4":
		return StatusInTransit, nil
	case "CONFIRMED", "RECEIVED", "2":
		return StatusConfirmed, nil
	case "CANCELLED", "CANCELED", "3":
		return StatusCancelled, nil
	}
	return "", invalid("status", "unknown status %q", s)
}

// PurchaseOrder is a supply request from the central branch to a destination branch.
type PurchaseOrder struct {
	ID                    int
	OriginBranchID        int
	OriginBranchName      string
	DestinationBranchID   int
	DestinationBranchName string
	Status                OrderStatus
	Note                  *string
	ShipNote              *string
	ReceiveNote           *string
	CreatedBy             int
	CreatedAt             time.Time
	ShippedAt             *time.Time
	ConfirmedAt           *time.Time
	CancelledAt           *time.Time
	// LastTransitionKey is the idempotency key of the transition that produced Status.
	LastTransitionKey *string
	Version           int
	Lines             []OrderLine
	Evidence          []Evidence
}

// Line returns a pointer to the line with the given id.
func (po *PurchaseOrder) Line(id int) (*OrderLine, bool) {
	for i := range po.Lines {
		if po.Lines[i].ID == id {
			return &po.Lines[i], true
		}
	}
	return nil, false
}

// TotalOrdered sums ordered quantities.
func (po *PurchaseOrder) TotalOrdered() int {
	n := 0
	for _, l := range po.Lines {
		n += l.QuantityOrdered
	}
	return n
}

// TotalShipped sums shipped quantities.
func (po *PurchaseOrder) TotalShipped() int {
	n := 0
	for _, l := range po.Lines {
		n += l.QuantityShipped
	}
	return n
}

// TotalReceived sums received quantities.
func (po *PurchaseOrder) TotalReceived() int {
	n := 0
	for _, l := range po.Lines {
		n += l.QuantityReceived
	}
	return n
}

// TotalCost is Σ ordered × unit cost.
func (po *PurchaseOrder) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range po.Lines {
		total = total.Add(l.LineCost())
	}
	return total
}

// Summary returns the list row of the order.
func (po *PurchaseOrder) Summary() OrderSummary {
	return OrderSummary{
		ID:                    po.ID,
		OriginBranchID:        po.OriginBranchID,
		DestinationBranchID:   po.DestinationBranchID,
		DestinationBranchName: po.DestinationBranchName,
		Status:                po.Status,
		Note:                  cloneString(po.Note),
		ReceiveNote:           cloneString(po.ReceiveNote),
		CreatedAt:             po.CreatedAt,
		ShippedAt:             cloneTime(po.ShippedAt),
		ConfirmedAt:           cloneTime(po.ConfirmedAt),
		ItemsCount:            len(po.Lines),
		TotalOrdered:          po.TotalOrdered(),
		TotalShipped:          po.TotalShipped(),
		TotalReceived:         po.TotalReceived(),
		TotalCost:             po.TotalCost(),
	}
}

// Clone returns a deep copy.
func (po *PurchaseOrder) Clone() *PurchaseOrder {
	c := *po
	c.Note = cloneString(po.Note)
	c.ShipNote = cloneString(po.ShipNote)
	c.ReceiveNote = cloneString(po.ReceiveNote)
	c.LastTransitionKey = cloneString(po.LastTransitionKey)
	c.ShippedAt = cloneTime(po.ShippedAt)
	c.ConfirmedAt = cloneTime(po.ConfirmedAt)
	c.CancelledAt = cloneTime(po.CancelledAt)
	c.Lines = append([]OrderLine(nil), po.Lines...)
	c.Evidence = append([]Evidence(nil), po.Evidence...)
	return &c
}

// OrderLine is one product entry on a purchase order.
type OrderLine struct {
	ID               int
	OrderID          int
	LineNumber       int
	ProductID        int
	SKU              string
	ProductName      string
	Unit             string
	UnitCost         decimal.Decimal
	QuantityOrdered  int
	QuantityShipped  int
	QuantityReceived int
}

// LineCost is ordered × unit cost.
func (l OrderLine) LineCost() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.QuantityOrdered)))
}

// Evidence is a proof-of-delivery file attached to a confirmed order.
type Evidence struct {
	ID          int
	OrderID     int
	FileName    string
	ContentType string
	SizeBytes   int64
	Checksum    string
	StorageKey  string
	UploadedBy  int
	UploadedAt  time.Time
	URL         string
}

// EvidenceURL is the retrieval path of an evidence file.
func EvidenceURL(orderID int, fileName string) string {
	return "/api/purchase-orders/" + strconv.Itoa(orderID) + "/evidence/" + url.PathEscape(fileName)
}

// OrderSummary is a list row; it never carries line bodies.
type OrderSummary struct {
	ID                    int
	OriginBranchID        int
	DestinationBranchID   int
	DestinationBranchName string
	Status                OrderStatus
	Note                  *string
	ReceiveNote           *string
	CreatedAt             time.Time
	ShippedAt             *time.Time
	ConfirmedAt           *time.Time
	ItemsCount            int
	TotalOrdered          int
	TotalShipped          int
	TotalReceived         int
	TotalCost             decimal.Decimal
}

// Event names a lifecycle transition.
type Event string

const (
	EventCreate  Event = "CREATE"
	EventShip    Event = "SHIP"
	EventConfirm Event = "CONFIRM"
	EventCancel  Event = "CANCEL"
)

// OrderEvent is one audit-trail entry.
type OrderEvent struct {
	ID         int
	OrderID    int
	Event      Event
	FromStatus *OrderStatus
	ToStatus   OrderStatus
	ActorID    int
	Note       *string
	At         time.Time
}

// CreateOrderInput is the input for creating an order.
type CreateOrderInput struct {
	DestinationBranchID int
	Note                string
	Lines               []CreateLineInput
}

// CreateLineInput is one requested product. A zero UnitCost means "use the
// catalog cost".
type CreateLineInput struct {
	ProductID       int
	QuantityOrdered int
	UnitCost        decimal.Decimal
}

// ShipInput is the input for shipping an order. A nil Lines slice ships every
// line at its ordered quantity.
type ShipInput struct {
	OrderID        int
	ShipNote       string
	Lines          []ShipLineInput
	IdempotencyKey string
}

// ShipLineInput sets the shipped quantity of one line.
type ShipLineInput struct {
	LineID          int
	QuantityShipped int
}

// ConfirmInput is the input for confirming receipt. A nil Lines slice receives
// every line at its cap.
type ConfirmInput struct {
	OrderID        int
	ReceiveNote    string
	Lines          []ReceiveLineInput
	IdempotencyKey string
}

// ReceiveLineInput sets the received quantity of one line.
type ReceiveLineInput struct {
	LineID           int
	QuantityReceived int
}

// CancelInput is the input for cancelling an order.
type CancelInput struct {
	OrderID        int
	IdempotencyKey string
}

// ListFilter is the caller-facing listing filter. BranchID is a hint that is
// re-validated against the actor's access context.
type ListFilter struct {
	Status   *OrderStatus
	BranchID *int
	Limit    int
	Offset   int
}

// RepoFilter is the storage-level filter. A nil BranchIDs means every branch.
type RepoFilter struct {
	Status    *OrderStatus
	BranchIDs []int
	Limit     int
	Offset    int
}

// PurchaseOrderService runs the purchase-order lifecycle. Every call is scoped
// by the caller's AccessContext.
type PurchaseOrderService interface {
	// CreateOrder creates a CREATED order shipping from the central branch to
	// in.DestinationBranchID.
	CreateOrder(ctx context.Context, ac *AccessContext, in CreateOrderInput) (*PurchaseOrder, error)

	// ShipOrder moves a CREATED order to IN_TRANSIT. Admin only.
	ShipOrder(ctx context.Context, ac *AccessContext, in ShipInput) (*PurchaseOrder, error)

	// ConfirmOrder moves an IN_TRANSIT order to CONFIRMED, recording received
	// quantities clamped to each line's cap.
	ConfirmOrder(ctx context.Context, ac *AccessContext, in ConfirmInput) (*PurchaseOrder, error)

	// ReceiveOrder is the older name of ConfirmOrder.
	ReceiveOrder(ctx context.Context, ac *AccessContext, in ConfirmInput) (*PurchaseOrder, error)

	// CancelOrder moves a CREATED order to CANCELLED. Admin only.
	CancelOrder(ctx context.Context, ac *AccessContext, in CancelInput) (*PurchaseOrder, error)

	GetOrder(ctx context.Context, ac *AccessContext, id int) (*PurchaseOrder, error)
	GetOrderHistory(ctx context.Context, ac *AccessContext, id int) ([]OrderEvent, error)
}

// OrderRepository is the durable store of purchase orders.
type OrderRepository interface {
	// Create persists a new order with its lines, assigning ids and CreatedAt,
	// and records the creation event.
	Create(ctx context.Context, po *PurchaseOrder, ev OrderEvent) error

	// Get returns an order with lines and evidence, or ErrNotFound.
	Get(ctx context.Context, id int) (*PurchaseOrder, error)

	// Update runs fn against the locked current state of the order. Changes
	// made by fn are persisted together with the returned event in one atomic
	// step. When fn returns an error nothing is written; when it returns a nil
	// event the order is returned unchanged.
	Update(ctx context.Context, id int, fn func(po *PurchaseOrder) (*OrderEvent, error)) (*PurchaseOrder, error)

	// List returns summaries, newest first.
	List(ctx context.Context, f RepoFilter) ([]OrderSummary, error)

	// CountByStatus counts orders without loading their bodies.
	CountByStatus(ctx context.Context, status OrderStatus, branchIDs []int) (int, error)

	// Events returns the audit trail of an order, oldest first.
	Events(ctx context.Context, orderID int) ([]OrderEvent, error)

	AddEvidence(ctx context.Context, e *Evidence) error
	ListEvidence(ctx context.Context, orderID int) ([]Evidence, error)
	GetEvidence(ctx context.Context, orderID int, fileName string) (*Evidence, error)
	// DeleteEvidence removes the evidence row and returns it, or ErrNotFound.
	DeleteEvidence(ctx context.Context, orderID int, fileName string) (*Evidence, error)
	// EvidenceStorageKeys returns every storage key referenced by an evidence row.
	EvidenceStorageKeys(ctx context.Context) (map[string]struct{}, error)
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Key     string
	ModTime time.Time
}

// BlobStore holds evidence file contents under opaque keys.
type BlobStore interface {
	// Put stores data and returns its checksum.
	Put(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]BlobInfo, error)
}

// EventPublisher fans out lifecycle events. Publishing never fails the caller.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev OrderEvent, po *PurchaseOrder)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(context.Context, OrderEvent, *PurchaseOrder) {}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func optionalNote(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func statusPtr(s OrderStatus) *OrderStatus { return &s }

func orderNotFound(id int) error {
	return fmt.Errorf("purchase order %d: %w", id, ErrNotFound)
}
