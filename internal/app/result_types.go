package app

import (
	"time"

	"branch-supply/internal/core"
)

// SessionResult is returned by Login and Me.
type SessionResult struct {
	Identity     core.Identity
	ActiveBranch int
	Branches     []core.Branch
}

// BranchListResult is returned by ListBranches.
type BranchListResult struct {
	Branches []core.Branch
}

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.PurchaseOrder
	// AllowedEvents lists the transitions the caller could apply next.
	AllowedEvents []core.Event
}

// OrderListResult is returned by ListOrders and ListMyOrders.
type OrderListResult struct {
	Orders []core.OrderSummary
	Limit  int
	Offset int
}

// HistoryResult is returned by GetOrderHistory.
type HistoryResult struct {
	OrderID int
	Events  []core.OrderEvent
}

// PendingCountResult is returned by PendingCount.
type PendingCountResult struct {
	Count     int
	InTransit int
}

// ReceiveNoteResult is returned by SuggestReceiveNote.
type ReceiveNoteResult struct {
	Note          string
	Highlights    []string
	Generated     bool
	Discrepancies []core.Discrepancy
}

// DigestResult is returned by InTransitDigest.
type DigestResult struct {
	Cutoff   time.Time
	Orders   []core.OrderSummary
	ByBranch map[int]int
}
