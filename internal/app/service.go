package app

import (
	"context"
	"io"
	"time"

	"branch-supply/internal/core"
)

// Caller identifies who is making a request. Only the user id is trusted; the
// role and branches are reloaded for every call. BranchHint is the requested
// active branch and is re-validated against the user's assignments.
type Caller struct {
	UserID     int
	BranchHint *int
}

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// Login verifies credentials and returns the resolved identity.
	Login(ctx context.Context, username, password string) (*SessionResult, error)

	// Me returns the caller's identity, active branch and visible branches.
	Me(ctx context.Context, c Caller) (*SessionResult, error)

	// ListBranches returns the active branches the caller may act on.
	ListBranches(ctx context.Context, c Caller) (*BranchListResult, error)

	CreateOrder(ctx context.Context, c Caller, req CreateOrderRequest) (*OrderResult, error)
	GetOrder(ctx context.Context, c Caller, orderID int) (*OrderResult, error)
	GetOrderHistory(ctx context.Context, c Caller, orderID int) (*HistoryResult, error)

	// ListOrders lists orders for the caller's active branch (Admin: all unless narrowed).
	ListOrders(ctx context.Context, c Caller, req ListOrdersRequest) (*OrderListResult, error)

	// ListMyOrders lists orders for every branch assigned to the caller.
	ListMyOrders(ctx context.Context, c Caller, req ListOrdersRequest) (*OrderListResult, error)

	PendingCount(ctx context.Context, c Caller, branchID *int) (*PendingCountResult, error)

	ShipOrder(ctx context.Context, c Caller, req ShipOrderRequest) (*OrderResult, error)
	ConfirmOrder(ctx context.Context, c Caller, req ConfirmOrderRequest) (*OrderResult, error)

	// ReceiveOrder is kept for older clients and runs ConfirmOrder.
	ReceiveOrder(ctx context.Context, c Caller, req ConfirmOrderRequest) (*OrderResult, error)

	CancelOrder(ctx context.Context, c Caller, req CancelOrderRequest) (*OrderResult, error)

	// SuggestReceiveNote drafts a receive note from the quantities the caller
	// is about to confirm. Nothing is persisted.
	SuggestReceiveNote(ctx context.Context, c Caller, req SuggestNoteRequest) (*ReceiveNoteResult, error)

	UploadEvidence(ctx context.Context, c Caller, orderID int, files []core.EvidenceFile) (*core.UploadResult, error)
	ListEvidence(ctx context.Context, c Caller, orderID int) ([]core.Evidence, error)
	// OpenEvidence returns the file content; the caller closes the reader.
	OpenEvidence(ctx context.Context, c Caller, orderID int, fileName string) (*core.Evidence, io.ReadCloser, error)
	DeleteEvidence(ctx context.Context, c Caller, orderID int, fileName string) error

	// SweepOrphanedEvidence removes unreferenced blobs older than minAge.
	SweepOrphanedEvidence(ctx context.Context, minAge time.Duration) (int, error)

	// InTransitDigest summarises orders shipped before the cutoff and not yet received.
	InTransitDigest(ctx context.Context, shippedBefore time.Time) (*DigestResult, error)
}
