package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type purchaseOrderService struct {
	repo      OrderRepository
	branches  BranchDirectory
	catalog   ProductCatalog
	log       zerolog.Logger
	publisher EventPublisher
	opts      serviceOptions
}

// NewPurchaseOrderService constructs a PurchaseOrderService over the given
// repository and read-only collaborators.
func NewPurchaseOrderService(repo OrderRepository, branches BranchDirectory, catalog ProductCatalog, opts ...ServiceOption) PurchaseOrderService {
	o := defaultOptions(opts)
	return &purchaseOrderService{
		repo:      repo,
		branches:  branches,
		catalog:   catalog,
		log:       o.logger.With().Str("component", "purchase_orders").Logger(),
		publisher: o.publisher,
		opts:      o,
	}
}

// CreateOrder validates the request against the caller's branches, the branch
// directory and the product catalog, then persists a CREATED order with
// shipped and received quantities at zero.
func (s *purchaseOrderService) CreateOrder(ctx context.Context, ac *AccessContext, in CreateOrderInput) (*PurchaseOrder, error) {
	if in.DestinationBranchID <= 0 {
		return nil, invalid("destinationBranchId", "a concrete destination branch is required")
	}
	if len(in.Lines) == 0 {
		return nil, invalid("items", "purchase order must have at least one line")
	}

	productIDs := make([]int, 0, len(in.Lines))
	seen := make(map[int]struct{}, len(in.Lines))
	for i, l := range in.Lines {
		field := fmt.Sprintf("items[%d]", i)
		if l.ProductID <= 0 {
			return nil, invalid(field+".productId", "product is required")
		}
		if l.QuantityOrdered <= 0 {
			return nil, invalid(field+".quantityOrdered", "must be greater than zero, got %d", l.QuantityOrdered)
		}
		if l.UnitCost.IsNegative() {
			return nil, invalid(field+".unitCost", "must not be negative")
		}
		if _, dup := seen[l.ProductID]; dup {
			return nil, invalid(field+".productId", "product %d is listed more than once", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		productIDs = append(productIDs, l.ProductID)
	}

	if err := ac.RequireBranch(in.DestinationBranchID); err != nil {
		return nil, err
	}

	dest, err := s.branches.GetBranch(ctx, in.DestinationBranchID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("destinationBranchId", "branch %d does not exist", in.DestinationBranchID)
		}
		return nil, fmt.Errorf("resolve destination branch: %w", err)
	}
	if !dest.IsActive {
		return nil, invalid("destinationBranchId", "branch %d is not active", dest.ID)
	}

	origin, err := s.branches.CentralBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve central branch: %w", err)
	}
	if origin.ID == dest.ID {
		return nil, invalid("destinationBranchId", "the central branch cannot order from itself")
	}

	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	now := s.opts.now()
	po := &PurchaseOrder{
		OriginBranchID:        origin.ID,
		OriginBranchName:      origin.Name,
		DestinationBranchID:   dest.ID,
		DestinationBranchName: dest.Name,
		Status:                StatusCreated,
		Note:                  optionalNote(in.Note),
		CreatedBy:             ac.UserID(),
		CreatedAt:             now,
	}
	for i, l := range in.Lines {
		p, ok := products[l.ProductID]
		if !ok || !p.IsActive {
			return nil, invalid(fmt.Sprintf("items[%d].productId", i), "product %d not found", l.ProductID)
		}
		cost := l.UnitCost
		if cost.IsZero() {
			cost = p.UnitCost
		}
		po.Lines = append(po.Lines, OrderLine{
			LineNumber:      i + 1,
			ProductID:       p.ID,
			SKU:             p.SKU,
			ProductName:     p.Name,
			Unit:            p.Unit,
			UnitCost:        cost.Round(4),
			QuantityOrdered: l.QuantityOrdered,
		})
	}

	ev := OrderEvent{
		Event:    EventCreate,
		ToStatus: StatusCreated,
		ActorID:  ac.UserID(),
		Note:     po.Note,
		At:       now,
	}
	if err := s.repo.Create(ctx, po, ev); err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	ev.OrderID = po.ID

	s.log.Info().
		Int("order_id", po.ID).
		Int("destination_branch_id", po.DestinationBranchID).
		Int("lines", len(po.Lines)).
		Int("actor_id", ac.UserID()).
		Msg("purchase order created")
	s.publisher.PublishOrderEvent(ctx, ev, po)
	return po, nil
}

// ShipOrder records shipped quantities. Omitted lines ship their ordered quantity.
func (s *purchaseOrderService) ShipOrder(ctx context.Context, ac *AccessContext, in ShipInput) (*PurchaseOrder, error) {
	if err := ac.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.transition(ctx, ac, in.OrderID, EventShip, in.IdempotencyKey, func(po *PurchaseOrder, now time.Time) error {
		if err := applyShipment(po, in.Lines); err != nil {
			return err
		}
		po.ShipNote = optionalNote(in.ShipNote)
		po.ShippedAt = &now
		return nil
	})
}

// ConfirmOrder is the single implementation behind both confirm and receive.
func (s *purchaseOrderService) ConfirmOrder(ctx context.Context, ac *AccessContext, in ConfirmInput) (*PurchaseOrder, error) {
	return s.transition(ctx, ac, in.OrderID, EventConfirm, in.IdempotencyKey, func(po *PurchaseOrder, now time.Time) error {
		if err := applyReceipt(po, in.Lines); err != nil {
			return err
		}
		po.ReceiveNote = optionalNote(in.ReceiveNote)
		po.ConfirmedAt = &now
		return nil
	})
}

func (s *purchaseOrderService) ReceiveOrder(ctx context.Context, ac *AccessContext, in ConfirmInput) (*PurchaseOrder, error) {
	return s.ConfirmOrder(ctx, ac, in)
}

func (s *purchaseOrderService) CancelOrder(ctx context.Context, ac *AccessContext, in CancelInput) (*PurchaseOrder, error) {
	if err := ac.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.transition(ctx, ac, in.OrderID, EventCancel, in.IdempotencyKey, func(po *PurchaseOrder, now time.Time) error {
		po.CancelledAt = &now
		return nil
	})
}

// transition applies ev to the order under the repository's row lock. A retry
// carrying the idempotency key that produced the current state is a no-op.
func (s *purchaseOrderService) transition(ctx context.Context, ac *AccessContext, id int, ev Event, key string,
	apply func(po *PurchaseOrder, now time.Time) error) (*PurchaseOrder, error) {

	if id <= 0 {
		return nil, invalid("id", "order id must be positive")
	}
	key = strings.TrimSpace(key)

	var emitted *OrderEvent
	po, err := s.repo.Update(ctx, id, func(po *PurchaseOrder) (*OrderEvent, error) {
		emitted = nil
		if err := ac.RequireBranch(po.DestinationBranchID); err != nil {
			return nil, err
		}

		if key != "" && po.LastTransitionKey != nil && *po.LastTransitionKey == key {
			if target, ok := eventTarget[ev]; ok && po.Status == target {
				return nil, nil
			}
		}

		from := po.Status
		to, err := NextStatus(from, ev)
		if err != nil {
			return nil, fmt.Errorf("purchase order %d: %w", po.ID, err)
		}

		now := s.opts.now()
		if err := apply(po, now); err != nil {
			return nil, err
		}
		po.Status = to
		po.LastTransitionKey = nil
		if key != "" {
			po.LastTransitionKey = &key
		}

		e := &OrderEvent{
			OrderID:    po.ID,
			Event:      ev,
			FromStatus: statusPtr(from),
			ToStatus:   to,
			ActorID:    ac.UserID(),
			Note:       transitionNote(po, ev),
			At:         now,
		}
		emitted = e
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	if emitted == nil {
		s.log.Debug().Int("order_id", id).Str("event", string(ev)).Str("idempotency_key", key).
			Msg("transition already applied")
		return po, nil
	}

	s.log.Info().
		Int("order_id", po.ID).
		Str("event", string(ev)).
		Str("from", string(*emitted.FromStatus)).
		Str("to", string(emitted.ToStatus)).
		Int("actor_id", ac.UserID()).
		Msg("purchase order transition")
	s.publisher.PublishOrderEvent(ctx, *emitted, po)
	return po, nil
}

var eventTarget = map[Event]OrderStatus{
	EventShip:    StatusInTransit,
	EventConfirm: StatusConfirmed,
	EventCancel:  StatusCancelled,
}

func transitionNote(po *PurchaseOrder, ev Event) *string {
	switch ev {
	case EventShip:
		return cloneString(po.ShipNote)
	case EventConfirm:
		return cloneString(po.ReceiveNote)
	}
	return nil
}

// GetOrder returns the full order. Orders outside the caller's branches are
// ErrUnauthorized, never an empty result.
func (s *purchaseOrderService) GetOrder(ctx context.Context, ac *AccessContext, id int) (*PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ac.RequireBranch(po.DestinationBranchID); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *purchaseOrderService) GetOrderHistory(ctx context.Context, ac *AccessContext, id int) ([]OrderEvent, error) {
	if _, err := s.GetOrder(ctx, ac, id); err != nil {
		return nil, err
	}
	events, err := s.repo.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history of purchase order %d: %w", id, err)
	}
	return events, nil
}
