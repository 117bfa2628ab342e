package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"branch-supply/internal/ai"
	"branch-supply/internal/core"
)

type appService struct {
	identity core.IdentityService
	orders   core.PurchaseOrderService
	query    core.QueryService
	evidence core.EvidenceService
	branches core.BranchDirectory
	drafter  ai.NoteDrafter
	log      zerolog.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// drafter may be nil, in which case receive notes are drafted without a model.
func NewAppService(
	identity core.IdentityService,
	orders core.PurchaseOrderService,
	query core.QueryService,
	evidence core.EvidenceService,
	branches core.BranchDirectory,
	drafter ai.NoteDrafter,
	log zerolog.Logger,
) ApplicationService {
	return &appService{
		identity: identity,
		orders:   orders,
		query:    query,
		evidence: evidence,
		branches: branches,
		drafter:  drafter,
		log:      log.With().Str("component", "app").Logger(),
	}
}

// access reloads the caller's identity and applies the branch hint.
func (s *appService) access(ctx context.Context, c Caller) (*core.AccessContext, error) {
	id, err := s.identity.Resolve(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	ac, err := core.NewAccessContext(*id)
	if err != nil {
		return nil, err
	}
	if c.BranchHint != nil {
		if err := ac.SetActiveBranch(*c.BranchHint); err != nil {
			return nil, err
		}
	}
	return ac, nil
}

func (s *appService) Login(ctx context.Context, username, password string) (*SessionResult, error) {
	id, err := s.identity.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	ac, err := core.NewAccessContext(*id)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("user_id", id.UserID).Str("role", string(id.Role)).Msg("login")
	return s.session(ctx, ac)
}

func (s *appService) Me(ctx context.Context, c Caller) (*SessionResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.session(ctx, ac)
}

func (s *appService) session(ctx context.Context, ac *core.AccessContext) (*SessionResult, error) {
	branches, err := s.visibleBranches(ctx, ac)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Identity: ac.Identity(), ActiveBranch: ac.ActiveBranch(), Branches: branches}, nil
}

func (s *appService) ListBranches(ctx context.Context, c Caller) (*BranchListResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	branches, err := s.visibleBranches(ctx, ac)
	if err != nil {
		return nil, err
	}
	return &BranchListResult{Branches: branches}, nil
}

func (s *appService) visibleBranches(ctx context.Context, ac *core.AccessContext) ([]core.Branch, error) {
	all, err := s.branches.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]core.Branch, 0, len(all))
	for _, b := range all {
		if b.IsActive && ac.CanActOn(b.ID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *appService) CreateOrder(ctx context.Context, c Caller, req CreateOrderRequest) (*OrderResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	lines := make([]core.CreateLineInput, len(req.Items))
	for i, l := range req.Items {
		lines[i] = core.CreateLineInput{
			ProductID:       l.ProductID,
			QuantityOrdered: l.QuantityOrdered,
			UnitCost:        l.UnitCost,
		}
	}
	po, err := s.orders.CreateOrder(ctx, ac, core.CreateOrderInput{
		DestinationBranchID: req.DestinationBranchID,
		Note:                req.Note,
		Lines:               lines,
	})
	if err != nil {
		return nil, err
	}
	return orderResult(ac, po), nil
}

func (s *appService) GetOrder(ctx context.Context, c Caller, orderID int) (*OrderResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	po, err := s.orders.GetOrder(ctx, ac, orderID)
	if err != nil {
		return nil, err
	}
	return orderResult(ac, po), nil
}

func (s *appService) GetOrderHistory(ctx context.Context, c Caller, orderID int) (*HistoryResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	events, err := s.orders.GetOrderHistory(ctx, ac, orderID)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{OrderID: orderID, Events: events}, nil
}

func (s *appService) ListOrders(ctx context.Context, c Caller, req ListOrdersRequest) (*OrderListResult, error) {
	return s.list(ctx, c, req, s.query.ListOrders)
}

func (s *appService) ListMyOrders(ctx context.Context, c Caller, req ListOrdersRequest) (*OrderListResult, error) {
	return s.list(ctx, c, req, s.query.ListMyOrders)
}

type listFunc func(context.Context, *core.AccessContext, core.ListFilter) ([]core.OrderSummary, error)

func (s *appService) list(ctx context.Context, c Caller, req ListOrdersRequest, fn listFunc) (*OrderListResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	f := core.ListFilter{BranchID: req.BranchID, Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" {
		st, err := core.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}
	rows, err := fn(ctx, ac, f)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = core.DefaultPageSize
	}
	return &OrderListResult{Orders: rows, Limit: min(limit, core.MaxPageSize), Offset: max(req.Offset, 0)}, nil
}

func (s *appService) PendingCount(ctx context.Context, c Caller, branchID *int) (*PendingCountResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	counts, err := s.query.PendingCount(ctx, ac, branchID)
	if err != nil {
		return nil, err
	}
	return &PendingCountResult{Count: counts.Count, InTransit: counts.InTransit}, nil
}

func (s *appService) ShipOrder(ctx context.Context, c Caller, req ShipOrderRequest) (*OrderResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	var lines []core.ShipLineInput
	if req.Items != nil {
		lines = make([]core.ShipLineInput, len(req.Items))
		for i, it := range req.Items {
			lines[i] = core.ShipLineInput{LineID: it.LineID, QuantityShipped: it.QuantityShipped}
		}
	}
	po, err := s.orders.ShipOrder(ctx, ac, core.ShipInput{
		OrderID:        req.OrderID,
		ShipNote:       req.ShipNote,
		Lines:          lines,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return orderResult(ac, po), nil
}

func (s *appService) ConfirmOrder(ctx context.Context, c Caller, req ConfirmOrderRequest) (*OrderResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	po, err := s.orders.ConfirmOrder(ctx, ac, core.ConfirmInput{
		OrderID:        req.OrderID,
		ReceiveNote:    req.ReceiveNote,
		Lines:          receiveLines(req.Items),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return orderResult(ac, po), nil
}

func (s *appService) ReceiveOrder(ctx context.Context, c Caller, req ConfirmOrderRequest) (*OrderResult, error) {
	return s.ConfirmOrder(ctx, c, req)
}

func receiveLines(items []ReceiveItem) []core.ReceiveLineInput {
	if items == nil {
		return nil
	}
	out := make([]core.ReceiveLineInput, len(items))
	for i, it := range items {
		out[i] = core.ReceiveLineInput{LineID: it.LineID, QuantityReceived: it.QuantityReceived}
	}
	return out
}

func (s *appService) CancelOrder(ctx context.Context, c Caller, req CancelOrderRequest) (*OrderResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	po, err := s.orders.CancelOrder(ctx, ac, core.CancelInput{OrderID: req.OrderID, IdempotencyKey: req.IdempotencyKey})
	if err != nil {
		return nil, err
	}
	return orderResult(ac, po), nil
}

func (s *appService) SuggestReceiveNote(ctx context.Context, c Caller, req SuggestNoteRequest) (*ReceiveNoteResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	po, err := s.orders.GetOrder(ctx, ac, req.OrderID)
	if err != nil {
		return nil, err
	}

	switch po.Status {
	case core.StatusInTransit:
		plan := core.NewReceiptPlan(po)
		for _, it := range req.Items {
			if _, err := plan.Set(it.LineID, it.QuantityReceived); err != nil {
				return nil, err
			}
		}
		for i := range po.Lines {
			po.Lines[i].QuantityReceived, _ = plan.Get(po.Lines[i].ID)
		}
	case core.StatusConfirmed:
	default:
		return nil, fmt.Errorf("purchase order %d is %s, nothing to receive: %w", po.ID, po.Status, core.ErrWrongState)
	}

	lines := core.Discrepancies(po)
	suggestion := ai.DraftReceiveNote(po, lines)
	if s.drafter != nil && len(lines) > 0 {
		generated, err := s.drafter.SuggestReceiveNote(ctx, po, lines)
		if err != nil {
			s.log.Warn().Err(err).Int("order_id", po.ID).Msg("receive note model call failed, using plain draft")
		} else {
			suggestion = generated
		}
	}

	if lines == nil {
		lines = []core.Discrepancy{}
	}
	return &ReceiveNoteResult{
		Note:          suggestion.Note,
		Highlights:    suggestion.Highlights,
		Generated:     suggestion.Generated,
		Discrepancies: lines,
	}, nil
}

func (s *appService) UploadEvidence(ctx context.Context, c Caller, orderID int, files []core.EvidenceFile) (*core.UploadResult, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.evidence.Upload(ctx, ac, orderID, files)
}

func (s *appService) ListEvidence(ctx context.Context, c Caller, orderID int) ([]core.Evidence, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.evidence.List(ctx, ac, orderID)
}

func (s *appService) OpenEvidence(ctx context.Context, c Caller, orderID int, fileName string) (*core.Evidence, io.ReadCloser, error) {
	ac, err := s.access(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return s.evidence.Open(ctx, ac, orderID, fileName)
}

func (s *appService) DeleteEvidence(ctx context.Context, c Caller, orderID int, fileName string) error {
	ac, err := s.access(ctx, c)
	if err != nil {
		return err
	}
	return s.evidence.Delete(ctx, ac, orderID, fileName)
}

func (s *appService) SweepOrphanedEvidence(ctx context.Context, minAge time.Duration) (int, error) {
	return s.evidence.SweepOrphans(ctx, minAge)
}

// digestPageSize bounds one digest page; the digest pages until exhausted.
const digestPageSize = core.MaxPageSize

func (s *appService) InTransitDigest(ctx context.Context, shippedBefore time.Time) (*DigestResult, error) {
	system, err := core.NewAccessContext(core.Identity{Username: "scheduler", Role: core.RoleAdmin})
	if err != nil {
		return nil, err
	}
	inTransit := core.StatusInTransit
	res := &DigestResult{Cutoff: shippedBefore, Orders: []core.OrderSummary{}, ByBranch: map[int]int{}}
	for offset := 0; ; offset += digestPageSize {
		rows, err := s.query.ListOrders(ctx, system, core.ListFilter{Status: &inTransit, Limit: digestPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.ShippedAt == nil || !r.ShippedAt.Before(shippedBefore) {
				continue
			}
			res.Orders = append(res.Orders, r)
			res.ByBranch[r.DestinationBranchID]++
		}
		if len(rows) < digestPageSize {
			break
		}
	}
	return res, nil
}

func orderResult(ac *core.AccessContext, po *core.PurchaseOrder) *OrderResult {
	allowed := []core.Event{}
	for _, ev := range core.AllowedEvents(po.Status) {
		switch ev {
		case core.EventShip, core.EventCancel:
			if !ac.IsAdmin() {
				continue
			}
		}
		allowed = append(allowed, ev)
	}
	return &OrderResult{Order: po, AllowedEvents: allowed}
}
