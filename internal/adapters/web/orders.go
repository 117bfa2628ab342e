package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"branch-supply/internal/app"
	"branch-supply/internal/core"
)

type lineJSON struct {
	ID               int             `json:"id"`
	LineNumber       int             `json:"lineNumber"`
	ProductID        int             `json:"productId"`
	SKU              string          `json:"sku"`
	ProductName      string          `json:"productName"`
	Unit             string          `json:"unit"`
	UnitCost         decimal.Decimal `json:"unitCost"`
	LineCost         decimal.Decimal `json:"lineCost"`
	QuantityOrdered  int             `json:"quantityOrdered"`
	QuantityShipped  int             `json:"quantityShipped"`
	QuantityReceived int             `json:"quantityReceived"`
	ReceiveCap       int             `json:"receiveCap"`
}

type evidenceJSON struct {
	ID          int       `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Checksum    string    `json:"checksum"`
	UploadedBy  int       `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
	URL         string    `json:"url"`
}

type orderJSON struct {
	ID                    int              `json:"id"`
	OriginBranchID        int              `json:"originBranchId"`
	OriginBranchName      string           `json:"originBranchName"`
	DestinationBranchID   int              `json:"destinationBranchId"`
	DestinationBranchName string           `json:"destinationBranchName"`
	Status                core.OrderStatus `json:"status"`
	StatusCode            int              `json:"statusCode"`
	Note                  *string          `json:"note"`
	ShipNote              *string          `json:"shipNote"`
	ReceiveNote           *string          `json:"receiveNote"`
	CreatedBy             int              `json:"createdBy"`
	CreatedAt             time.Time        `json:"createdAt"`
	ShippedAt             *time.Time       `json:"shippedAt"`
	ConfirmedAt           *time.Time       `json:"confirmedAt"`
	CancelledAt           *time.Time       `json:"cancelledAt"`
	Version               int              `json:"version"`
	TotalOrdered          int              `json:"totalOrdered"`
	TotalShipped          int              `json:"totalShipped"`
	TotalReceived         int              `json:"totalReceived"`
	TotalCost             decimal.Decimal  `json:"totalCost"`
	Items                 []lineJSON       `json:"items"`
	Evidence              []evidenceJSON   `json:"evidence"`
	AllowedActions        []core.Event     `json:"allowedActions"`
}

type summaryJSON struct {
	ID                    int              `json:"id"`
	OriginBranchID        int              `json:"originBranchId"`
	DestinationBranchID   int              `json:"destinationBranchId"`
	DestinationBranchName string           `json:"destinationBranchName"`
	Status                core.OrderStatus `json:"status"`
	StatusCode            int              `json:"statusCode"`
	Note                  *string          `json:"note"`
	ReceiveNote           *string          `json:"receiveNote"`
	CreatedAt             time.Time        `json:"createdAt"`
	ShippedAt             *time.Time       `json:"shippedAt"`
	ConfirmedAt           *time.Time       `json:"confirmedAt"`
	ItemsCount            int              `json:"itemsCount"`
	TotalOrdered          int              `json:"totalOrdered"`
	TotalShipped          int              `json:"totalShipped"`
	TotalReceived         int              `json:"totalReceived"`
	TotalCost             decimal.Decimal  `json:"totalCost"`
}

type listJSON struct {
	Items  []summaryJSON `json:"items"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type eventJSON struct {
	ID      int               `json:"id"`
	Event   core.Event        `json:"event"`
	From    *core.OrderStatus `json:"from"`
	To      core.OrderStatus  `json:"to"`
	ActorID int               `json:"actorId"`
	Note    *string           `json:"note"`
	At      time.Time         `json:"at"`
}

func toEvidenceJSON(in []core.Evidence) []evidenceJSON {
	out := make([]evidenceJSON, 0, len(in))
	for _, e := range in {
		out = append(out, evidenceJSON{
			ID:          e.ID,
			FileName:    e.FileName,
			ContentType: e.ContentType,
			SizeBytes:   e.SizeBytes,
			Checksum:    e.Checksum,
			UploadedBy:  e.UploadedBy,
			UploadedAt:  e.UploadedAt,
			URL:         core.EvidenceURL(e.OrderID, e.FileName),
		})
	}
	return out
}

func toOrderJSON(res *app.OrderResult) orderJSON {
	po := res.Order
	out := orderJSON{
		ID:                    po.ID,
		OriginBranchID:        po.OriginBranchID,
		OriginBranchName:      po.OriginBranchName,
		DestinationBranchID:   po.DestinationBranchID,
		DestinationBranchName: po.DestinationBranchName,
		Status:                po.Status,
		StatusCode:            po.Status.LegacyCode(),
		Note:                  po.Note,
		ShipNote:              po.ShipNote,
		ReceiveNote:           po.ReceiveNote,
		CreatedBy:             po.CreatedBy,
		CreatedAt:             po.CreatedAt,
		ShippedAt:             po.ShippedAt,
		ConfirmedAt:           po.ConfirmedAt,
		CancelledAt:           po.CancelledAt,
		Version:               po.Version,
		TotalOrdered:          po.TotalOrdered(),
		TotalShipped:          po.TotalShipped(),
		TotalReceived:         po.TotalReceived(),
		TotalCost:             po.TotalCost(),
		Items:                 make([]lineJSON, 0, len(po.Lines)),
		Evidence:              toEvidenceJSON(po.Evidence),
		AllowedActions:        res.AllowedEvents,
	}
	if out.AllowedActions == nil {
		out.AllowedActions = []core.Event{}
	}
	for _, l := range po.Lines {
		out.Items = append(out.Items, lineJSON{
			ID:               l.ID,
			LineNumber:       l.LineNumber,
			ProductID:        l.ProductID,
			SKU:              l.SKU,
			ProductName:      l.ProductName,
			Unit:             l.Unit,
			UnitCost:         l.UnitCost,
			LineCost:         l.LineCost(),
			QuantityOrdered:  l.QuantityOrdered,
			QuantityShipped:  l.QuantityShipped,
			QuantityReceived: l.QuantityReceived,
			ReceiveCap:       core.ReceiveCap(l),
		})
	}
	return out
}

func toListJSON(res *app.OrderListResult) listJSON {
	out := listJSON{Items: make([]summaryJSON, 0, len(res.Orders)), Limit: res.Limit, Offset: res.Offset}
	for _, s := range res.Orders {
		out.Items = append(out.Items, summaryJSON{
			ID:                    s.ID,
			OriginBranchID:        s.OriginBranchID,
			DestinationBranchID:   s.DestinationBranchID,
			DestinationBranchName: s.DestinationBranchName,
			Status:                s.Status,
			StatusCode:            s.Status.LegacyCode(),
			Note:                  s.Note,
			ReceiveNote:           s.ReceiveNote,
			CreatedAt:             s.CreatedAt,
			ShippedAt:             s.ShippedAt,
			ConfirmedAt:           s.ConfirmedAt,
			ItemsCount:            s.ItemsCount,
			TotalOrdered:          s.TotalOrdered,
			TotalShipped:          s.TotalShipped,
			TotalReceived:         s.TotalReceived,
			TotalCost:             s.TotalCost,
		})
	}
	return out
}

// createOrder handles POST /api/purchase-orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req app.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateOrder(r.Context(), c, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/purchase-orders/"+strconv.Itoa(res.Order.ID))
	writeJSONStatus(w, http.StatusCreated, struct {
		ID int `json:"id"`
	}{res.Order.ID})
}

// listOrders handles GET /api/purchase-orders?status=&branchId=&limit=&offset=.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListOrders)
}

// listMyOrders handles GET /api/purchase-orders/mine.
func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListMyOrders)
}

type listCall func(ctx context.Context, c app.Caller, req app.ListOrdersRequest) (*app.OrderListResult, error)

func (h *Handler) list(w http.ResponseWriter, r *http.Request, call listCall) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req := app.ListOrdersRequest{Status: r.URL.Query().Get("status")}
	if req.BranchID, err = queryInt(r, "branchId"); err != nil {
		h.fail(w, r, err)
		return
	}
	for name, dst := range map[string]*int{"limit": &req.Limit, "offset": &req.Offset} {
		v, err := queryInt(r, name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if v != nil {
			*dst = *v
		}
	}
	res, err := call(r.Context(), c, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toListJSON(res))
}

// pendingCount handles GET /api/purchase-orders/pending-count?branchId=.
func (h *Handler) pendingCount(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	branchID, err := queryInt(r, "branchId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.PendingCount(r.Context(), c, branchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, struct {
		Count     int `json:"count"`
		InTransit int `json:"inTransit"`
	}{res.Count, res.InTransit})
}

// getOrder handles GET /api/purchase-orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetOrder(r.Context(), c, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toOrderJSON(res))
}

// orderHistory handles GET /api/purchase-orders/{id}/history.
func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetOrderHistory(r.Context(), c, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]eventJSON, 0, len(res.Events))
	for _, e := range res.Events {
		out = append(out, eventJSON{ID: e.ID, Event: e.Event, From: e.FromStatus, To: e.ToStatus, ActorID: e.ActorID, Note: e.Note, At: e.At})
	}
	writeJSON(w, out)
}

// shipOrder handles POST /api/purchase-orders/{id}/ship.
// Body (optional): { shipNote, items: [{ lineId, quantityShipped }] }
func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req app.ShipOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrderID, req.IdempotencyKey = id, idempotencyKey(r)
	res, err := h.svc.ShipOrder(r.Context(), c, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toOrderJSON(res))
}

// confirmOrder handles POST /api/purchase-orders/{id}/confirm.
// Body (optional): { receiveNote, items: [{ lineId, quantityReceived }] }
func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, h.svc.ConfirmOrder)
}

// receiveOrder handles POST /api/purchase-orders/{id}/receive, the older name of confirm.
func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, h.svc.ReceiveOrder)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, call func(context.Context, app.Caller, app.ConfirmOrderRequest) (*app.OrderResult, error)) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req app.ConfirmOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrderID, req.IdempotencyKey = id, idempotencyKey(r)
	res, err := call(r.Context(), c, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toOrderJSON(res))
}

// cancelOrder handles POST /api/purchase-orders/{id}/cancel.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.CancelOrder(r.Context(), c, app.CancelOrderRequest{OrderID: id, IdempotencyKey: idempotencyKey(r)})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toOrderJSON(res))
}

// suggestReceiveNote handles POST /api/purchase-orders/{id}/receive-note/suggest.
func (h *Handler) suggestReceiveNote(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	var req app.SuggestNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.OrderID = id
	res, err := h.svc.SuggestReceiveNote(r.Context(), c, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	type discrepancyJSON struct {
		LineID      int    `json:"lineId"`
		ProductName string `json:"productName"`
		Unit        string `json:"unit"`
		Ordered     int    `json:"ordered"`
		Shipped     int    `json:"shipped"`
		Received    int    `json:"received"`
		Missing     int    `json:"missing"`
	}
	lines := make([]discrepancyJSON, 0, len(res.Discrepancies))
	for _, d := range res.Discrepancies {
		lines = append(lines, discrepancyJSON{d.LineID, d.ProductName, d.Unit, d.Ordered, d.Shipped, d.Received, d.Missing()})
	}
	highlights := res.Highlights
	if highlights == nil {
		highlights = []string{}
	}
	writeJSON(w, struct {
		Note          string            `json:"note"`
		Highlights    []string          `json:"highlights"`
		Generated     bool              `json:"generated"`
		Discrepancies []discrepancyJSON `json:"discrepancies"`
	}{res.Note, highlights, res.Generated, lines})
}

func (h *Handler) callerAndID(w http.ResponseWriter, r *http.Request) (app.Caller, int, bool) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return app.Caller{}, 0, false
	}
	id, err := orderID(r)
	if err != nil {
		h.fail(w, r, err)
		return app.Caller{}, 0, false
	}
	return c, id, true
}
