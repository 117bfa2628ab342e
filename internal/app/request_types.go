package app

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the body of a create call.
type CreateOrderRequest struct {
	DestinationBranchID int              `json:"destinationBranchId" jsonschema:"minimum=1"`
	Note                string           `json:"note,omitempty"`
	Items               []OrderLineInput `json:"items" jsonschema:"minItems=1"`
}

// UnmarshalJSON also accepts the older "branchId" name for the destination.
func (r *CreateOrderRequest) UnmarshalJSON(data []byte) error {
	type plain CreateOrderRequest
	var aux struct {
		plain
		BranchID int `json:"branchId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = CreateOrderRequest(aux.plain)
	if r.DestinationBranchID == 0 {
		r.DestinationBranchID = aux.BranchID
	}
	return nil
}

// OrderLineInput is a single line within a CreateOrderRequest.
type OrderLineInput struct {
	ProductID       int             `json:"productId" jsonschema:"minimum=1"`
	QuantityOrdered int             `json:"quantityOrdered" jsonschema:"minimum=1"`
	UnitCost        decimal.Decimal `json:"unitCost,omitempty" jsonschema:"type=string,description=zero means use the catalog cost"`
}

// ListOrdersRequest carries the optional list filters. Status accepts the
// canonical names, the older aliases and the numeric codes.
type ListOrdersRequest struct {
	Status   string
	BranchID *int
	Limit    int
	Offset   int
}

// ShipOrderRequest is the body of a ship call. Lines without an item ship
// their ordered quantity.
type ShipOrderRequest struct {
	OrderID        int        `json:"-"`
	ShipNote       string     `json:"shipNote,omitempty"`
	Items          []ShipItem `json:"items,omitempty"`
	IdempotencyKey string     `json:"-"`
}

// ShipItem sets the shipped quantity of one line.
type ShipItem struct {
	LineID          int `json:"lineId"`
	QuantityShipped int `json:"quantityShipped"`
}

// ConfirmOrderRequest is the body of a confirm or receive call. Lines without
// an item are received at their cap.
type ConfirmOrderRequest struct {
	OrderID        int           `json:"-"`
	ReceiveNote    string        `json:"receiveNote,omitempty"`
	Items          []ReceiveItem `json:"items,omitempty"`
	IdempotencyKey string        `json:"-"`
}

// ReceiveItem sets the received quantity of one line.
type ReceiveItem struct {
	LineID           int `json:"lineId"`
	QuantityReceived int `json:"quantityReceived"`
}

// UnmarshalJSON also accepts the older "itemId" name for the line.
func (it *ReceiveItem) UnmarshalJSON(data []byte) error {
	type plain ReceiveItem
	var aux struct {
		plain
		ItemID int `json:"itemId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*it = ReceiveItem(aux.plain)
	if it.LineID == 0 {
		it.LineID = aux.ItemID
	}
	return nil
}

// CancelOrderRequest identifies the order to cancel.
type CancelOrderRequest struct {
	OrderID        int
	IdempotencyKey string
}

// SuggestNoteRequest carries the receipt the caller intends to confirm.
type SuggestNoteRequest struct {
	OrderID int           `json:"-"`
	Items   []ReceiveItem `json:"items,omitempty"`
}
