package app_test

import (
	"encoding/json"
	"testing"

	"branch-supply/internal/app"
)

func TestCreateOrderRequest_Decode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"destination", `{"destinationBranchId":7,"items":[{"productId":1,"quantityOrdered":2}]}`, 7},
		{"older branchId", `{"branchId":7,"note":null,"items":[{"productId":1,"quantityOrdered":2,"unitCost":0}]}`, 7},
		{"destination wins", `{"destinationBranchId":7,"branchId":8,"items":[]}`, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req app.CreateOrderRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if req.DestinationBranchID != tt.want {
				t.Errorf("destination: want %d, got %d", tt.want, req.DestinationBranchID)
			}
		})
	}

	var req app.CreateOrderRequest
	if err := json.Unmarshal([]byte(`{"branchId":7,"note":"weekly","items":[{"productId":3,"quantityOrdered":5}]}`), &req); err != nil {
		t.Fatal(err)
	}
	if req.Note != "weekly" || len(req.Items) != 1 || req.Items[0].ProductID != 3 || req.Items[0].QuantityOrdered != 5 {
		t.Errorf("fields lost: %+v", req)
	}
}

func TestReceiveItem_Decode(t *testing.T) {
	var req app.ConfirmOrderRequest
	body := `{"receiveNote":"two torn","items":[{"itemId":11,"quantityReceived":8},{"lineId":12,"quantityReceived":3}]}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []app.ReceiveItem{{LineID: 11, QuantityReceived: 8}, {LineID: 12, QuantityReceived: 3}}
	if req.ReceiveNote != "two torn" || len(req.Items) != len(want) {
		t.Fatalf("request: %+v", req)
	}
	for i, it := range req.Items {
		if it != want[i] {
			t.Errorf("item %d: want %+v, got %+v", i, want[i], it)
		}
	}
}
