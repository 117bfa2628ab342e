package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"branch-supply/internal/core"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func sampleOrder() *core.PurchaseOrder {
	return &core.PurchaseOrder{
		ID:                  42,
		OriginBranchID:      1,
		DestinationBranchID: 7,
		Status:              core.StatusInTransit,
		Lines: []core.OrderLine{
			{ID: 1, QuantityOrdered: 10, QuantityShipped: 5},
		},
	}
}

func TestPublisher_PublishOrderEvent(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "", zerolog.Nop())

	from := core.StatusCreated
	note := "partial"
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.PublishOrderEvent(context.Background(), core.OrderEvent{
		Event: core.EventShip, FromStatus: &from, ToStatus: core.StatusInTransit, ActorID: 3, Note: &note, At: at,
	}, sampleOrder())

	if len(conn.subjects) != 1 || conn.subjects[0] != "purchase_orders.shipped" {
		t.Fatalf("subjects: got %v", conn.subjects)
	}
	var msg OrderEventMessage
	if err := json.Unmarshal(conn.payloads[0], &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.OrderID != "42" || msg.FromStatus != "CREATED" || msg.ToStatus != "IN_TRANSIT" {
		t.Errorf("message: %+v", msg)
	}
	if msg.TotalOrdered != 10 || msg.TotalShipped != 5 || msg.Note != "partial" || !msg.OccurredAt.Equal(at) {
		t.Errorf("message totals: %+v", msg)
	}
}

func TestPublisher_FailureIsNonFatal(t *testing.T) {
	var logs bytes.Buffer
	conn := &recordingConn{err: errors.New("broker down")}
	p := NewPublisher(conn, "po", zerolog.New(&logs))

	p.PublishOrderEvent(context.Background(), core.OrderEvent{Event: core.EventCancel, ToStatus: core.StatusCancelled}, sampleOrder())

	if !bytes.Contains(logs.Bytes(), []byte("non-fatal")) {
		t.Errorf("expected warning log, got %q", logs.String())
	}
}

func TestPublisher_NilConnIsNoop(t *testing.T) {
	p := NewPublisher(nil, "po", zerolog.Nop())
	p.PublishOrderEvent(context.Background(), core.OrderEvent{Event: core.EventCreate}, sampleOrder())
	if got := p.Subject(core.EventConfirm); got != "po.confirmed" {
		t.Errorf("subject: got %s", got)
	}
}
