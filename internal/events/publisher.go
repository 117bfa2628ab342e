// Package events publishes purchase-order lifecycle events to NATS so other
// services (notifications, stock, reporting) can react to them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"branch-supply/internal/core"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes lifecycle events.
//
// Subject convention: <prefix>.<event_type>
// Event types: created, shipped, confirmed, cancelled
//
// All publish operations are non-fatal: errors are logged but never propagated
// to the caller, so a broker outage never interrupts a transition.
type Publisher struct {
	conn   Conn
	prefix string
	log    zerolog.Logger
}

// OrderEventMessage is the JSON schema published to NATS.
type OrderEventMessage struct {
	EventType           string    `json:"event_type"`
	OrderID             string    `json:"order_id"`
	FromStatus          string    `json:"from_status,omitempty"`
	ToStatus            string    `json:"to_status"`
	ActorID             string    `json:"actor_id"`
	OriginBranchID      int       `json:"origin_branch_id"`
	DestinationBranchID int       `json:"destination_branch_id"`
	Note                string    `json:"note,omitempty"`
	TotalOrdered        int       `json:"total_ordered"`
	TotalShipped        int       `json:"total_shipped"`
	TotalReceived       int       `json:"total_received"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// Connect dials NATS with reconnect settings suited to a long-running service.
func Connect(url, clientName string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// NewPublisher creates a publisher backed by the given connection.
func NewPublisher(conn Conn, prefix string, log zerolog.Logger) *Publisher {
	if prefix == "" {
		prefix = "purchase_orders"
	}
	return &Publisher{conn: conn, prefix: prefix, log: log}
}

var _ core.EventPublisher = (*Publisher)(nil)

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(ev core.Event) string {
	return p.prefix + "." + eventType(ev)
}

func (p *Publisher) PublishOrderEvent(_ context.Context, ev core.OrderEvent, po *core.PurchaseOrder) {
	if p == nil || p.conn == nil || po == nil {
		return
	}

	msg := OrderEventMessage{
		EventType:           eventType(ev.Event),
		OrderID:             strconv.Itoa(po.ID),
		ToStatus:            string(ev.ToStatus),
		ActorID:             strconv.Itoa(ev.ActorID),
		OriginBranchID:      po.OriginBranchID,
		DestinationBranchID: po.DestinationBranchID,
		TotalOrdered:        po.TotalOrdered(),
		TotalShipped:        po.TotalShipped(),
		TotalReceived:       po.TotalReceived(),
		OccurredAt:          ev.At,
	}
	if ev.FromStatus != nil {
		msg.FromStatus = string(*ev.FromStatus)
	}
	if ev.Note != nil {
		msg.Note = *ev.Note
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", msg.EventType).Msg("events: failed to marshal event")
		return
	}

	subject := p.Subject(ev.Event)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Int("order_id", po.ID).
			Msg("events: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Int("order_id", po.ID).
		Msg("events: event published")
}

func eventType(ev core.Event) string {
	switch ev {
	case core.EventCreate:
		return "created"
	case core.EventShip:
		return "shipped"
	case core.EventConfirm:
		return "confirmed"
	case core.EventCancel:
		return "cancelled"
	}
	return "unknown"
}
