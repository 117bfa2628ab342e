package core

import "fmt"

// transitions is the purchase-order state machine. Create has no source state
// and is handled by CreateOrder directly.
var transitions = map[OrderStatus]map[Event]OrderStatus{
	StatusCreated: {
		EventShip:   StatusInTransit,
		EventCancel: StatusCancelled,
	},
	StatusInTransit: {
		EventConfirm: StatusConfirmed,
	},
}

// NextStatus returns the state reached by applying ev to an order in from, or
// ErrInvalidTransition.
func NextStatus(from OrderStatus, ev Event) (OrderStatus, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", fmt.Errorf("cannot %s an order in status %s: %w", eventVerb(ev), from, ErrInvalidTransition)
}

// AllowedEvents lists the events accepted from status, in a stable order.
func AllowedEvents(from OrderStatus) []Event {
	var out []Event
	for _, ev := range []Event{EventShip, EventConfirm, EventCancel} {
		if _, ok := transitions[from][ev]; ok {
			out = append(out, ev)
		}
	}
	return out
}

func eventVerb(ev Event) string {
	switch ev {
	case EventShip:
		return "ship"
	case EventConfirm:
		return "confirm"
	case EventCancel:
		return "cancel"
	case EventCreate:
		return "create"
	}
	return string(ev)
}
