// Package notify routes order events to the live channels of their target
// participant. Delivery is at-most-once: the durable store stays the source
// of truth, and a client that missed an event re-fetches state on reconnect.
package notify

import (
	"context"
	"encoding/json"
)

// EventType classifies an order event.
type EventType string

const (
	EventPlaced        EventType = "placed"
	EventAccepted      EventType = "accepted"
	EventRejected      EventType = "rejected"
	EventStatusChanged EventType = "status_changed"
	EventCompleted     EventType = "completed"
)

// OrderEvent is a transient notification about one order. It is constructed
// by the lifecycle controller, consumed once by the bus, and never
// persisted. Target routes the event and is not part of the wire payload.
type OrderEvent struct {
	OrderID string          `json:"order_id"`
	Type    EventType       `json:"type"`
	Target  string          `json:"-"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Publisher is the interface producers emit events through. Publishers need
// not know whether, or to how many channels, an event is delivered.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}
