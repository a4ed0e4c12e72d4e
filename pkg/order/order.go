// Package order owns the order model, its status state machine, and the
// lifecycle controller that advances orders and emits notifications.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is an order's position in the lifecycle.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// transitions is the full set of allowed moves. Anything absent is invalid.
var transitions = map[Status][]Status{
	StatusPlaced:   {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether the move from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Order represents a customer purchase order. The durable store owns it;
// the core reads and advances only the status.
type Order struct {
	ID         string          `json:"id"`
	VendorID   string          `json:"vendor_id"`
	CustomerID string          `json:"customer_id"`
	Items      json.RawMessage `json:"items,omitempty"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Repository defines behavior for persisting orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// ListByParticipant returns all orders the participant is a party to,
	// as vendor or as customer.
	ListByParticipant(ctx context.Context, participantID string) ([]Order, error)
	// UpdateStatus moves the order from one status to another. It fails
	// with ErrNotFound if the order does not exist and ErrStaleStatus if
	// the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrStaleStatus indicates a concurrent transition won; the stored
	// status no longer matches the expected one.
	ErrStaleStatus = errors.New("order status changed concurrently")
	// ErrInvalidTransition indicates a move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPersistence indicates the durable store failed; nothing was
	// committed and the caller may retry.
	ErrPersistence = errors.New("order store unavailable")
)
