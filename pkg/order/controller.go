package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"truckflow/pkg/logger"
	"truckflow/pkg/notify"
)

// Controller validates and advances order state. Every successful change is
// persisted first; only then is the event handed to the bus, targeting the
// counterparty. A transition that did not commit never produces an event.
type Controller struct {
	repo Repository
	bus  notify.Publisher
	log  *logger.Logger
}

// NewController creates a controller over the given store and bus.
func NewController(repo Repository, bus notify.Publisher, log *logger.Logger) *Controller {
	return &Controller{repo: repo, bus: bus, log: log}
}

// Place persists a new order in status placed and notifies the vendor.
func (c *Controller) Place(ctx context.Context, o Order) (Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = StatusPlaced
	o.CreatedAt = time.Now().UTC()
	if err := c.repo.Create(ctx, o); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	c.publish(ctx, o, notify.EventPlaced, o.VendorID,
		fmt.Sprintf("New order %s received", o.ID))
	return o, nil
}

// Transition moves the order to next and notifies the customer. Moves not
// in the state machine fail with ErrInvalidTransition and change nothing.
func (c *Controller) Transition(ctx context.Context, orderID string, next Status) (Order, error) {
	o, err := c.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !next.Valid() || !o.Status.CanTransition(next) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	if err := c.repo.UpdateStatus(ctx, orderID, o.Status, next); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return Order{}, err
		case errors.Is(err, ErrStaleStatus):
			return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
		}
		return Order{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	o.Status = next
	c.publish(ctx, o, eventFor(next), o.CustomerID,
		fmt.Sprintf("Your order %s is now %s", o.ID, next))
	return o, nil
}

func (c *Controller) publish(ctx context.Context, o Order, typ notify.EventType, target, msg string) {
	ev := notify.OrderEvent{
		OrderID: o.ID,
		Type:    typ,
		Target:  target,
		Message: msg,
	}
	if err := c.bus.Publish(ctx, ev); err != nil {
		// The transition already committed; delivery is best effort.
		c.log.Error(ctx, "publish order event", "order_id", o.ID, "type", typ, "error", err)
	}
}

// eventFor maps a status to its event type. status_changed is the fallback
// for statuses without a dedicated type.
func eventFor(s Status) notify.EventType {
	switch s {
	case StatusAccepted:
		return notify.EventAccepted
	case StatusRejected:
		return notify.EventRejected
	case StatusCompleted:
		return notify.EventCompleted
	}
	return notify.EventStatusChanged
}
