package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"

	"truckflow/pkg/conn"
	"truckflow/pkg/logger"
)

// targetStripes is the number of per-target ordering locks.
const targetStripes = 64

// Bus delivers events to every live channel of the target participant,
// resolved through the connection registry at publish time.
type Bus struct {
	registry *conn.Registry
	log      *logger.Logger
	stripes  [targetStripes]sync.Mutex
}

// NewBus creates a bus over the given registry.
func NewBus(registry *conn.Registry, log *logger.Logger) *Bus {
	return &Bus{registry: registry, log: log}
}

// Publish sends the event to all live handles of ev.Target. Events for the
// same target are delivered in publish order; no ordering holds across
// targets. A handle that fails to accept the event is treated as an
// implicit disconnect and unregistered; failures never propagate to the
// publisher. With no live handles the event is dropped and logged.
func (b *Bus) Publish(ctx context.Context, ev OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	// Serialize per target so concurrent publishes to one participant
	// cannot interleave out of order.
	lock := &b.stripes[stripeFor(ev.Target)]
	lock.Lock()
	defer lock.Unlock()

	conns := b.registry.Lookup(ev.Target)
	if len(conns) == 0 {
		b.log.Info(ctx, "event dropped, no live channel",
			"order_id", ev.OrderID, "type", ev.Type, "target", ev.Target)
		return nil
	}

	for _, c := range conns {
		if err := c.Handle.Send(data); err != nil {
			b.log.Warn(ctx, "channel send failed, unregistering",
				"order_id", ev.OrderID, "target", ev.Target, "error", err)
			b.registry.Unregister(c.Token)
		}
	}
	return nil
}

func stripeFor(target string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(target))
	return h.Sum32() % targetStripes
}
