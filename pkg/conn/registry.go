// Package conn tracks the live bidirectional channels of connected
// participants. A participant may hold several connections at once
// (multiple devices); lookups return all of them.
package conn

import (
	"sync"

	"github.com/google/uuid"
)

// Role identifies which side of an order a participant is on.
type Role string

const (
	RoleVendor   Role = "vendor"
	RoleCustomer Role = "customer"
)

// Handle is the write side of a live bidirectional channel. Send must not
// block indefinitely; implementations queue or reject. Close releases the
// channel and is safe to call more than once.
type Handle interface {
	Send(payload []byte) error
	Close() error
}

// Conn pairs a live handle with the registry token that removes it.
type Conn struct {
	Token  string
	Role   Role
	Handle Handle
}

// Registry is the authoritative map from participant identity to live
// channels. Entries exist exactly as long as the underlying channel.
type Registry struct {
	mu            sync.RWMutex
	byToken       map[string]string // token -> participant ID
	byParticipant map[string]map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken:       make(map[string]string),
		byParticipant: make(map[string]map[string]Conn),
	}
}

// Register adds a connection and returns the token that unregisters it.
func (r *Registry) Register(participantID string, role Role, h Handle) string {
	token := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byParticipant[participantID]
	if !ok {
		conns = make(map[string]Conn)
		r.byParticipant[participantID] = conns
	}
	conns[token] = Conn{Token: token, Role: role, Handle: h}
	r.byToken[token] = participantID
	return token
}

// Unregister removes exactly the connection the token refers to and closes
// its handle. The handle is closed only after it is no longer reachable
// through Lookup. Unregistering an unknown token is a no-op.
func (r *Registry) Unregister(token string) {
	r.mu.Lock()
	participantID, ok := r.byToken[token]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byToken, token)
	c := r.byParticipant[participantID][token]
	delete(r.byParticipant[participantID], token)
	if len(r.byParticipant[participantID]) == 0 {
		delete(r.byParticipant, participantID)
	}
	r.mu.Unlock()

	_ = c.Handle.Close()
}

// Lookup returns a snapshot of the participant's live connections. May be
// empty.
func (r *Registry) Lookup(participantID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byParticipant[participantID]
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}
