package notify

import (
	"sync"

	"github.com/google/uuid"

	"civicwatch/internal/model"
)

// Conn is a live client connection that can receive notifications.
// ID must be unique per connection for the lifetime of the process.
type Conn interface {
	ID() string
	Send(n model.Notification) error
}

// Registry maps an authenticated user to their most recently authenticated connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]Conn)}
}

// Register binds conn to userID, replacing any previous connection for that user.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	r.conns[userID] = conn
	r.mu.Unlock()
}

// Unregister removes the entry whose connection has the same identity as conn.
// It scans every entry and returns the user the connection was bound to, if any.
func (r *Registry) Unregister(conn Conn) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if c.ID() == conn.ID() {
			delete(r.conns, userID)
			return userID, true
		}
	}
	return uuid.Nil, false
}

// Lookup returns the live connection of userID.
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
