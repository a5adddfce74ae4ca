package core

import (
	"slices"
	"sync"
)

// Presence maps users to their single live connection handle.
// The hub is its only writer; Registry is the in-process implementation.
type Presence interface {
	// Register stores handle for userID and returns the handle it replaced, if any.
	Register(userID int64, handle *Conn) (previous *Conn)
	// Unregister removes the entry for userID. It is a no-op when absent.
	Unregister(userID int64)
	// UnregisterIf removes the entry only while it still points at handle.
	UnregisterIf(userID int64, handle *Conn) bool
	// Lookup returns the live handle for userID.
	Lookup(userID int64) (*Conn, bool)
	// Snapshot returns the online user ids in ascending order.
	Snapshot() []int64
	// Handles returns every registered handle.
	Handles() []*Conn
}

// Registry is a lock-guarded in-memory Presence.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*Conn)}
}

// Register overwrites any existing entry for userID (last connection wins).
func (r *Registry) Register(userID int64, handle *Conn) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.entries[userID]
	r.entries[userID] = handle
	if previous == handle {
		return nil
	}
	return previous
}

// Unregister removes the entry if present.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, userID)
}

// UnregisterIf removes the entry for userID if it is still handle.
func (r *Registry) UnregisterIf(userID int64, handle *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[userID]; ok && current == handle {
		delete(r.entries, userID)
		return true
	}
	return false
}

// Lookup returns the handle registered for userID.
func (r *Registry) Lookup(userID int64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.entries[userID]
	return handle, ok
}

// Snapshot returns a sorted copy of the online user ids.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Handles returns a copy of every registered handle.
func (r *Registry) Handles() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*Conn, 0, len(r.entries))
	for _, h := range r.entries {
		handles = append(handles, h)
	}
	return handles
}
