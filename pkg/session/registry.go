// Package session implements the Server Session Layer (C8):
// one task per websocket connection driven through a
// Connected -> Registered -> Active -> Closed state machine, grounded
// on original_source/cellular_remote_server.py's
// handle_client_message/register_device/handle_cellular_threat
// dispatch, re-expressed with github.com/gorilla/websocket for the
// duplex frame transport and github.com/gorilla/mux for the HTTP
// routing layer.
package session

import (
	"sync"
	"time"
)

// State is a connection's position in the session state machine.
type State int

const (
	StateConnected State = iota
	StateRegistered
	StateActive
	StateClosed
)

// staleAfter is how long without a heartbeat before a session is
// considered dead and eligible for reaping, per spec §5.
const staleAfter = 90 * time.Second

// Registry is the shared session table. Reads (fan-out iteration,
// counting) may proceed concurrently; mutations (register, remove) take
// the exclusive path. sync.RWMutex is the closest stdlib primitive to
// the writer-preferring exclusive policy the design calls for.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by device_id, Registered+ only
}

// NewRegistry creates an empty session table.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds or replaces the Active session for a device_id. A
// device reconnecting under the same id displaces its prior session.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.DeviceID] = s
}

// Remove drops a session from the table.
func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, deviceID)
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Each calls fn for every registered session. fn must not block; the
// read lock is held for the duration of the call.
func (r *Registry) Each(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		fn(s)
	}
}

// Stale returns the device_ids of sessions whose last heartbeat is
// older than staleAfter, for periodic reaping.
func (r *Registry) Stale(now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > staleAfter {
			ids = append(ids, id)
		}
	}
	return ids
}
