// Package registry implements the process-local ClientRegistry (C3): the
// single source of truth for "is this assistant reachable right now,"
// guarded by a read-mostly mutex in the style used throughout the
// codebase's in-memory map stores.
package registry

import (
	"sort"
	"sync"

	"github.com/local/assistantbridge/internal/store"
)

// ClientRegistry maps an AssistantId to its live session id.
type ClientRegistry struct {
	mu       sync.RWMutex
	sessions map[store.AssistantId]string
}

// New returns an empty ClientRegistry.
func New() *ClientRegistry {
	return &ClientRegistry{sessions: make(map[store.AssistantId]string)}
}

// SetOnline registers id as online under sessionID, silently replacing any
// prior mapping (per the design notes: the old transport is left to close
// naturally).
func (r *ClientRegistry) SetOnline(id store.AssistantId, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = sessionID
}

// SetOffline removes id's mapping, if any.
func (r *ClientRegistry) SetOffline(id store.AssistantId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// IsOnline reports whether id currently has a live session.
func (r *ClientRegistry) IsOnline(id store.AssistantId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// GetSessionID returns id's session id and whether it is online.
func (r *ClientRegistry) GetSessionID(id store.AssistantId) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[id]
	return sid, ok
}

// OnlineList returns the online assistant ids in a stable, sorted order.
func (r *ClientRegistry) OnlineList() []store.AssistantId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.AssistantId, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear removes every mapping, used on process shutdown.
func (r *ClientRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[store.AssistantId]string)
}
