package registry

import (
	"sort"
	"sync"
)

// Endpoint is a single live transport session for a user. Send must never
// block on the remote peer; slow or dead endpoints drop payloads.
type Endpoint interface {
	ID() string
	UserID() int
	Send(payload []byte)
}

// PresenceListener is invoked after a user crosses the online/offline
// boundary: first endpoint registered, or last endpoint removed.
type PresenceListener func(userID int, online bool)

// Registry maps user ids to their live endpoints. A user may own any
// number of concurrent endpoints; an endpoint id belongs to exactly one
// user at a time.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	byUser    map[int]map[string]Endpoint
	listener  PresenceListener
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		endpoints: make(map[string]Endpoint),
		byUser:    make(map[int]map[string]Endpoint),
	}
}

// SetPresenceListener installs the boundary-transition callback. Must be
// called before the first Register.
func (r *Registry) SetPresenceListener(fn PresenceListener) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()
}

// Register records a live endpoint, replacing any prior endpoint held
// under the same endpoint id. Reconnects on the same endpoint id are
// idempotent; additional endpoint ids for the same user accumulate.
func (r *Registry) Register(ep Endpoint) {
	r.mu.Lock()

	var cameOffline []int
	if prev, ok := r.endpoints[ep.ID()]; ok {
		if r.removeLocked(prev) {
			cameOffline = append(cameOffline, prev.UserID())
		}
	}

	r.endpoints[ep.ID()] = ep
	userEndpoints, ok := r.byUser[ep.UserID()]
	if !ok {
		userEndpoints = make(map[string]Endpoint)
		r.byUser[ep.UserID()] = userEndpoints
	}
	cameOnline := len(userEndpoints) == 0
	userEndpoints[ep.ID()] = ep

	listener := r.listener
	r.mu.Unlock()

	// Listener runs outside the lock: it typically broadcasts through the
	// registry again.
	if listener == nil {
		return
	}
	for _, userID := range cameOffline {
		listener(userID, false)
	}
	if cameOnline {
		listener(ep.UserID(), true)
	}
}

// Unregister removes an endpoint. Removing the user's last endpoint marks
// the user offline. Unknown endpoint ids are a no-op.
func (r *Registry) Unregister(endpointID string) {
	r.mu.Lock()
	ep, ok := r.endpoints[endpointID]
	var wentOffline bool
	if ok {
		wentOffline = r.removeLocked(ep)
	}
	listener := r.listener
	r.mu.Unlock()

	if ok && wentOffline && listener != nil {
		listener(ep.UserID(), false)
	}
}

// removeLocked deletes the endpoint and reports whether its user went
// offline. Caller holds the write lock.
func (r *Registry) removeLocked(ep Endpoint) bool {
	delete(r.endpoints, ep.ID())
	userEndpoints, ok := r.byUser[ep.UserID()]
	if !ok {
		return false
	}
	delete(userEndpoints, ep.ID())
	if len(userEndpoints) == 0 {
		delete(r.byUser, ep.UserID())
		return true
	}
	return false
}

// IsOnline reports whether the user has at least one live endpoint.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// EndpointsFor returns the user's live endpoints, possibly empty.
func (r *Registry) EndpointsFor(userID int) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	endpoints := make([]Endpoint, 0, len(r.byUser[userID]))
	for _, ep := range r.byUser[userID] {
		endpoints = append(endpoints, ep)
	}
	return endpoints
}

// OnlineUsers returns the sorted set of currently-online user ids.
func (r *Registry) OnlineUsers() []int {
	r.mu.RLock()
	users := make([]int, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Ints(users)
	return users
}

// All returns every live endpoint across all users.
func (r *Registry) All() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	endpoints := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		endpoints = append(endpoints, ep)
	}
	return endpoints
}
