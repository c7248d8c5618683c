package ws

import (
	"encoding/json"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/registry"
)

// Hub fans push events out to live endpoints through the connection
// registry. Dispatch is fire-and-forget; each endpoint's queue absorbs or
// drops what its peer cannot keep up with.
type Hub struct {
	registry *registry.Registry
}

// NewHub creates a hub over the registry.
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{registry: reg}
}

// Register adds an endpoint to the registry.
func (h *Hub) Register(ep registry.Endpoint) {
	h.registry.Register(ep)
}

// Unregister removes an endpoint from the registry.
func (h *Hub) Unregister(endpointID string) {
	h.registry.Unregister(endpointID)
}

// PushToUser sends an event to every endpoint of one user and reports
// whether any endpoint existed.
func (h *Hub) PushToUser(userID int, event models.PushEvent) bool {
	endpoints := h.registry.EndpointsFor(userID)
	if len(endpoints) == 0 {
		return false
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return false
	}
	for _, ep := range endpoints {
		ep.Send(payload)
	}
	return true
}

// BroadcastPresence pushes the full current online-user set to every live
// endpoint. Full set rather than deltas: clients converge to ground truth
// even when an individual event is dropped.
func (h *Hub) BroadcastPresence() {
	payload, err := json.Marshal(h.presenceEvent())
	if err != nil {
		return
	}
	for _, ep := range h.registry.All() {
		ep.Send(payload)
	}
}

// SendPresenceSnapshot pushes the current online set to one endpoint,
// used right after a handshake that did not cross an online boundary.
func (h *Hub) SendPresenceSnapshot(ep registry.Endpoint) {
	payload, err := json.Marshal(h.presenceEvent())
	if err != nil {
		return
	}
	ep.Send(payload)
}

func (h *Hub) presenceEvent() models.PushEvent {
	return models.PushEvent{
		Type:          models.EventPresence,
		OnlineUserIDs: h.registry.OnlineUsers(),
	}
}
