package ws

import (
	"encoding/json"

	"github.com/study-assistant/backend/internal/slogging"
)

// Publisher delivers an event to every active connection of a session.
// Delivery is best effort and unconfirmed.
type Publisher interface {
	Broadcast(sessionID, event string, payload any)
}

// Broadcaster delivers events to connections registered on this instance.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
}

// NewBroadcaster creates a Broadcaster over registry. metrics may be nil.
func NewBroadcaster(registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: metrics}
}

// Broadcast queues {event, data} on each member of the session. Closed
// members are skipped; their own teardown unregisters them.
func (b *Broadcaster) Broadcast(sessionID, event string, payload any) {
	members := b.registry.Members(sessionID)
	if len(members) == 0 {
		return
	}

	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		slogging.Get().Error("Failed to marshal %s event for session %s: %v", event, sessionID, err)
		return
	}

	for _, conn := range members {
		b.metrics.delivered(conn.Send(data))
	}
}
