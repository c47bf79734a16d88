package ws

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/study-assistant/backend/internal/slogging"
)

// Service wires the registry, handler and broadcaster together and owns
// their shared state.
type Service struct {
	registry    *Registry
	metrics     *Metrics
	handler     *Handler
	broadcaster *Broadcaster
}

// NewService creates a WebSocket service validating sessions against store.
// Metrics are registered on reg when it is non-nil.
func NewService(store SessionStore, validationTimeout time.Duration, opts Options, reg prometheus.Registerer) *Service {
	registry := NewRegistry()
	metrics := NewMetrics(reg, registry)

	return &Service{
		registry:    registry,
		metrics:     metrics,
		handler:     NewHandler(registry, NewValidator(store, validationTimeout), metrics, opts),
		broadcaster: NewBroadcaster(registry, metrics),
	}
}

// Handler returns the WebSocket handler.
func (s *Service) Handler() *Handler {
	return s.handler
}

// Registry returns the connection registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Broadcaster returns the local broadcaster.
func (s *Service) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// CloseSession closes every connection of a session and returns how many
// there were. Each connection unregisters itself as it tears down.
// This should be called when a session is deleted.
func (s *Service) CloseSession(sessionID string) int {
	members := s.registry.Members(sessionID)
	for _, conn := range members {
		conn.Close()
	}
	if len(members) > 0 {
		slogging.Get().Info("Closed %d connection(s) of deleted session %s", len(members), sessionID)
	}
	return len(members)
}

// ConnectionCount returns the number of active connections of a session.
func (s *Service) ConnectionCount(sessionID string) int {
	return len(s.registry.Members(sessionID))
}

// Close closes all active connections.
func (s *Service) Close() {
	for _, conn := range s.registry.all() {
		conn.Close()
	}
}
