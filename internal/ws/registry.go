package ws

import "sync"

// Registry maps session id -> client id -> connection. A session's group is
// created on its first registration and deleted when its last member leaves.
type Registry struct {
	sessions map[string]map[string]*Conn
	mu       sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[string]*Conn),
	}
}

// Register stores conn under (sessionID, clientID) and returns the
// connection it replaced, if any. The caller notifies and closes it.
func (r *Registry) Register(sessionID, clientID string, conn *Conn) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.sessions[sessionID]
	if !ok {
		group = make(map[string]*Conn)
		r.sessions[sessionID] = group
	}

	prev := group[clientID]
	group[clientID] = conn
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister removes (sessionID, clientID) if it still maps to conn and
// reports whether it did. An evicted connection's late cleanup therefore
// leaves its successor in place. Unknown pairs are a no-op.
func (r *Registry) Unregister(sessionID, clientID string, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.sessions[sessionID]
	if !ok || group[clientID] != conn {
		return false
	}

	delete(group, clientID)
	if len(group) == 0 {
		delete(r.sessions, sessionID)
	}
	return true
}

// Members returns a snapshot of the session's connections. The slice is
// the caller's to keep.
func (r *Registry) Members(sessionID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.sessions[sessionID]
	if len(group) == 0 {
		return nil
	}

	members := make([]*Conn, 0, len(group))
	for _, conn := range group {
		members = append(members, conn)
	}
	return members
}

// Lookup returns the connection registered for (sessionID, clientID).
func (r *Registry) Lookup(sessionID, clientID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[sessionID][clientID]
	return conn, ok
}

// SessionCount returns the number of sessions with at least one member.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, group := range r.sessions {
		n += len(group)
	}
	return n
}

// all returns every registered connection.
func (r *Registry) all() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Conn
	for _, group := range r.sessions {
		for _, conn := range group {
			conns = append(conns, conn)
		}
	}
	return conns
}
