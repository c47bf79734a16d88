package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of a connection.
type State int

const (
	// StateAwaitingInit is entered on accept.
	StateAwaitingInit State = iota
	// StateActive means the connection is registered and receives broadcasts.
	StateActive
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInit:
		return "awaiting_init"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one client connection and its lifecycle state. The session and
// client ids are set once, when the connection becomes active.
//
// Lock order: a connection being activated holds its own mu while it takes
// the registry lock and while it notifies the connection it evicts. Nothing
// takes a newer connection's mu while holding an older one's.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	state      State
	validating bool
	sessionID  string
	clientID   string
}

// NewConn wraps a WebSocket connection. ws may be nil in tests that only
// exercise the send queue.
func NewConn(ws *websocket.Conn, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
}

// Send queues a message for the write pump. It reports whether the message
// was queued; a full queue closes the connection.
func (c *Conn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(data)
}

func (c *Conn) sendLocked(data []byte) bool {
	if c.state == StateClosed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		// Buffer full, close the client
		c.closeLocked()
		return false
	}
}

// Close closes the send queue. The write pump flushes what is already
// queued, then sends a close frame.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	close(c.send)
}

// IsClosed returns true if the connection is closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateClosed
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the bound session id, empty until active.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ClientID returns the bound client id, empty until active.
func (c *Conn) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// SendChan returns the send channel for the connection.
func (c *Conn) SendChan() <-chan []byte {
	return c.send
}

// acceptsInit reports whether an inbound message should be treated as a
// handshake attempt.
func (c *Conn) acceptsInit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAwaitingInit && !c.validating
}

// beginValidation marks a handshake as in flight. Only one may be.
func (c *Conn) beginValidation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingInit || c.validating {
		return false
	}
	c.validating = true
	return true
}

// reject sends a fatal acknowledgment and closes. It is a no-op when the
// connection closed while validation was in flight.
func (c *Conn) reject(ack []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.sendLocked(ack)
	c.closeLocked()
	return true
}

// activate registers the connection. If the connection closed while it was
// being validated, the result is discarded and nothing is registered. The
// evicted predecessor, if any, is notified and closed before the success
// acknowledgment is queued.
func (c *Conn) activate(registry *Registry, sessionID, clientID string) (evicted *Conn, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.validating = false
	if c.state != StateAwaitingInit {
		return nil, false
	}

	evicted = registry.Register(sessionID, clientID, c)
	c.state = StateActive
	c.sessionID = sessionID
	c.clientID = clientID

	if evicted != nil {
		evicted.Send(errorAck(AckEvicted))
		evicted.Close()
	}

	c.sendLocked(marshalAck(Ack{
		Message:   AckSessionConnected,
		SessionID: sessionID,
		ClientID:  clientID,
	}))
	return evicted, true
}

// shutdown closes the connection and returns the identity it was registered
// under, if it ever became active.
func (c *Conn) shutdown() (sessionID, clientID string, wasActive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasActive = c.sessionID != ""
	c.closeLocked()
	return c.sessionID, c.clientID, wasActive
}

// closeIfNotActive closes a connection still waiting for its handshake.
func (c *Conn) closeIfNotActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingInit {
		return false
	}
	c.closeLocked()
	return true
}
