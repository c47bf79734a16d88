package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/study-assistant/backend/internal/slogging"
)

// Options tunes per-connection transport behavior.
type Options struct {
	// Maximum message size allowed from peer.
	MaxMessageSize int64
	// Outbound queue length per connection.
	SendBuffer int
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// InitTimeout closes connections that have not activated in time.
	// Zero disables it.
	InitTimeout time.Duration
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string
}

// DefaultOptions returns the transport defaults.
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 8192,
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
	}
}

// pingPeriod must be less than pongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Handler runs the lifecycle of each WebSocket connection:
// awaiting init, then active, then closed.
type Handler struct {
	registry  *Registry
	validator *Validator
	metrics   *Metrics
	opts      Options
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(registry *Registry, validator *Validator, metrics *Metrics, opts Options) *Handler {
	h := &Handler{
		registry:  registry,
		validator: validator,
		metrics:   metrics,
		opts:      opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.opts.AllowedOrigins, origin)
}

// HandleConnection upgrades the request and starts the connection's read
// and write pumps. It returns once the pumps are running.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	conn := NewConn(wsConn, h.opts.SendBuffer)

	go h.writePump(conn)
	go h.readPump(conn)

	return nil
}

// readPump reads handshake attempts until the connection closes, then
// removes it from the registry.
func (h *Handler) readPump(conn *Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.teardown(conn)
	}()

	if h.opts.InitTimeout > 0 {
		timer := time.AfterFunc(h.opts.InitTimeout, func() {
			if conn.closeIfNotActive() {
				h.metrics.initFailure(ReasonTimeout)
				slogging.Get().Debug("Closing connection that did not complete init within %s", h.opts.InitTimeout)
			}
		})
		defer timer.Stop()
	}

	conn.ws.SetReadLimit(h.opts.MaxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		return nil
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slogging.Get().Debug("WebSocket read error: %v", err)
			}
			return
		}

		h.handleMessage(ctx, conn, message)
	}
}

// handleMessage treats message as a handshake attempt while the connection
// awaits init. Anything else is ignored.
func (h *Handler) handleMessage(ctx context.Context, conn *Conn, message []byte) {
	if !conn.acceptsInit() {
		return
	}

	var msg InitMessage
	err := json.Unmarshal(message, &msg)
	// Valid JSON of the wrong shape is answered like a message with the
	// fields missing.
	var typeErr *json.UnmarshalTypeError
	if err != nil && !errors.As(err, &typeErr) {
		h.metrics.initFailure(ReasonMalformed)
		conn.Send(errorAck(AckInvalidFormat))
		return
	}

	if err != nil || msg.Type != MessageTypeInit || msg.SessionID == "" || msg.ClientID == "" {
		h.metrics.initFailure(ReasonMalformed)
		conn.Send(errorAck(AckMissingFields))
		return
	}

	if !conn.beginValidation() {
		return
	}

	// Validate off the read loop so a close during validation is seen.
	go h.activate(ctx, conn, msg.SessionID, msg.ClientID)
}

// activate validates the session and registers the connection.
func (h *Handler) activate(ctx context.Context, conn *Conn, sessionID, clientID string) {
	logger := slogging.Get()

	exists, err := h.validator.Exists(ctx, sessionID)
	switch {
	case err != nil:
		if conn.reject(errorAck(AckDatabaseError)) {
			h.metrics.initFailure(ReasonStoreError)
			logger.Error("Session validation failed for %s: %v", sessionID, err)
		}
		return
	case !exists:
		if conn.reject(errorAck(AckInvalidSession)) {
			h.metrics.initFailure(ReasonInvalidSession)
			logger.Debug("Rejected connection for unknown session %s", sessionID)
		}
		return
	}

	evicted, ok := conn.activate(h.registry, sessionID, clientID)
	if !ok {
		logger.Debug("Connection for session %s closed during validation", sessionID)
		return
	}
	if evicted != nil {
		h.metrics.eviction()
		logger.Info("Evicted previous connection for session %s client %s", sessionID, clientID)
	}
}

// teardown closes the connection and unregisters it if it was active.
func (h *Handler) teardown(conn *Conn) {
	sessionID, clientID, wasActive := conn.shutdown()
	if wasActive {
		h.registry.Unregister(sessionID, clientID, conn)
	}
	conn.ws.Close()
}

// writePump pumps queued messages to the WebSocket connection.
func (h *Handler) writePump(conn *Conn) {
	ticker := time.NewTicker(h.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case message, ok := <-conn.SendChan():
			conn.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if !ok {
				// The send queue was closed
				conn.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			// Each message goes in its own frame so the client can parse
			// frames independently.
			if err := conn.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					slogging.Get().Debug("WebSocket write error: %v", err)
				}
				return
			}
		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
