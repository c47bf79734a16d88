package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/study-assistant/backend/internal/slogging"
	"github.com/study-assistant/backend/internal/ws"
)

// WebSocketHandler upgrades requests to study event connections. Session
// binding happens in-band through the init message, so no session lookup
// is done here.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{wsHandler: wsHandler}
}

// Connect handles GET /ws.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already written the HTTP error.
		slogging.Get().Debug("WebSocket upgrade failed from %s: %v", c.ClientIP(), err)
	}
}

// RegisterRoutes registers the WebSocket route on the root router.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Connect)
}
