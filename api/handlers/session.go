// Package handlers provides HTTP API request handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/study-assistant/backend/internal/model"
	"github.com/study-assistant/backend/internal/session"
	"github.com/study-assistant/backend/internal/study"
)

// SessionHandler handles HTTP requests for session management.
type SessionHandler struct {
	sessionManager *session.Manager
	studyService   *study.Service
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionManager *session.Manager, studyService *study.Service) *SessionHandler {
	return &SessionHandler{
		sessionManager: sessionManager,
		studyService:   studyService,
	}
}

// CreateSessionRequest represents the request body for creating a user session.
type CreateSessionRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID        string  `json:"id"`
	UserID    *string `json:"userId"`
	Guest     bool    `json:"guest"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// toSessionResponse converts a model.Session to SessionResponse.
func toSessionResponse(s *model.Session) *SessionResponse {
	return &SessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		Guest:     s.IsGuest(),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateGuest handles POST /api/sessions/guest.
func (h *SessionHandler) CreateGuest(c *gin.Context) {
	sess, err := h.sessionManager.CreateGuest(c.Request.Context())
	if err != nil {
		sendServiceError(c, err, "create guest session")
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// Create handles POST /api/sessions - creates a session for a user.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	sess, err := h.sessionManager.Create(c.Request.Context(), req.UserID)
	if err != nil {
		sendServiceError(c, err, "create session")
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// Get handles GET /api/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessionManager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendServiceError(c, err, "get session")
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Delete handles DELETE /api/sessions/:id. Live connections of the session
// are closed by the manager.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessionManager.Delete(c.Request.Context(), c.Param("id")); err != nil {
		sendServiceError(c, err, "delete session")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListSummaries handles GET /api/sessions/:id/summaries.
func (h *SessionHandler) ListSummaries(c *gin.Context) {
	summaries, err := h.studyService.Summaries(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendServiceError(c, err, "list summaries")
		return
	}
	if summaries == nil {
		summaries = []*model.Summary{}
	}

	c.JSON(http.StatusOK, summaries)
}

// ListResources handles GET /api/sessions/:id/resources. Resource content is
// not included.
func (h *SessionHandler) ListResources(c *gin.Context) {
	resources, err := h.studyService.Resources(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendServiceError(c, err, "list resources")
		return
	}

	c.JSON(http.StatusOK, resources)
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("/guest", h.CreateGuest)
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.GET("/:id/summaries", h.ListSummaries)
		sessions.GET("/:id/resources", h.ListResources)
	}
}
