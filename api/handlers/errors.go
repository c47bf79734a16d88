package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/study-assistant/backend/internal/agent"
	"github.com/study-assistant/backend/internal/extract"
	"github.com/study-assistant/backend/internal/model"
	"github.com/study-assistant/backend/internal/slogging"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// sendServiceError maps errors returned by the session and study services
// onto HTTP responses. action describes the failed operation for 500s.
func sendServiceError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, model.ErrSessionNotFound):
		sendError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
	case errors.Is(err, model.ErrResourceNotFound):
		sendError(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found")
	case errors.Is(err, extract.ErrNotPDF):
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Only PDF files are allowed")
	case errors.Is(err, extract.ErrNoText):
		sendError(c, http.StatusUnprocessableEntity, "NO_TEXT", "No readable text found in the PDF")
	case errors.Is(err, agent.ErrNotConfigured):
		sendError(c, http.StatusServiceUnavailable, "AGENT_UNAVAILABLE", "The study agent is not configured")
	case errors.Is(err, model.ErrUnexpectedAgentOutput):
		sendError(c, http.StatusBadGateway, "AGENT_ERROR", "The study agent returned an unusable reply")
	default:
		slogging.Get().Error("Failed to %s: %v", action, err)
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}
