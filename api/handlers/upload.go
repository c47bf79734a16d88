package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/study-assistant/backend/internal/study"
)

// UploadHandler handles PDF resource uploads.
type UploadHandler struct {
	studyService *study.Service
	maxBytes     int64
}

// NewUploadHandler creates a new UploadHandler that rejects files larger
// than maxBytes.
func NewUploadHandler(studyService *study.Service, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		studyService: studyService,
		maxBytes:     maxBytes,
	}
}

// Upload handles POST /api/uploads/upload. The file is sent in the
// multipart field "pdf" and the owning session in the form field "sessionId".
func (h *UploadHandler) Upload(c *gin.Context) {
	// Leave room for the multipart framing and the sessionId field.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+64<<10)

	fileHeader, err := c.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload limit")
			return
		}
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "A PDF file is required in field \"pdf\"")
		return
	}
	if fileHeader.Size > h.maxBytes {
		sendError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload limit")
		return
	}

	sessionID := c.PostForm("sessionId")
	if sessionID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "sessionId is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read uploaded file")
		return
	}

	res, err := h.studyService.Upload(c.Request.Context(), sessionID, filepath.Base(fileHeader.Filename), data)
	if err != nil {
		sendServiceError(c, err, "store resource")
		return
	}

	res.Content = ""
	c.JSON(http.StatusCreated, res)
}

// RegisterRoutes registers the upload route on a Gin router group.
func (h *UploadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/upload", h.Upload)
}
