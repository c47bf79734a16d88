package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/study-assistant/backend/internal/model"
	"github.com/study-assistant/backend/internal/study"
)

// StudyHandler handles the summarize, chat and flashcard endpoints.
type StudyHandler struct {
	studyService *study.Service
}

// NewStudyHandler creates a new StudyHandler.
func NewStudyHandler(studyService *study.Service) *StudyHandler {
	return &StudyHandler{studyService: studyService}
}

// ResultResponse wraps the outcome of a study operation.
type ResultResponse struct {
	Result any `json:"result"`
}

// Summarize handles POST /api/summarize.
func (h *StudyHandler) Summarize(c *gin.Context) {
	var req model.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	result, err := h.studyService.Summarize(c.Request.Context(), &req)
	if err != nil {
		sendServiceError(c, err, "summarize")
		return
	}

	c.JSON(http.StatusOK, ResultResponse{Result: result})
}

// Chat handles POST /api/chat.
func (h *StudyHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	reply, err := h.studyService.Chat(c.Request.Context(), &req)
	if err != nil {
		sendServiceError(c, err, "chat")
		return
	}

	c.JSON(http.StatusOK, ResultResponse{Result: reply})
}

// Flashcards handles POST /api/flashcard.
func (h *StudyHandler) Flashcards(c *gin.Context) {
	var req model.FlashcardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	cards, err := h.studyService.Flashcards(c.Request.Context(), &req)
	if err != nil {
		sendServiceError(c, err, "generate flashcards")
		return
	}

	c.JSON(http.StatusOK, ResultResponse{Result: cards})
}

// RegisterRoutes registers the study routes. Middleware such as the rate
// limiter applies to these routes only.
func (h *StudyHandler) RegisterRoutes(rg *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	routes := rg.Group("", middleware...)
	{
		routes.POST("/summarize", h.Summarize)
		routes.POST("/chat", h.Chat)
		routes.POST("/flashcard", h.Flashcards)
	}
}
