// Package study runs summarize, chat, flashcard and upload operations and
// reports their progress to the session's connections.
package study

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/study-assistant/backend/internal/agent"
	"github.com/study-assistant/backend/internal/extract"
	"github.com/study-assistant/backend/internal/model"
	"github.com/study-assistant/backend/internal/repository"
	"github.com/study-assistant/backend/internal/slogging"
	"github.com/study-assistant/backend/internal/ws"
	"github.com/study-assistant/backend/pkg/events"
)

// MaxResourceContent is how much of a stored resource is sent to the agent.
const MaxResourceContent = 4000

// Agent generates study material.
type Agent interface {
	Summarize(ctx context.Context, style, content string) (*agent.SummaryResult, error)
	Chat(ctx context.Context, message string) (string, error)
	Flashcards(ctx context.Context, style, content string) ([]model.Flashcard, error)
}

// Service runs study operations.
type Service struct {
	sessions  *repository.SessionRepository
	resources *repository.ResourceRepository
	summaries *repository.SummaryRepository
	agent     Agent
	publisher ws.Publisher
	extract   func([]byte) (string, error)
	now       func() time.Time
}

// NewService creates a study Service.
func NewService(
	sessions *repository.SessionRepository,
	resources *repository.ResourceRepository,
	summaries *repository.SummaryRepository,
	studyAgent Agent,
	publisher ws.Publisher,
) *Service {
	return &Service{
		sessions:  sessions,
		resources: resources,
		summaries: summaries,
		agent:     studyAgent,
		publisher: publisher,
		extract:   extract.PDFText,
		now:       time.Now,
	}
}

// Summarize summarizes inline content or a stored resource and stores the
// result.
func (s *Service) Summarize(ctx context.Context, req *model.SummarizeRequest) (*agent.SummaryResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	content, err := s.resolveContent(ctx, req.SessionID, req.ResourceID, req.Content)
	if err != nil {
		return nil, err
	}

	s.publisher.Broadcast(req.SessionID, events.SummarizeStart, events.Progress{Message: "Summarization in progress..."})

	result, err := s.agent.Summarize(ctx, req.Style, content)
	if err != nil {
		slogging.Get().Error("Summarize failed for session %s: %v", req.SessionID, err)
		s.publisher.Broadcast(req.SessionID, events.SummarizeError, events.Failure{Error: "Summarization failed. Please try again."})
		return nil, err
	}

	summary := &model.Summary{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Style:     result.Style,
		Content:   result.Summary,
		CreatedAt: s.now().UTC(),
	}
	if req.ResourceID != "" {
		summary.ResourceID = &req.ResourceID
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		// The caller still gets the summary; only history is lost.
		slogging.Get().Error("Failed to store summary for session %s: %v", req.SessionID, err)
	}

	s.publisher.Broadcast(req.SessionID, events.SummarizeDone, events.Result{Result: result.Summary})
	return result, nil
}

// Chat answers a question within a session.
func (s *Service) Chat(ctx context.Context, req *model.ChatRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := s.requireSession(ctx, req.SessionID); err != nil {
		return "", err
	}

	s.publisher.Broadcast(req.SessionID, events.ChatStart, events.Progress{Message: "Processing chat..."})

	reply, err := s.agent.Chat(ctx, req.Message)
	if err != nil {
		slogging.Get().Error("Chat failed for session %s: %v", req.SessionID, err)
		s.publisher.Broadcast(req.SessionID, events.ChatError, events.Failure{Error: "Chat failed. Please try again."})
		return "", err
	}

	s.publisher.Broadcast(req.SessionID, events.ChatDone, events.Result{Result: reply})
	return reply, nil
}

// Flashcards generates flashcards from inline content or a stored resource.
func (s *Service) Flashcards(ctx context.Context, req *model.FlashcardRequest) ([]model.Flashcard, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	content, err := s.resolveContent(ctx, req.SessionID, req.ResourceID, req.Content)
	if err != nil {
		return nil, err
	}

	s.publisher.Broadcast(req.SessionID, events.FlashcardsStart, events.Progress{Message: "Generating flashcards..."})

	cards, err := s.agent.Flashcards(ctx, req.Style, content)
	if err != nil {
		slogging.Get().Error("Flashcards failed for session %s: %v", req.SessionID, err)
		s.publisher.Broadcast(req.SessionID, events.FlashcardsError, events.Failure{Error: "Flashcard generation failed. Please try again."})
		return nil, err
	}

	s.publisher.Broadcast(req.SessionID, events.FlashcardsDone, events.Result{Result: cards})
	return cards, nil
}

// Upload extracts the text of a PDF, stores it as a resource of the
// session and announces it to the session's connections.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (*model.Resource, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", model.ErrInvalidInput)
	}
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	text, err := s.extract(data)
	if err != nil {
		return nil, err
	}

	res := &model.Resource{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Filename:  filename,
		Content:   text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.resources.Create(ctx, res); err != nil {
		return nil, err
	}

	slogging.Get().Info("Stored resource %s (%s) for session %s", res.ID, slogging.SanitizeLogMessage(filename), sessionID)
	s.publisher.Broadcast(sessionID, events.ResourceUploaded, events.Uploaded{ResourceID: res.ID, Filename: filename})
	return res, nil
}

// Resources lists the resources of a session.
func (s *Service) Resources(ctx context.Context, sessionID string) ([]*model.Resource, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.resources.ListBySession(ctx, sessionID)
}

// Summaries lists the stored summaries of a session.
func (s *Service) Summaries(ctx context.Context, sessionID string) ([]*model.Summary, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.summaries.ListBySession(ctx, sessionID)
}

func (s *Service) requireSession(ctx context.Context, sessionID string) error {
	ok, err := s.sessions.Exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrSessionNotFound
	}
	return nil
}

// resolveContent returns inline content, or the session's stored resource
// truncated for the agent.
func (s *Service) resolveContent(ctx context.Context, sessionID, resourceID, inline string) (string, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return "", err
	}
	if resourceID == "" {
		return inline, nil
	}

	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return "", err
	}
	if res.SessionID != sessionID {
		return "", model.ErrResourceNotFound
	}
	return truncate(res.Content, MaxResourceContent), nil
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
