package model

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// Summary styles accepted by the summarize operation.
var SummaryStyles = []string{"concise", "detailed", "exam_prep", "beginner_friendly", "bullet_points"}

// Flashcard styles accepted by the flashcard operation.
var FlashcardStyles = []string{"general", "exam", "definitions", "conceptual", "beginner", "detailed"}

// DefaultFlashcardStyle is used when a flashcard request names no style.
const DefaultFlashcardStyle = "general"

// SummarizeRequest asks for a summary of inline content or a stored resource.
type SummarizeRequest struct {
	SessionID  string `json:"sessionId"`
	Style      string `json:"style"`
	Content    string `json:"content"`
	ResourceID string `json:"resourceId"`
}

// Validate checks the request. Content bounds apply to inline content only.
func (r *SummarizeRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}
	if !slices.Contains(SummaryStyles, r.Style) {
		return fmt.Errorf("%w: style must be one of %v", ErrInvalidInput, SummaryStyles)
	}
	if r.ResourceID == "" {
		return checkLength("content", r.Content, 10, 3000)
	}
	return nil
}

// ChatRequest is a free-form question within a session.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Validate checks the request.
func (r *ChatRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}
	return checkLength("message", r.Message, 1, 4000)
}

// FlashcardRequest asks for flashcards over inline content or a stored resource.
type FlashcardRequest struct {
	SessionID  string `json:"sessionId"`
	Style      string `json:"style"`
	Content    string `json:"content"`
	ResourceID string `json:"resourceId"`
}

// Validate checks the request and applies the default style.
func (r *FlashcardRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidInput)
	}
	if r.Style == "" {
		r.Style = DefaultFlashcardStyle
	}
	if !slices.Contains(FlashcardStyles, r.Style) {
		return fmt.Errorf("%w: style must be one of %v", ErrInvalidInput, FlashcardStyles)
	}
	if r.ResourceID == "" {
		return checkLength("content", r.Content, 10, 4000)
	}
	return nil
}

func checkLength(field, value string, lo, hi int) error {
	n := utf8.RuneCountInString(value)
	if n < lo {
		return fmt.Errorf("%w: %s must contain at least %d characters", ErrInvalidInput, field, lo)
	}
	if n > hi {
		return fmt.Errorf("%w: %s must contain at most %d characters", ErrInvalidInput, field, hi)
	}
	return nil
}
