package model

import (
	"time"
)

// Session is a persisted study session. Connections and events are grouped
// by session id.
type Session struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsGuest reports whether the session was created without a user.
func (s *Session) IsGuest() bool {
	return s.UserID == nil
}

// Resource is study material uploaded into a session.
type Resource struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is a generated summary stored for a session.
type Summary struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	ResourceID *string   `json:"resourceId,omitempty"`
	Style      string    `json:"style"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Flashcard is a single question/answer pair.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
