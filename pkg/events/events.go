// Package events exposes the WebSocket wire format for Go clients.
package events

import (
	"github.com/study-assistant/backend/internal/ws"
)

// Re-export wire types from internal/ws for external use
type (
	InitMessage = ws.InitMessage
	Ack         = ws.Ack
	Envelope    = ws.Envelope
)

// Handshake acknowledgment texts.
const (
	AckSessionConnected = ws.AckSessionConnected
	AckInvalidSession   = ws.AckInvalidSession
	AckDatabaseError    = ws.AckDatabaseError
	AckMissingFields    = ws.AckMissingFields
	AckInvalidFormat    = ws.AckInvalidFormat
	AckEvicted          = ws.AckEvicted
)

// Event names broadcast to a session.
const (
	SummarizeStart = "summarize:start"
	SummarizeDone  = "summarize:done"
	SummarizeError = "summarize:error"

	ChatStart = "chat:start"
	ChatDone  = "chat:done"
	ChatError = "chat:error"

	FlashcardsStart = "flashcards:start"
	FlashcardsDone  = "flashcards:done"
	FlashcardsError = "flashcards:error"

	ResourceUploaded = "resource:uploaded"
)

// Progress is the data of a *:start event.
type Progress struct {
	Message string `json:"message"`
}

// Result is the data of a *:done event.
type Result struct {
	Result any `json:"result"`
}

// Failure is the data of a *:error event.
type Failure struct {
	Error string `json:"error"`
}

// Uploaded is the data of a resource:uploaded event.
type Uploaded struct {
	ResourceID string `json:"resourceId"`
	Filename   string `json:"filename"`
}

// NewInit builds the handshake a client sends after connecting.
func NewInit(sessionID, clientID string) InitMessage {
	return InitMessage{Type: ws.MessageTypeInit, SessionID: sessionID, ClientID: clientID}
}
