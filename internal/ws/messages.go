package ws

import "encoding/json"

// MessageTypeInit is the only message type a connection accepts before it
// becomes active.
const MessageTypeInit = "init"

// Acknowledgment texts sent to clients during the init handshake.
const (
	AckSessionConnected = "Session connected"
	AckInvalidSession   = "Invalid sessionId"
	AckDatabaseError    = "Database error"
	AckMissingFields    = "Missing sessionId or clientId"
	AckInvalidFormat    = "Invalid message format"
	AckEvicted          = "Another connection established. Closing this one."
)

// InitMessage is the client's handshake.
type InitMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	ClientID  string `json:"clientId"`
}

// Ack is the server's reply to a handshake. Exactly one of Message or Error
// is set.
type Ack struct {
	Message   string `json:"message,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Envelope wraps every event broadcast to an active connection.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func errorAck(msg string) []byte {
	return marshalAck(Ack{Error: msg})
}

func marshalAck(ack Ack) []byte {
	// Ack only holds strings; Marshal cannot fail.
	data, _ := json.Marshal(ack)
	return data
}
