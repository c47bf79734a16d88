// Package ws provides the per-session WebSocket fan-out for study sessions.
//
// The package implements:
//   - Registry: session id -> client id -> connection, with eviction of a
//     connection whose (session, client) pair is claimed again
//   - Validator: checks a claimed session id against the session store
//   - Handler: runs each connection through awaiting-init, active and closed
//   - Broadcaster: delivers {event, data} envelopes to a session's connections
//   - Relay: carries broadcasts across instances over Redis pub/sub
//   - Service: owns the above and closes connections of deleted sessions
package ws
