package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrResourceNotFound is returned when a resource is not found.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when a study request fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnexpectedAgentOutput is returned when the agent reply cannot be
	// interpreted as the requested result.
	ErrUnexpectedAgentOutput = errors.New("unexpected agent output")
)
