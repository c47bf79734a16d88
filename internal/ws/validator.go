package ws

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable is returned when the session store could not answer.
// It is distinct from a session that does not exist.
var ErrStoreUnavailable = errors.New("session store unavailable")

// SessionStore reports whether a session exists.
type SessionStore interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Validator checks a claimed session id against the store.
type Validator struct {
	store   SessionStore
	timeout time.Duration
}

// NewValidator creates a Validator. A zero timeout leaves the caller's
// context deadline in charge.
func NewValidator(store SessionStore, timeout time.Duration) *Validator {
	return &Validator{store: store, timeout: timeout}
}

// Exists reports whether sessionID names a stored session. Store failures
// are wrapped in ErrStoreUnavailable.
func (v *Validator) Exists(ctx context.Context, sessionID string) (bool, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	ok, err := v.store.Exists(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}
