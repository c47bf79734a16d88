// Package session creates, looks up and deletes study sessions.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/study-assistant/backend/internal/model"
	"github.com/study-assistant/backend/internal/repository"
	"github.com/study-assistant/backend/internal/slogging"
)

// ConnectionCloser closes the live connections bound to a session.
type ConnectionCloser interface {
	CloseSession(sessionID string) int
}

// Manager manages study sessions.
type Manager struct {
	repo   *repository.SessionRepository
	closer ConnectionCloser
	now    func() time.Time
}

// NewManager creates a new session manager. closer may be nil when no
// connections need closing on delete.
func NewManager(repo *repository.SessionRepository, closer ConnectionCloser) *Manager {
	return &Manager{
		repo:   repo,
		closer: closer,
		now:    time.Now,
	}
}

// CreateGuest creates a session that belongs to no user.
func (m *Manager) CreateGuest(ctx context.Context) (*model.Session, error) {
	return m.create(ctx, uuid.New().String(), nil)
}

// Create creates a session for userID. The session id is prefixed with the
// user id so a user's sessions are recognizable in logs.
func (m *Manager) Create(ctx context.Context, userID string) (*model.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", model.ErrInvalidInput)
	}
	return m.create(ctx, fmt.Sprintf("%s-%s", userID, uuid.New().String()), &userID)
}

func (m *Manager) create(ctx context.Context, id string, userID *string) (*model.Session, error) {
	now := m.now().UTC()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	slogging.Get().Info("Created session %s (guest=%t)", session.ID, session.IsGuest())
	return session, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*model.Session, error) {
	return m.repo.GetByID(ctx, id)
}

// List retrieves all sessions for a user.
func (m *Manager) List(ctx context.Context, userID string) ([]*model.Session, error) {
	return m.repo.List(ctx, userID)
}

// Exists reports whether a session exists.
func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	return m.repo.Exists(ctx, id)
}

// Delete removes a session and closes every connection still bound to it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}

	if m.closer != nil {
		m.closer.CloseSession(id)
	}

	slogging.Get().Info("Deleted session %s", id)
	return nil
}
