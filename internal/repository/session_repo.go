package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/study-assistant/backend/internal/db"
	"github.com/study-assistant/backend/internal/model"
)

// SessionRepository provides data access for sessions.
type SessionRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *sql.DB, dialect db.Dialect) *SessionRepository {
	return &SessionRepository{db: conn, dialect: dialect}
}

// Create inserts a new session into the database.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := r.dialect.Rebind(`
		INSERT INTO sessions (id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	query := r.dialect.Rebind(`
		SELECT id, user_id, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`)

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// List retrieves all sessions for a user, newest first.
func (r *SessionRepository) List(ctx context.Context, userID string) ([]*model.Session, error) {
	query := r.dialect.Rebind(`
		SELECT id, user_id, created_at, updated_at
		FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC
	`)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Delete removes a session from the database. Resources and summaries
// go with it.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := r.dialect.Rebind(`DELETE FROM sessions WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// Exists checks if a session exists. A missing row is (false, nil); any
// driver failure is returned as an error.
func (r *SessionRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := r.dialect.Rebind(`SELECT 1 FROM sessions WHERE id = ? LIMIT 1`)

	var exists int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	session := &model.Session{}
	var userID sql.NullString

	if err := row.Scan(&session.ID, &userID, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		uid := userID.String
		session.UserID = &uid
	}

	return session, nil
}
