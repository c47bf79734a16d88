package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/study-assistant/backend/internal/db"
	"github.com/study-assistant/backend/internal/model"
)

// SummaryRepository stores generated summaries.
type SummaryRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(conn *sql.DB, dialect db.Dialect) *SummaryRepository {
	return &SummaryRepository{db: conn, dialect: dialect}
}

// Create inserts a summary.
func (r *SummaryRepository) Create(ctx context.Context, s *model.Summary) error {
	query := r.dialect.Rebind(`
		INSERT INTO summaries (id, session_id, resource_id, style, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query, s.ID, s.SessionID, s.ResourceID, s.Style, s.Content, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	return nil
}

// ListBySession returns the summaries of a session, newest first.
func (r *SummaryRepository) ListBySession(ctx context.Context, sessionID string) ([]*model.Summary, error) {
	query := r.dialect.Rebind(`
		SELECT id, session_id, resource_id, style, content, created_at
		FROM summaries
		WHERE session_id = ?
		ORDER BY created_at DESC
	`)

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	summaries := []*model.Summary{}
	for rows.Next() {
		s := &model.Summary{}
		var resourceID sql.NullString
		if err := rows.Scan(&s.ID, &s.SessionID, &resourceID, &s.Style, &s.Content, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		if resourceID.Valid {
			rid := resourceID.String
			s.ResourceID = &rid
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return summaries, nil
}
