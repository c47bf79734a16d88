package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/study-assistant/backend/internal/db"
	"github.com/study-assistant/backend/internal/model"
)

// ResourceRepository provides data access for uploaded study material.
type ResourceRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewResourceRepository creates a new ResourceRepository.
func NewResourceRepository(conn *sql.DB, dialect db.Dialect) *ResourceRepository {
	return &ResourceRepository{db: conn, dialect: dialect}
}

// Create inserts a resource. The owning session must exist.
func (r *ResourceRepository) Create(ctx context.Context, res *model.Resource) error {
	query := r.dialect.Rebind(`
		INSERT INTO resources (id, session_id, filename, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query, res.ID, res.SessionID, res.Filename, res.Content, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

// GetByID retrieves a resource including its extracted content.
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	query := r.dialect.Rebind(`
		SELECT id, session_id, filename, content, created_at
		FROM resources
		WHERE id = ?
	`)

	res := &model.Resource{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&res.ID, &res.SessionID, &res.Filename, &res.Content, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

// ListBySession returns the resources of a session without their content,
// oldest first.
func (r *ResourceRepository) ListBySession(ctx context.Context, sessionID string) ([]*model.Resource, error) {
	query := r.dialect.Rebind(`
		SELECT id, session_id, filename, created_at
		FROM resources
		WHERE session_id = ?
		ORDER BY created_at ASC
	`)

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []*model.Resource{}
	for rows.Next() {
		res := &model.Resource{}
		if err := rows.Scan(&res.ID, &res.SessionID, &res.Filename, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}
	return resources, nil
}
