package repository

import (
	"context"
	"fmt"
	"time"

	"landrace-threat/internal/models"
)

// CommentRepository handles feedback comment database operations
type CommentRepository struct {
	db DBTX
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create appends a comment
func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	query := `
		INSERT INTO assessment_comments (assessment_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, c.AssessmentID, c.AuthorID, c.Body, time.Now()).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByAssessment lists the comments of an assessment oldest first
func (r *CommentRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]models.Comment, error) {
	query := `
		SELECT id, assessment_id, author_id, body, created_at
		FROM assessment_comments
		WHERE assessment_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer closeRows(rows)

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.AssessmentID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

// CountByAssessment counts the comments of an assessment
func (r *CommentRepository) CountByAssessment(ctx context.Context, assessmentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessment_comments WHERE assessment_id = $1`, assessmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

// DeleteByAssessment removes all comments of an assessment
func (r *CommentRepository) DeleteByAssessment(ctx context.Context, assessmentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessment_comments WHERE assessment_id = $1`, assessmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comments: %w", err)
	}
	return res.RowsAffected()
}
