package service

import (
	"context"
	"strings"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

// CommentLedger is the append-only feedback log of an assessment
type CommentLedger struct {
	store repository.Store
}

// NewCommentLedger creates a new comment ledger
func NewCommentLedger(store repository.Store) *CommentLedger {
	return &CommentLedger{store: store}
}

// bind returns a ledger that writes inside tx
func (l *CommentLedger) bind(tx repository.Store) *CommentLedger {
	return &CommentLedger{store: tx}
}

// Append stores a comment. Blank bodies are rejected.
func (l *CommentLedger) Append(ctx context.Context, assessmentID, authorID, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.Validation("comment text is required")
	}

	c := &models.Comment{
		AssessmentID: assessmentID,
		AuthorID:     authorID,
		Body:         body,
	}
	if err := l.store.Comments().Create(ctx, c); err != nil {
		return nil, storeError(err, "failed to store comment")
	}
	return c, nil
}

// ListFor returns the comments of an assessment oldest first
func (l *CommentLedger) ListFor(ctx context.Context, assessmentID string) ([]models.Comment, error) {
	comments, err := l.store.Comments().ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, storeError(err, "failed to list comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// Count returns how many comments an assessment has
func (l *CommentLedger) Count(ctx context.Context, assessmentID string) (int, error) {
	n, err := l.store.Comments().CountByAssessment(ctx, assessmentID)
	if err != nil {
		return 0, storeError(err, "failed to count comments")
	}
	return n, nil
}
