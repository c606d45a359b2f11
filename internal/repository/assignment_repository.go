package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"landrace-threat/internal/models"
)

// AssignmentRepository handles team membership database operations
type AssignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create adds a user to an assessment team
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	query := `
		INSERT INTO assessment_assignments (assessment_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`

	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, a.AssessmentID, a.UserID, string(a.Role), now); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	a.CreatedAt = now
	return nil
}

// Get retrieves the assignment of a user on an assessment
func (r *AssignmentRepository) Get(ctx context.Context, assessmentID, userID string) (*models.Assignment, error) {
	if !isAssessmentID(assessmentID) {
		return nil, nil
	}

	query := `
		SELECT assessment_id, user_id, role, created_at
		FROM assessment_assignments
		WHERE assessment_id = $1 AND user_id = $2
	`

	a := &models.Assignment{}
	var role string
	err := r.db.QueryRowContext(ctx, query, assessmentID, userID).Scan(&a.AssessmentID, &a.UserID, &role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	a.Role = models.Role(role)
	return a, nil
}

// ListByAssessment lists the team of an assessment in join order
func (r *AssignmentRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]models.Assignment, error) {
	query := `
		SELECT assessment_id, user_id, role, created_at
		FROM assessment_assignments
		WHERE assessment_id = $1
		ORDER BY created_at ASC, user_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer closeRows(rows)

	var team []models.Assignment
	for rows.Next() {
		var a models.Assignment
		var role string
		if err := rows.Scan(&a.AssessmentID, &a.UserID, &role, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Role = models.Role(role)
		team = append(team, a)
	}

	return team, rows.Err()
}

// UpdateRole changes the role of an existing member
func (r *AssignmentRepository) UpdateRole(ctx context.Context, assessmentID, userID string, role models.Role) (int64, error) {
	query := `UPDATE assessment_assignments SET role = $3 WHERE assessment_id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, assessmentID, userID, string(role))
	if err != nil {
		return 0, fmt.Errorf("failed to update assignment role: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a member from a team
func (r *AssignmentRepository) Delete(ctx context.Context, assessmentID, userID string) (int64, error) {
	query := `DELETE FROM assessment_assignments WHERE assessment_id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, assessmentID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignment: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByAssessment removes the whole team of an assessment
func (r *AssignmentRepository) DeleteByAssessment(ctx context.Context, assessmentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessment_assignments WHERE assessment_id = $1`, assessmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}
	return res.RowsAffected()
}
