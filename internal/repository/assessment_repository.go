package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"landrace-threat/internal/models"
	"landrace-threat/internal/scoring"
)

// AssessmentRepository handles assessment database operations
type AssessmentRepository struct {
	db DBTX
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db DBTX) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

const assessmentColumns = `
	id, public_id, landrace_name, crop_name, assessor_name, assessment_date, taxon_id,
	subcriteria, score, max_score, risk_percent, category, status, published, version,
	submitted_for_review_at, reviewed_at, reviewed_by, reviewer_name, approved_at, archive_url,
	created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*models.Assessment, error) {
	var a models.Assessment
	var subcriteria []byte
	var category, status string

	err := row.Scan(
		&a.ID, &a.PublicID, &a.LandraceName, &a.CropName, &a.AssessorName, &a.AssessmentDate, &a.TaxonID,
		&subcriteria, &a.Score, &a.MaxScore, &a.RiskPercent, &category, &status, &a.Published, &a.Version,
		&a.SubmittedForReviewAt, &a.ReviewedAt, &a.ReviewedBy, &a.ReviewerName, &a.ApprovedAt, &a.ArchiveURL,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Category = scoring.Category(category)
	a.Status = models.Status(status)
	if len(subcriteria) > 0 {
		if err := json.Unmarshal(subcriteria, &a.Subcriteria); err != nil {
			return nil, fmt.Errorf("failed to decode subcriteria of %s: %w", a.ID, err)
		}
	}
	if a.Subcriteria == nil {
		a.Subcriteria = scoring.Values{}
	}
	return &a, nil
}

func encodeSubcriteria(values scoring.Values) (string, error) {
	if values == nil {
		return "{}", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode subcriteria: %w", err)
	}
	return string(data), nil
}

// Create inserts a new assessment
func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	subcriteria, err := encodeSubcriteria(a.Subcriteria)
	if err != nil {
		return err
	}

	now := time.Now()
	if a.Version == 0 {
		a.Version = 1
	}

	query := `
		INSERT INTO assessments (
			id, public_id, landrace_name, crop_name, assessor_name, assessment_date, taxon_id,
			subcriteria, score, max_score, risk_percent, category, status, published, version,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		a.ID, a.PublicID, a.LandraceName, a.CropName, a.AssessorName, a.AssessmentDate, a.TaxonID,
		subcriteria, a.Score, a.MaxScore, a.RiskPercent, string(a.Category), string(a.Status), a.Published, a.Version,
		a.CreatedBy, now,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	return nil
}

func (r *AssessmentRepository) getOne(ctx context.Context, where string, arg any) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE ` + where

	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// GetByID retrieves an assessment regardless of its publication state
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*models.Assessment, error) {
	if !isAssessmentID(id) {
		return nil, nil
	}
	return r.getOne(ctx, `id = $1`, id)
}

// GetDraft retrieves an unpublished assessment
func (r *AssessmentRepository) GetDraft(ctx context.Context, id string) (*models.Assessment, error) {
	if !isAssessmentID(id) {
		return nil, nil
	}
	return r.getOne(ctx, `id = $1 AND published = FALSE`, id)
}

// GetPublished retrieves a published assessment by its public id
func (r *AssessmentRepository) GetPublished(ctx context.Context, publicID string) (*models.Assessment, error) {
	return r.getOne(ctx, `public_id = $1 AND published = TRUE`, publicID)
}

// Update writes all mutable fields with a compare-and-swap on version and status
func (r *AssessmentRepository) Update(ctx context.Context, a *models.Assessment, expectedVersion int, expectedStatus models.Status) (bool, error) {
	subcriteria, err := encodeSubcriteria(a.Subcriteria)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE assessments SET
			public_id = $2, landrace_name = $3, crop_name = $4, assessor_name = $5,
			assessment_date = $6, taxon_id = $7, subcriteria = $8, score = $9, max_score = $10,
			risk_percent = $11, category = $12, status = $13, published = $14,
			submitted_for_review_at = $15, reviewed_at = $16, reviewed_by = $17, reviewer_name = $18,
			approved_at = $19, archive_url = $20, version = version + 1, updated_at = $21
		WHERE id = $1 AND version = $22 AND status = $23
		RETURNING version, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		a.ID, a.PublicID, a.LandraceName, a.CropName, a.AssessorName,
		a.AssessmentDate, a.TaxonID, subcriteria, a.Score, a.MaxScore,
		a.RiskPercent, string(a.Category), string(a.Status), a.Published,
		a.SubmittedForReviewAt, a.ReviewedAt, a.ReviewedBy, a.ReviewerName,
		a.ApprovedAt, a.ArchiveURL, time.Now(),
		expectedVersion, string(expectedStatus),
	).Scan(&a.Version, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("failed to update assessment: %w", err)
	}

	return true, nil
}

// SetArchiveURL records where the published snapshot was stored
func (r *AssessmentRepository) SetArchiveURL(ctx context.Context, id, url string) error {
	query := `UPDATE assessments SET archive_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now()); err != nil {
		return fmt.Errorf("failed to set archive url: %w", err)
	}
	return nil
}

// Delete removes an assessment; dependent rows cascade
func (r *AssessmentRepository) Delete(ctx context.Context, id string) (int64, error) {
	if !isAssessmentID(id) {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assessment: %w", err)
	}
	return res.RowsAffected()
}

func (r *AssessmentRepository) list(ctx context.Context, query string, args ...any) ([]models.Assessment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer closeRows(rows)

	var assessments []models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, *a)
	}
	return assessments, rows.Err()
}

// ListByStatus lists unpublished assessments in a status, oldest first
func (r *AssessmentRepository) ListByStatus(ctx context.Context, status models.Status) ([]models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE status = $1 AND published = FALSE
		ORDER BY created_at ASC`
	return r.list(ctx, query, string(status))
}

// ListUnreconciled lists approved assessments whose publication is incomplete
func (r *AssessmentRepository) ListUnreconciled(ctx context.Context) ([]models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + `
		FROM assessments a
		WHERE a.status = 'approved' AND (
			a.published = FALSE
			OR EXISTS (SELECT 1 FROM assessment_assignments x WHERE x.assessment_id = a.id)
			OR EXISTS (SELECT 1 FROM assessment_comments c WHERE c.assessment_id = a.id)
			OR EXISTS (SELECT 1 FROM assessment_taxon_links l WHERE l.assessment_id = a.id)
		)
		ORDER BY a.updated_at ASC`
	return r.list(ctx, query)
}
