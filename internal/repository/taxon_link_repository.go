package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"landrace-threat/internal/models"
)

// TaxonLinkRepository handles taxonomy link database operations
type TaxonLinkRepository struct {
	db DBTX
}

// NewTaxonLinkRepository creates a new taxon link repository
func NewTaxonLinkRepository(db DBTX) *TaxonLinkRepository {
	return &TaxonLinkRepository{db: db}
}

// Set creates or replaces the taxon link of an assessment
func (r *TaxonLinkRepository) Set(ctx context.Context, link *models.TaxonLink) error {
	query := `
		INSERT INTO assessment_taxon_links (assessment_id, taxon_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (assessment_id) DO UPDATE SET taxon_id = EXCLUDED.taxon_id
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, link.AssessmentID, link.TaxonID, time.Now()).Scan(&link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to set taxon link: %w", err)
	}
	return nil
}

// Get retrieves the taxon link of an assessment
func (r *TaxonLinkRepository) Get(ctx context.Context, assessmentID string) (*models.TaxonLink, error) {
	query := `SELECT assessment_id, taxon_id, created_at FROM assessment_taxon_links WHERE assessment_id = $1`

	link := &models.TaxonLink{}
	err := r.db.QueryRowContext(ctx, query, assessmentID).Scan(&link.AssessmentID, &link.TaxonID, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get taxon link: %w", err)
	}
	return link, nil
}

// DeleteByAssessment removes the taxon link of an assessment
func (r *TaxonLinkRepository) DeleteByAssessment(ctx context.Context, assessmentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessment_taxon_links WHERE assessment_id = $1`, assessmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete taxon link: %w", err)
	}
	return res.RowsAffected()
}
