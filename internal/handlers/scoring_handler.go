package handlers

import (
	"net/http"

	"landrace-threat/internal/scoring"
)

// ScoringHandler exposes the criteria catalogue and score previews
type ScoringHandler struct {
	catalogue *scoring.Catalogue
}

// NewScoringHandler creates a new scoring handler
func NewScoringHandler(catalogue *scoring.Catalogue) *ScoringHandler {
	return &ScoringHandler{
		catalogue: catalogue,
	}
}

// PreviewRequest carries the subcriteria to score
type PreviewRequest struct {
	Subcriteria scoring.Values `json:"subcriteria"`
}

// PreviewResponse is the derived result of a set of subcriteria
type PreviewResponse struct {
	scoring.Result
	CategoryLabel   string   `json:"category_label"`
	MissingRequired []string `json:"missing_required"`
}

// GetCriteria returns the subcriteria catalogue
// @Summary Get criteria catalogue
// @Tags Scoring
// @Produce json
// @Success 200 {object} scoring.Catalogue
// @Router /scoring/criteria [get]
func (h *ScoringHandler) GetCriteria(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.catalogue)
}

// Preview scores subcriteria without storing anything
// @Summary Preview score
// @Description Compute score, risk percentage and category for a set of subcriteria
// @Tags Scoring
// @Accept json
// @Produce json
// @Param request body PreviewRequest true "Subcriteria"
// @Success 200 {object} PreviewResponse
// @Failure 400 {object} ErrorResponse "Unknown subcriterion or value out of range"
// @Router /scoring/preview [post]
func (h *ScoringHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := h.catalogue.Validate(req.Subcriteria); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	result := scoring.Compute(req.Subcriteria)
	missing := h.catalogue.MissingRequired(req.Subcriteria)
	if missing == nil {
		missing = []string{}
	}

	respondWithJSON(w, http.StatusOK, PreviewResponse{
		Result:          result,
		CategoryLabel:   result.Category.Label(),
		MissingRequired: missing,
	})
}
