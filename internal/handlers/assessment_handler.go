package handlers

import (
	"net/http"

	"landrace-threat/internal/service"
)

// AssessmentHandler handles assessment lifecycle requests
type AssessmentHandler struct {
	workflow *service.WorkflowService
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(workflow *service.WorkflowService) *AssessmentHandler {
	return &AssessmentHandler{
		workflow: workflow,
	}
}

// ReturnRequest optionally carries the feedback left when returning an
// assessment
type ReturnRequest struct {
	Comment string `json:"comment,omitempty"`
}

// TaxonRequest links a taxonomy entry; an empty id removes the link
type TaxonRequest struct {
	TaxonID string `json:"taxon_id" validate:"max=255,singleline"`
}

// CreateAssessment creates a new draft
// @Summary Create assessment
// @Description Create a draft assessment. The caller becomes its assessor.
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.DraftRequest true "Unit data and optional subcriteria"
// @Success 201 {object} models.Assessment
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /assessments [post]
func (h *AssessmentHandler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.DraftRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	a, err := h.workflow.CreateAssessment(r.Context(), userID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, a)
}

// GetAssessment returns a draft with the caller's capabilities
// @Summary Get assessment
// @Description Get an unpublished assessment. Only team members may read it.
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} service.AssessmentView
// @Failure 403 {object} ErrorResponse "Not a team member"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.workflow.GetAssessment(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// UpdateAssessment saves changes to a draft
// @Summary Save draft
// @Description Update unit data or subcriteria of a draft or returned assessment. Send "version" to reject stale writes.
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param request body service.DraftUpdate true "Fields to change"
// @Success 200 {object} models.Assessment
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Wrong status or stale version"
// @Router /assessments/{id} [put]
func (h *AssessmentHandler) UpdateAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd service.DraftUpdate
	if !decodeJSON(w, r, &upd, false) {
		return
	}

	a, err := h.workflow.SaveDraft(r.Context(), r.PathValue("id"), userID, upd)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

// DeleteAssessment deletes an unpublished assessment
// @Summary Delete assessment
// @Tags Assessments
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 204 "Deleted"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Already approved"
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) DeleteAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.workflow.DeleteAssessment(r.Context(), r.PathValue("id"), userID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitAssessment finalises the scores and hands the assessment to review
// @Summary Submit for review
// @Description Score and submit a draft. Names a reviewer when the team has none.
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param request body service.SubmitRequest false "Final subcriteria and reviewer"
// @Success 200 {object} models.Assessment
// @Failure 400 {object} ErrorResponse "Missing scores or reviewer"
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Wrong status"
// @Router /assessments/{id}/submit [post]
func (h *AssessmentHandler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req service.SubmitRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	a, err := h.workflow.ScoreAndSubmit(r.Context(), r.PathValue("id"), userID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

// ReturnAssessment sends an assessment back to its assessors
// @Summary Return for revision
// @Description Return a pending assessment. At least one comment must exist; a comment may be sent along.
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param request body ReturnRequest false "Optional feedback"
// @Success 200 {object} models.Assessment
// @Failure 400 {object} ErrorResponse "No feedback"
// @Failure 403 {object} ErrorResponse "Not a reviewer"
// @Failure 409 {object} ErrorResponse "Wrong status"
// @Router /assessments/{id}/return [post]
func (h *AssessmentHandler) ReturnAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ReturnRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	a, err := h.workflow.ReturnForRevision(r.Context(), r.PathValue("id"), userID, req.Comment)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

// ApproveAssessment publishes an assessment
// @Summary Approve
// @Description Approve a pending assessment and publish it under a public id. A 502 with "reconcile" set means publication must be finished by reconciliation.
// @Tags Review
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 403 {object} ErrorResponse "Not a reviewer"
// @Failure 409 {object} ErrorResponse "Wrong status or concurrent change"
// @Failure 502 {object} ErrorResponse "Publication incomplete"
// @Router /assessments/{id}/approve [post]
func (h *AssessmentHandler) ApproveAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	a, err := h.workflow.Approve(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

// LinkTaxon sets or clears the taxonomy link of a draft
// @Summary Link taxon
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param request body TaxonRequest true "Taxon"
// @Success 200 {object} models.Assessment
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Failure 409 {object} ErrorResponse "Already approved"
// @Router /assessments/{id}/taxon [put]
func (h *AssessmentHandler) LinkTaxon(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req TaxonRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	a, err := h.workflow.LinkTaxon(r.Context(), r.PathValue("id"), userID, req.TaxonID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

// GetPublished returns a published assessment
// @Summary Get published assessment
// @Description Public read of an approved assessment by its public id
// @Tags Published
// @Produce json
// @Param publicId path string true "Public ID, e.g. LTA-2026-1A2B3C4D"
// @Success 200 {object} models.Assessment
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /published/{publicId} [get]
func (h *AssessmentHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	a, err := h.workflow.GetPublished(r.Context(), r.PathValue("publicId"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}
