package handlers

import (
	"net/http"

	"landrace-threat/internal/service"
)

// AdminHandler handles operator requests
type AdminHandler struct {
	workflow *service.WorkflowService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(workflow *service.WorkflowService) *AdminHandler {
	return &AdminHandler{
		workflow: workflow,
	}
}

// Reconcile finishes approvals that did not complete (admin only)
// @Summary Run reconciliation
// @Description Publish approved assessments whose publication did not complete and remove their draft-side rows
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ReconcileReport
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - admin only"
// @Router /admin/reconcile [post]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.workflow.Reconcile(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
