package handlers

import (
	"net/http"

	"landrace-threat/internal/models"
	"landrace-threat/internal/service"
)

// TeamHandler handles team membership and comment requests
type TeamHandler struct {
	workflow *service.WorkflowService
}

// NewTeamHandler creates a new team handler
func NewTeamHandler(workflow *service.WorkflowService) *TeamHandler {
	return &TeamHandler{
		workflow: workflow,
	}
}

// InviteRequest adds a user to the team
type InviteRequest struct {
	UserID string      `json:"user_id" validate:"required,max=255,singleline"`
	Role   models.Role `json:"role"`
}

// RoleRequest changes the role of a member
type RoleRequest struct {
	Role models.Role `json:"role"`
}

// CommentRequest is the body of a new comment
type CommentRequest struct {
	Body string `json:"body"`
}

// ListTeam lists the team of an assessment
// @Summary List team
// @Tags Team
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {array} models.Assignment
// @Failure 403 {object} ErrorResponse "Not a team member"
// @Router /assessments/{id}/team [get]
func (h *TeamHandler) ListTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	team, err := h.workflow.ListTeam(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, team)
}

// InviteMember adds a user to the team
// @Summary Invite member
// @Description Add a user with a role. Reviewers are notified of the invitation.
// @Tags Team
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param request body InviteRequest true "User and role"
// @Success 201 {object} models.Assignment
// @Failure 400 {object} ErrorResponse "Invalid role"
// @Failure 403 {object} ErrorResponse "May not manage the team"
// @Failure 404 {object} ErrorResponse "Unknown user"
// @Failure 409 {object} ErrorResponse "Already a member"
// @Router /assessments/{id}/team [post]
func (h *TeamHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req InviteRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	m, err := h.workflow.InviteMember(r.Context(), r.PathValue("id"), userID, req.UserID, req.Role)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, m)
}

// ChangeMemberRole changes the role of a member
// @Summary Change member role
// @Tags Team
// @Accept json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param userId path string true "Member user ID"
// @Param request body RoleRequest true "New role"
// @Success 204 "Changed"
// @Failure 400 {object} ErrorResponse "Invalid role"
// @Failure 403 {object} ErrorResponse "May not manage the team"
// @Router /assessments/{id}/team/{userId} [put]
func (h *TeamHandler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if err := h.workflow.ChangeMemberRole(r.Context(), r.PathValue("id"), userID, r.PathValue("userId"), req.Role); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember removes a member from the team
// @Summary Remove member
// @Description Managers may remove anyone; every member may leave.
// @Tags Team
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param userId path string true "Member user ID"
// @Success 204 "Removed"
// @Failure 403 {object} ErrorResponse "May not manage the team"
// @Router /assessments/{id}/team/{userId} [delete]
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.workflow.RemoveMember(r.Context(), r.PathValue("id"), userID, r.PathValue("userId")); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListComments lists the comments of an assessment
// @Summary List comments
// @Tags Comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {array} models.Comment
// @Failure 403 {object} ErrorResponse "Not a team member"
// @Router /assessments/{id}/comments [get]
func (h *TeamHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	comments, err := h.workflow.ListComments(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, comments)
}

// AddComment appends a comment
// @Summary Add comment
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} ErrorResponse "Empty comment"
// @Failure 403 {object} ErrorResponse "May not comment"
// @Router /assessments/{id}/comments [post]
func (h *TeamHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	c, err := h.workflow.AddComment(r.Context(), r.PathValue("id"), userID, req.Body)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}
