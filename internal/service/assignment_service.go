package service

import (
	"context"
	"errors"

	"landrace-threat/internal/config"
	"landrace-threat/internal/errs"
	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

// AssignmentRegistry manages assessment teams and derives capabilities
type AssignmentRegistry struct {
	store  repository.Store
	policy string
}

// NewAssignmentRegistry creates a registry. policy is one of the
// config.TeamPolicy* values and decides who may manage the team.
func NewAssignmentRegistry(store repository.Store, policy string) *AssignmentRegistry {
	if policy == "" {
		policy = config.TeamPolicyMembers
	}
	return &AssignmentRegistry{
		store:  store,
		policy: policy,
	}
}

// bind returns a registry that works inside tx
func (r *AssignmentRegistry) bind(tx repository.Store) *AssignmentRegistry {
	return &AssignmentRegistry{store: tx, policy: r.policy}
}

// CapabilitiesFor returns the capabilities granted by role under the
// registry's team policy
func (r *AssignmentRegistry) CapabilitiesFor(role models.Role) models.Capabilities {
	caps := role.Capabilities()
	if !caps.IsMember() {
		return caps
	}
	switch r.policy {
	case config.TeamPolicyEditors:
		caps.CanManageTeam = role.IsEditor()
	default:
		caps.CanManageTeam = true
	}
	return caps
}

// CapabilitiesOf returns what userID may do on an assessment. Users without
// a role get no capabilities.
func (r *AssignmentRegistry) CapabilitiesOf(ctx context.Context, assessmentID, userID string) (models.Capabilities, error) {
	a, err := r.store.Assignments().Get(ctx, assessmentID, userID)
	if err != nil {
		return models.Capabilities{}, storeError(err, "failed to load assignment")
	}
	if a == nil {
		return models.Capabilities{}, nil
	}
	return r.CapabilitiesFor(a.Role), nil
}

// Team lists the members of an assessment
func (r *AssignmentRegistry) Team(ctx context.Context, assessmentID string) ([]models.Assignment, error) {
	team, err := r.store.Assignments().ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, storeError(err, "failed to list team")
	}
	if team == nil {
		team = []models.Assignment{}
	}
	return team, nil
}

// AddMember gives userID a role. A user holds at most one role per
// assessment.
func (r *AssignmentRegistry) AddMember(ctx context.Context, assessmentID, userID string, role models.Role) (*models.Assignment, error) {
	if blank(userID) {
		return nil, errs.Validation("user id is required")
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, errs.Validation("%s", err.Error())
	}

	a := &models.Assignment{
		AssessmentID: assessmentID,
		UserID:       userID,
		Role:         role,
	}
	if err := r.store.Assignments().Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errs.New(errs.KindDuplicateMember, "user %s already has a role on this assessment", userID)
		}
		return nil, storeError(err, "failed to add team member")
	}
	return a, nil
}

// RemoveMember drops userID from the team. Removing a non-member is a no-op.
func (r *AssignmentRegistry) RemoveMember(ctx context.Context, assessmentID, userID string) error {
	if _, err := r.store.Assignments().Delete(ctx, assessmentID, userID); err != nil {
		return storeError(err, "failed to remove team member")
	}
	return nil
}

// ChangeRole switches the role of an existing member. It reports false when
// userID is not a member.
func (r *AssignmentRegistry) ChangeRole(ctx context.Context, assessmentID, userID string, role models.Role) (bool, error) {
	if _, err := models.ParseRole(string(role)); err != nil {
		return false, errs.Validation("%s", err.Error())
	}
	n, err := r.store.Assignments().UpdateRole(ctx, assessmentID, userID, role)
	if err != nil {
		return false, storeError(err, "failed to change role")
	}
	return n > 0, nil
}
