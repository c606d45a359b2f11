package models

import (
	"fmt"
	"time"

	"landrace-threat/internal/scoring"
)

// Status is the lifecycle state of an assessment
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusReturned      Status = "returned"
	StatusApproved      Status = "approved"
)

// ParseStatus converts a string into a known Status
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusPendingReview, StatusReturned, StatusApproved:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Editable reports whether assessors may change content in this status
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusReturned
}

// Role is a team member's role on a single assessment
type Role string

const (
	RoleAssessor   Role = "assessor"
	RoleCoAssessor Role = "co-assessor"
	RoleReviewer   Role = "reviewer"
	RoleSpectator  Role = "spectator"
)

// ParseRole converts a string into a known Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAssessor, RoleCoAssessor, RoleReviewer, RoleSpectator:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Capabilities is what a user may do on one assessment
type Capabilities struct {
	CanEdit       bool `json:"can_edit"`
	CanReview     bool `json:"can_review"`
	CanComment    bool `json:"can_comment"`
	CanManageTeam bool `json:"can_manage_team"`
}

// IsMember reports whether the capabilities belong to any team member
func (c Capabilities) IsMember() bool {
	return c.CanEdit || c.CanReview || c.CanComment || c.CanManageTeam
}

// Capabilities returns the base capabilities of a role. Team management is
// decided by the registry's policy, not by the role alone.
func (r Role) Capabilities() Capabilities {
	switch r {
	case RoleAssessor, RoleCoAssessor:
		return Capabilities{CanEdit: true, CanComment: true}
	case RoleReviewer:
		return Capabilities{CanReview: true, CanComment: true}
	case RoleSpectator:
		return Capabilities{CanComment: true}
	}
	return Capabilities{}
}

// IsEditor reports whether the role can edit content
func (r Role) IsEditor() bool {
	return r == RoleAssessor || r == RoleCoAssessor
}

// Assessment is one scored evaluation of a landrace. Drafts and published
// assessments share this record; Published flips on approval.
type Assessment struct {
	ID             string         `json:"id"`
	PublicID       *string        `json:"public_id,omitempty"`
	LandraceName   string         `json:"landrace_name"`
	CropName       string         `json:"crop_name"`
	AssessorName   string         `json:"assessor_name"`
	AssessmentDate *time.Time     `json:"assessment_date,omitempty"`
	TaxonID        *string        `json:"taxon_id,omitempty"`
	Subcriteria    scoring.Values `json:"subcriteria"`

	Score       int              `json:"score"`
	MaxScore    int              `json:"max_score"`
	RiskPercent float64          `json:"risk_percent"`
	Category    scoring.Category `json:"category"`

	Status    Status `json:"status"`
	Published bool   `json:"published"`
	Version   int    `json:"version"`

	SubmittedForReviewAt *time.Time `json:"submitted_for_review_at,omitempty"`
	ReviewedAt           *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy           *string    `json:"reviewed_by,omitempty"`
	ReviewerName         *string    `json:"reviewer_name,omitempty"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	ArchiveURL           *string    `json:"archive_url,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyScore recomputes the derived fields from Subcriteria
func (a *Assessment) ApplyScore() {
	r := scoring.Compute(a.Subcriteria)
	a.Score = r.Score
	a.MaxScore = r.MaxScore
	a.RiskPercent = r.RiskPercent
	a.Category = r.Category
}

// Assignment links a user to an assessment with a role
type Assignment struct {
	AssessmentID string    `json:"assessment_id"`
	UserID       string    `json:"user_id"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is one entry of an assessment's feedback log
type Comment struct {
	ID           int64     `json:"id"`
	AssessmentID string    `json:"assessment_id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationType tags what triggered a notification
type NotificationType string

const (
	NotificationSubmitted  NotificationType = "assessment_submitted"
	NotificationReturned   NotificationType = "assessment_returned"
	NotificationApproved   NotificationType = "assessment_approved"
	NotificationInvitation NotificationType = "team_invitation"
)

// Notification is an in-app message for one recipient
type Notification struct {
	ID           int64            `json:"id"`
	RecipientID  string           `json:"recipient_id"`
	AssessmentID string           `json:"assessment_id"`
	Type         NotificationType `json:"type"`
	Message      string           `json:"message"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"created_at"`
}

// TaxonLink ties a draft assessment to a taxonomy entry
type TaxonLink struct {
	AssessmentID string    `json:"assessment_id"`
	TaxonID      string    `json:"taxon_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is a directory entry resolved from the identity provider
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, falling back to the email address
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        int64     `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
