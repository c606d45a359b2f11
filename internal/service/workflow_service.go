package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"landrace-threat/internal/directory"
	"landrace-threat/internal/errs"
	"landrace-threat/internal/lifecycle"
	"landrace-threat/internal/lock"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/models"
	"landrace-threat/internal/notify"
	"landrace-threat/internal/objectstore"
	"landrace-threat/internal/repository"
	"landrace-threat/internal/scoring"
)

// Options configures a WorkflowService
type Options struct {
	// OperationTimeout bounds every operation whose context has no deadline
	OperationTimeout time.Duration
	TeamPolicy       string
	Catalogue        *scoring.Catalogue
	// Archive receives a JSON snapshot of each published assessment; nil disables it
	Archive objectstore.Store
	Metrics *metrics.WorkflowMetrics
	Now     func() time.Time
}

// WorkflowService orchestrates the assessment lifecycle
type WorkflowService struct {
	store      repository.Store
	registry   *AssignmentRegistry
	ledger     *CommentLedger
	dispatcher *notify.Dispatcher
	directory  *directory.Directory
	audit      *AuditService
	locks      *lock.KeyedMutex
	catalogue  *scoring.Catalogue
	archive    objectstore.Store
	metrics    *metrics.WorkflowMetrics
	timeout    time.Duration
	now        func() time.Time
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(
	store repository.Store,
	dispatcher *notify.Dispatcher,
	dir *directory.Directory,
	opts Options,
) *WorkflowService {
	if opts.Catalogue == nil {
		opts.Catalogue = scoring.DefaultCatalogue()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WorkflowService{
		store:      store,
		registry:   NewAssignmentRegistry(store, opts.TeamPolicy),
		ledger:     NewCommentLedger(store),
		dispatcher: dispatcher,
		directory:  dir,
		audit:      NewAuditService(store),
		locks:      lock.NewKeyedMutex(),
		catalogue:  opts.Catalogue,
		archive:    opts.Archive,
		metrics:    opts.Metrics,
		timeout:    opts.OperationTimeout,
		now:        opts.Now,
	}
}

// Registry exposes the team registry
func (s *WorkflowService) Registry() *AssignmentRegistry {
	return s.registry
}

// Catalogue returns the subcriteria catalogue drafts are validated against
func (s *WorkflowService) Catalogue() *scoring.Catalogue {
	return s.catalogue
}

// DraftRequest carries the fields of a new assessment
type DraftRequest struct {
	LandraceName   string         `json:"landrace_name" validate:"max=255,singleline"`
	CropName       string         `json:"crop_name" validate:"max=255,singleline"`
	AssessorName   string         `json:"assessor_name,omitempty" validate:"max=255,singleline"`
	AssessmentDate *time.Time     `json:"assessment_date,omitempty"`
	TaxonID        string         `json:"taxon_id,omitempty" validate:"max=255,singleline"`
	Subcriteria    scoring.Values `json:"subcriteria,omitempty"`
}

// DraftUpdate changes a draft. Nil fields keep their stored value; a
// non-nil Subcriteria replaces the stored scores.
type DraftUpdate struct {
	LandraceName   *string        `json:"landrace_name,omitempty"`
	CropName       *string        `json:"crop_name,omitempty"`
	AssessorName   *string        `json:"assessor_name,omitempty"`
	AssessmentDate *time.Time     `json:"assessment_date,omitempty"`
	Subcriteria    scoring.Values `json:"subcriteria,omitempty"`
	// ExpectedVersion rejects the update with Conflict when it is set and
	// the stored version differs
	ExpectedVersion int `json:"version,omitempty"`
}

// SubmitRequest finalises the scores and optionally names a reviewer
type SubmitRequest struct {
	Subcriteria scoring.Values `json:"subcriteria,omitempty"`
	ReviewerID  string         `json:"reviewer_id,omitempty"`
}

// AssessmentView is an assessment together with the caller's capabilities
type AssessmentView struct {
	*models.Assessment
	Capabilities models.Capabilities `json:"capabilities"`
}

func (s *WorkflowService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// acquire serialises operations on one assessment. The returned context
// carries the operation timeout.
func (s *WorkflowService) acquire(ctx context.Context, assessmentID string) (context.Context, func(), error) {
	ctx, cancel := s.withTimeout(ctx)
	unlock, err := s.locks.Lock(ctx, assessmentID)
	if err != nil {
		cancel()
		return nil, nil, errs.Dependency(err, "assessment %s is busy", assessmentID)
	}
	return ctx, func() {
		unlock()
		cancel()
	}, nil
}

func (s *WorkflowService) observe(operation string, start time.Time, err error) {
	s.metrics.RecordTransition(operation, outcomeOf(err), time.Since(start))
}

// loadDraft returns an unpublished assessment for reading
func (s *WorkflowService) loadDraft(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := s.store.Assessments().GetDraft(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load assessment")
	}
	if a == nil {
		return nil, errs.NotFound("assessment %s not found", id)
	}
	return a, nil
}

// loadForChange returns an assessment that may still be changed. Approved
// records are frozen.
func (s *WorkflowService) loadForChange(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := s.store.Assessments().GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load assessment")
	}
	if a == nil {
		return nil, errs.NotFound("assessment %s not found", id)
	}
	if a.Published || a.Status == models.StatusApproved {
		return nil, errs.New(errs.KindInvalidTransition, "assessment %s has already been approved", id)
	}
	return a, nil
}

// authorize evaluates t for userID against the current record
func (s *WorkflowService) authorize(ctx context.Context, t lifecycle.Transition, a *models.Assessment, userID string) (lifecycle.Outcome, error) {
	caps, err := s.registry.CapabilitiesOf(ctx, a.ID, userID)
	if err != nil {
		return lifecycle.Outcome{}, err
	}
	return lifecycle.Evaluate(t, lifecycle.Input{Current: a.Status, Caps: caps})
}

// requireManager rejects users who may not change the team
func (s *WorkflowService) requireManager(ctx context.Context, assessmentID, userID string) error {
	caps, err := s.registry.CapabilitiesOf(ctx, assessmentID, userID)
	if err != nil {
		return err
	}
	if !caps.CanManageTeam {
		return errs.Forbidden("not permitted to manage the team of this assessment")
	}
	return nil
}

// update writes a with optimistic concurrency
func (s *WorkflowService) update(ctx context.Context, store repository.Store, a *models.Assessment, version int, status models.Status) error {
	ok, err := store.Assessments().Update(ctx, a, version, status)
	if err != nil {
		return storeError(err, "failed to update assessment %s", a.ID)
	}
	if !ok {
		return errs.New(errs.KindConflict, "assessment %s was modified concurrently", a.ID)
	}
	return nil
}

// CreateAssessment starts a draft owned by authorID, who becomes its assessor
func (s *WorkflowService) CreateAssessment(ctx context.Context, authorID string, req DraftRequest) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() { s.observe("create", start, err) }()

	if blank(authorID) {
		return nil, errs.Forbidden("authentication required")
	}
	if blank(req.LandraceName) {
		return nil, errs.Validation("landrace name is required")
	}
	if blank(req.CropName) {
		return nil, errs.Validation("crop name is required")
	}
	if err := singleLine(map[string]*string{
		"landrace name": &req.LandraceName,
		"crop name":     &req.CropName,
		"assessor name": &req.AssessorName,
		"taxon id":      &req.TaxonID,
	}); err != nil {
		return nil, err
	}
	if err := s.catalogue.Validate(req.Subcriteria); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	assessorName := strings.TrimSpace(req.AssessorName)
	if assessorName == "" {
		assessorName = s.directory.Name(ctx, authorID, authorID)
	}
	assessmentDate := req.AssessmentDate
	if assessmentDate == nil {
		assessmentDate = timePtr(s.now().UTC().Truncate(24 * time.Hour))
	}
	values := req.Subcriteria.Clone()
	if values == nil {
		values = scoring.Values{}
	}

	a = &models.Assessment{
		ID:             uuid.NewString(),
		LandraceName:   strings.TrimSpace(req.LandraceName),
		CropName:       strings.TrimSpace(req.CropName),
		AssessorName:   assessorName,
		AssessmentDate: assessmentDate,
		Subcriteria:    values,
		Status:         models.StatusDraft,
		Version:        1,
		CreatedBy:      authorID,
	}
	if !blank(req.TaxonID) {
		a.TaxonID = strPtr(strings.TrimSpace(req.TaxonID))
	}
	a.ApplyScore()

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Assessments().Create(ctx, a); err != nil {
			return storeError(err, "failed to create assessment")
		}
		if _, err := s.registry.bind(tx).AddMember(ctx, a.ID, authorID, models.RoleAssessor); err != nil {
			return err
		}
		if a.TaxonID != nil {
			if err := tx.TaxonLinks().Set(ctx, &models.TaxonLink{AssessmentID: a.ID, TaxonID: *a.TaxonID}); err != nil {
				return storeError(err, "failed to link taxon")
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to create assessment")
	}

	s.audit.Log(ctx, authorID, "create", "assessment",
		fmt.Sprintf("Created assessment %s of %s (%s)", a.ID, a.LandraceName, a.CropName))
	slog.Info("Assessment created", "assessment_id", a.ID, "user_id", authorID)

	return a, nil
}

// SaveDraft updates the content of a draft or returned assessment
func (s *WorkflowService) SaveDraft(ctx context.Context, id, actorID string, upd DraftUpdate) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() { s.observe(string(lifecycle.Edit), start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if a, err = s.loadForChange(ctx, id); err != nil {
		return nil, err
	}
	if _, err = s.authorize(ctx, lifecycle.Edit, a, actorID); err != nil {
		return nil, err
	}
	if err = singleLine(map[string]*string{
		"landrace name": upd.LandraceName,
		"crop name":     upd.CropName,
		"assessor name": upd.AssessorName,
	}); err != nil {
		return nil, err
	}
	if upd.ExpectedVersion != 0 && upd.ExpectedVersion != a.Version {
		return nil, errs.New(errs.KindConflict, "assessment %s is at version %d, not %d", id, a.Version, upd.ExpectedVersion)
	}

	version, status := a.Version, a.Status
	if upd.LandraceName != nil {
		if blank(*upd.LandraceName) {
			return nil, errs.Validation("landrace name is required")
		}
		a.LandraceName = strings.TrimSpace(*upd.LandraceName)
	}
	if upd.CropName != nil {
		if blank(*upd.CropName) {
			return nil, errs.Validation("crop name is required")
		}
		a.CropName = strings.TrimSpace(*upd.CropName)
	}
	if upd.AssessorName != nil && !blank(*upd.AssessorName) {
		a.AssessorName = strings.TrimSpace(*upd.AssessorName)
	}
	if upd.AssessmentDate != nil {
		a.AssessmentDate = upd.AssessmentDate
	}
	if upd.Subcriteria != nil {
		if err = s.catalogue.Validate(upd.Subcriteria); err != nil {
			return nil, err
		}
		a.Subcriteria = upd.Subcriteria.Clone()
	}
	a.ApplyScore()

	if err = s.update(ctx, s.store, a, version, status); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, actorID, "update", "assessment", fmt.Sprintf("Saved draft of assessment %s", id))
	return a, nil
}

// ScoreAndSubmit stores the final scores and moves the assessment to review.
// When req.ReviewerID names a user who is not on the team, they join as
// reviewer in the same transaction.
func (s *WorkflowService) ScoreAndSubmit(ctx context.Context, id, actorID string, req SubmitRequest) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() { s.observe(string(lifecycle.Submit), start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if a, err = s.loadForChange(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.authorize(ctx, lifecycle.Submit, a, actorID)
	if err != nil {
		return nil, err
	}

	values := a.Subcriteria
	if req.Subcriteria != nil {
		values = req.Subcriteria
	}
	if err = s.catalogue.Validate(values); err != nil {
		return nil, err
	}
	if missing := s.catalogue.MissingRequired(values); len(missing) > 0 {
		return nil, errs.Validation("required subcriteria are not scored: %s", strings.Join(missing, ", "))
	}

	team, err := s.registry.Team(ctx, id)
	if err != nil {
		return nil, err
	}

	var newReviewer string
	if reviewerID := strings.TrimSpace(req.ReviewerID); reviewerID != "" {
		if m := findMember(team, reviewerID); m != nil {
			if m.Role != models.RoleReviewer {
				return nil, errs.New(errs.KindDuplicateMember, "user %s already has the %s role on this assessment", reviewerID, m.Role)
			}
		} else {
			u, err := s.directory.Lookup(ctx, reviewerID)
			if err != nil {
				return nil, storeError(err, "failed to look up reviewer")
			}
			if u == nil {
				return nil, errs.NotFound("user %s not found", reviewerID)
			}
			newReviewer = reviewerID
		}
	} else if !hasRole(team, models.RoleReviewer) {
		return nil, errs.Validation("a reviewer must be assigned before submitting")
	}

	version, status := a.Version, a.Status
	a.Subcriteria = values.Clone()
	a.ApplyScore()
	a.Status = out.To
	a.SubmittedForReviewAt = timePtr(s.now())

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := s.update(ctx, tx, a, version, status); err != nil {
			return err
		}
		if newReviewer == "" {
			return nil
		}
		m, err := s.registry.bind(tx).AddMember(ctx, id, newReviewer, models.RoleReviewer)
		if err != nil {
			return err
		}
		team = append(team, *m)
		return nil
	})
	if err != nil {
		return nil, storeError(err, "failed to submit assessment")
	}

	s.dispatcher.OnTransition(ctx, notify.Event{Type: out.Notify, Assessment: a, ActorID: actorID, Team: team})
	s.audit.Log(ctx, actorID, "submit", "assessment",
		fmt.Sprintf("Submitted assessment %s for review (score %d/%d, %s)", id, a.Score, a.MaxScore, a.Category))
	slog.Info("Assessment submitted for review", "assessment_id", id, "user_id", actorID)

	return a, nil
}

// ReturnForRevision sends a pending assessment back to its assessors. The
// reviewer must have left at least one comment; a non-blank comment counts
// towards that and is stored in the same transaction as the status change.
func (s *WorkflowService) ReturnForRevision(ctx context.Context, id, reviewerID, comment string) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() { s.observe(string(lifecycle.Return), start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if a, err = s.loadForChange(ctx, id); err != nil {
		return nil, err
	}
	caps, err := s.registry.CapabilitiesOf(ctx, id, reviewerID)
	if err != nil {
		return nil, err
	}
	count, err := s.ledger.Count(ctx, id)
	if err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment != "" {
		count++
	}
	out, err := lifecycle.Evaluate(lifecycle.Return, lifecycle.Input{Current: a.Status, Caps: caps, CommentCount: count})
	if err != nil {
		return nil, err
	}
	team, err := s.registry.Team(ctx, id)
	if err != nil {
		return nil, err
	}

	version, status := a.Version, a.Status
	a.Status = out.To
	a.ReviewedAt = timePtr(s.now())
	a.ReviewedBy = strPtr(reviewerID)
	a.ReviewerName = strPtr(s.directory.Name(ctx, reviewerID, reviewerID))

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if comment != "" {
			if _, err := s.ledger.bind(tx).Append(ctx, id, reviewerID, comment); err != nil {
				return err
			}
		}
		return s.update(ctx, tx, a, version, status)
	})
	if err != nil {
		return nil, storeError(err, "failed to return assessment")
	}

	s.dispatcher.OnTransition(ctx, notify.Event{Type: out.Notify, Assessment: a, ActorID: reviewerID, Team: team})
	s.audit.Log(ctx, reviewerID, "return", "assessment", fmt.Sprintf("Returned assessment %s for revision", id))
	slog.Info("Assessment returned for revision", "assessment_id", id, "user_id", reviewerID)

	return a, nil
}

// AddComment appends to the feedback log. Any team member may comment in
// any status before approval.
func (s *WorkflowService) AddComment(ctx context.Context, id, authorID, body string) (c *models.Comment, err error) {
	start := time.Now()
	defer func() { s.observe(string(lifecycle.Comment), start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.loadForChange(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err = s.authorize(ctx, lifecycle.Comment, a, authorID); err != nil {
		return nil, err
	}
	return s.ledger.Append(ctx, id, authorID, body)
}

// InviteMember adds userID to the team. Invited reviewers are notified.
func (s *WorkflowService) InviteMember(ctx context.Context, id, inviterID, userID string, role models.Role) (m *models.Assignment, err error) {
	start := time.Now()
	defer func() { s.observe("invite", start, err) }()

	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, errs.Validation("%s", err.Error())
	}

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.loadForChange(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.requireManager(ctx, id, inviterID); err != nil {
		return nil, err
	}

	u, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to look up user")
	}
	if u == nil {
		return nil, errs.NotFound("user %s not found", userID)
	}

	if m, err = s.registry.AddMember(ctx, id, userID, role); err != nil {
		return nil, err
	}

	s.dispatcher.OnTransition(ctx, notify.Event{Type: models.NotificationInvitation, Assessment: a, ActorID: inviterID, Invitee: m})
	s.audit.Log(ctx, inviterID, "invite", "assessment",
		fmt.Sprintf("Added user %s as %s to assessment %s", userID, role, id))

	return m, nil
}

// RemoveMember drops userID from the team. Members may always remove
// themselves; removing a non-member is a no-op.
func (s *WorkflowService) RemoveMember(ctx context.Context, id, actorID, userID string) (err error) {
	start := time.Now()
	defer func() { s.observe("remove_member", start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if _, err = s.loadForChange(ctx, id); err != nil {
		return err
	}
	if actorID != userID {
		if err = s.requireManager(ctx, id, actorID); err != nil {
			return err
		}
	}
	if err = s.registry.RemoveMember(ctx, id, userID); err != nil {
		return err
	}

	s.audit.Log(ctx, actorID, "remove_member", "assessment",
		fmt.Sprintf("Removed user %s from assessment %s", userID, id))
	return nil
}

// ChangeMemberRole switches the role of a member. Changing the role of a
// non-member is a no-op. Members moved to reviewer are notified like an
// invitation.
func (s *WorkflowService) ChangeMemberRole(ctx context.Context, id, actorID, userID string, role models.Role) (err error) {
	start := time.Now()
	defer func() { s.observe("change_role", start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.loadForChange(ctx, id)
	if err != nil {
		return err
	}
	if err = s.requireManager(ctx, id, actorID); err != nil {
		return err
	}

	previous, err := s.store.Assignments().Get(ctx, id, userID)
	if err != nil {
		return storeError(err, "failed to load assignment")
	}
	changed, err := s.registry.ChangeRole(ctx, id, userID, role)
	if err != nil || !changed {
		return err
	}

	if previous != nil && previous.Role != role {
		invitee := *previous
		invitee.Role = role
		s.dispatcher.OnTransition(ctx, notify.Event{Type: models.NotificationInvitation, Assessment: a, ActorID: actorID, Invitee: &invitee})
	}
	s.audit.Log(ctx, actorID, "change_role", "assessment",
		fmt.Sprintf("Changed role of user %s on assessment %s to %s", userID, id, role))
	return nil
}

// LinkTaxon ties a draft to a taxonomy entry. An empty taxonID removes the
// link.
func (s *WorkflowService) LinkTaxon(ctx context.Context, id, actorID, taxonID string) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() { s.observe("link_taxon", start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if a, err = s.loadForChange(ctx, id); err != nil {
		return nil, err
	}
	if _, err = s.authorize(ctx, lifecycle.Edit, a, actorID); err != nil {
		return nil, err
	}

	taxonID = strings.TrimSpace(taxonID)
	if err = singleLine(map[string]*string{"taxon id": &taxonID}); err != nil {
		return nil, err
	}
	version, status := a.Version, a.Status
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if taxonID == "" {
			a.TaxonID = nil
			if _, err := tx.TaxonLinks().DeleteByAssessment(ctx, id); err != nil {
				return storeError(err, "failed to unlink taxon")
			}
		} else {
			a.TaxonID = strPtr(taxonID)
			if err := tx.TaxonLinks().Set(ctx, &models.TaxonLink{AssessmentID: id, TaxonID: taxonID}); err != nil {
				return storeError(err, "failed to link taxon")
			}
		}
		return s.update(ctx, tx, a, version, status)
	})
	if err != nil {
		return nil, storeError(err, "failed to link taxon")
	}
	return a, nil
}

// DeleteAssessment removes an unapproved assessment together with its team,
// comments and taxon link
func (s *WorkflowService) DeleteAssessment(ctx context.Context, id, actorID string) (err error) {
	start := time.Now()
	defer func() { s.observe(string(lifecycle.Delete), start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.loadForChange(ctx, id)
	if err != nil {
		return err
	}
	if _, err = s.authorize(ctx, lifecycle.Delete, a, actorID); err != nil {
		return err
	}

	n, err := s.store.Assessments().Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete assessment")
	}
	if n == 0 {
		return errs.NotFound("assessment %s not found", id)
	}

	s.audit.Log(ctx, actorID, "delete", "assessment",
		fmt.Sprintf("Deleted assessment %s of %s", id, a.LandraceName))
	return nil
}

// GetAssessment returns an unpublished assessment to a team member
func (s *WorkflowService) GetAssessment(ctx context.Context, id, userID string) (*AssessmentView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := s.loadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	caps, err := s.registry.CapabilitiesOf(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !caps.IsMember() {
		return nil, errs.Forbidden("not a member of this assessment")
	}
	return &AssessmentView{Assessment: a, Capabilities: caps}, nil
}

// GetPublished returns a published assessment by its public id
func (s *WorkflowService) GetPublished(ctx context.Context, publicID string) (*models.Assessment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a, err := s.store.Assessments().GetPublished(ctx, publicID)
	if err != nil {
		return nil, storeError(err, "failed to load published assessment")
	}
	if a == nil {
		return nil, errs.NotFound("published assessment %s not found", publicID)
	}
	return a, nil
}

// ListComments returns the feedback log to a team member
func (s *WorkflowService) ListComments(ctx context.Context, id, userID string) ([]models.Comment, error) {
	if _, err := s.GetAssessment(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.ledger.ListFor(ctx, id)
}

// ListTeam returns the team to a team member
func (s *WorkflowService) ListTeam(ctx context.Context, id, userID string) ([]models.Assignment, error) {
	if _, err := s.GetAssessment(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.registry.Team(ctx, id)
}
