package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"landrace-threat/internal/config"
	"landrace-threat/internal/directory"
	"landrace-threat/internal/email"
	"landrace-threat/internal/errs"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/models"
	"landrace-threat/internal/notify"
	"landrace-threat/internal/objectstore"
	"landrace-threat/internal/repository"
	"landrace-threat/internal/repository/memory"
	"landrace-threat/internal/scoring"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type harness struct {
	svc     *WorkflowService
	store   *memory.Store
	archive *objectstore.Memory
	metrics *metrics.WorkflowMetrics
}

func newHarness(t *testing.T, policy string) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, u := range []models.User{
		{ID: "ada", Email: "ada@example.org", DisplayName: "Ada"},
		{ID: "cy", Email: "cy@example.org", DisplayName: "Cy"},
		{ID: "rex", Email: "rex@example.org", DisplayName: "Rex"},
		{ID: "rio", Email: "rio@example.org", DisplayName: "Rio"},
		{ID: "sam", Email: "sam@example.org", DisplayName: "Sam"},
		{ID: "out", Email: "out@example.org", DisplayName: "Outsider"},
	} {
		require.NoError(t, store.Users().Upsert(ctx, &u))
	}

	m, err := metrics.NewWorkflowMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	dir := directory.New(store.Users(), 0)
	templates := email.NewService(&config.EmailConfig{AppURL: "https://lrt.example.org"})
	dispatcher := notify.NewDispatcher(store, dir, templates, nil, notify.Options{Concurrency: 4, Metrics: m})
	archive := objectstore.NewMemory("archive")

	svc := NewWorkflowService(store, dispatcher, dir, Options{
		OperationTimeout: 5 * time.Second,
		TeamPolicy:       policy,
		Archive:          archive,
		Metrics:          m,
	})
	return &harness{svc: svc, store: store, archive: archive, metrics: m}
}

func fullScores() scoring.Values {
	values := scoring.Values{}
	for _, k := range scoring.DefaultCatalogue().Keys() {
		values[k] = 3
	}
	return values
}

// draft creates an assessment by ada with cy as co-assessor, rex as
// reviewer and sam as spectator
func (h *harness) draft(t *testing.T) *models.Assessment {
	t.Helper()
	ctx := context.Background()
	a, err := h.svc.CreateAssessment(ctx, "ada", DraftRequest{
		LandraceName: "Rouge de Bordeaux",
		CropName:     "Wheat",
		TaxonID:      "taxon-42",
		Subcriteria:  scoring.Values{"A1": 4},
	})
	require.NoError(t, err)

	for user, role := range map[string]models.Role{
		"cy":  models.RoleCoAssessor,
		"rex": models.RoleReviewer,
		"sam": models.RoleSpectator,
	} {
		_, err := h.svc.InviteMember(ctx, a.ID, "ada", user, role)
		require.NoError(t, err)
	}
	return a
}

func (h *harness) pending(t *testing.T) *models.Assessment {
	t.Helper()
	a := h.draft(t)
	a, err := h.svc.ScoreAndSubmit(context.Background(), a.ID, "ada", SubmitRequest{Subcriteria: fullScores()})
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingReview, a.Status)
	return a
}

func (h *harness) notifications(t *testing.T, userID string, typ models.NotificationType) int {
	t.Helper()
	list, err := h.store.Notifications().ListByRecipient(context.Background(), userID, false)
	require.NoError(t, err)
	n := 0
	for _, item := range list {
		if item.Type == typ {
			n++
		}
	}
	return n
}

func TestCreateAssessment(t *testing.T) {
	h := newHarness(t, config.TeamPolicyMembers)
	ctx := context.Background()

	a, err := h.svc.CreateAssessment(ctx, "ada", DraftRequest{
		LandraceName: "  Emmer ",
		CropName:     "Wheat",
		TaxonID:      "taxon-1",
		Subcriteria:  scoring.Values{"A1": 5, "B1": scoring.NA},
	})
	require.NoError(t, err)

	assert.Equal(t, "Emmer", a.LandraceName)
	assert.Equal(t, "Ada", a.AssessorName, "assessor name falls back to the directory")
	assert.Equal(t, models.StatusDraft, a.Status)
	assert.Equal(t, 5, a.Score)
	assert.Equal(t, 5, a.MaxScore)
	assert.NotNil(t, a.AssessmentDate)

	m, err := h.store.Assignments().Get(ctx, a.ID, "ada")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.RoleAssessor, m.Role)

	link, err := h.store.TaxonLinks().Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "taxon-1", link.TaxonID)
}

func TestCreateAssessmentValidation(t *testing.T) {
	h := newHarness(t, config.TeamPolicyMembers)
	ctx := context.Background()

	tests := []struct {
		name string
		user string
		req  DraftRequest
		want error
	}{
		{"missing landrace", "ada", DraftRequest{CropName: "Wheat"}, errs.ErrValidation},
		{"blank crop", "ada", DraftRequest{LandraceName: "Emmer", CropName: "  "}, errs.ErrValidation},
		{"unknown subcriterion", "ada", DraftRequest{LandraceName: "Emmer", CropName: "Wheat", Subcriteria: scoring.Values{"Z9": 1}}, errs.ErrValidation},
		{"out of range", "ada", DraftRequest{LandraceName: "Emmer", CropName: "Wheat", Subcriteria: scoring.Values{"A1": 9}}, errs.ErrValidation},
		{"anonymous", "", DraftRequest{LandraceName: "Emmer", CropName: "Wheat"}, errs.ErrForbidden},
		{"line break in landrace", "ada", DraftRequest{LandraceName: "Emmer\r\nBcc: x@evil.example", CropName: "Wheat"}, errs.ErrValidation},
		{"control character in taxon", "ada", DraftRequest{LandraceName: "Emmer", CropName: "Wheat", TaxonID: "wfo\x00"}, errs.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateAssessment(ctx, tt.user, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitNotifiesEachReviewerOnce(t *testing.T) {
	h := newHarness(t, config.TeamPolicyMembers)
	ctx := context.Background()
	a := h.draft(t)
	_, err := h.svc.InviteMember(ctx, a.ID, "ada", "rio", models.RoleReviewer)
	require.NoError(t, err)

	_, err = h.svc.ScoreAndSubmit(ctx, a.ID, "cy", SubmitRequest{Subcriteria: fullScores()})
	require.NoError(t, err)

	assert.Equal(t, 1, h.notifications(t, "rex", models.NotificationSubmitted))
	assert.Equal(t, 1, h.notifications(t, "rio", models.NotificationSubmitted))
	for _, user := range []string{"ada", "cy", "sam"} {
		assert.Zero(t, h.notifications(t, user, models.NotificationSubmitted), user)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TransitionsTotal.WithLabelValues("submit", metrics.OutcomeSuccess)))
}

func TestSubmitKeepsStoredScoresWhenNoneGiven(t *testing.T) {
	h := newHarness(t, config.TeamPolicyMembers)
	ctx := context.Background()
	a := h.draft(t)

	_, err := h.svc.SaveDraft(ctx, a.ID, "ada", DraftUpdate{Subcriteria: fullScores()})
	require.NoError(t, err)

	submitted, err := h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, fullScores(), submitted.Subcriteria)
	assert.NotNil(t, submitted.SubmittedForReviewAt)
}

func TestSubmitPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("required subcriteria", func(t *testing.T) {
		h := newHarness(t, config.TeamPolicyMembers)
		a := h.draft(t)
		_, err := h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{Subcriteria: scoring.Values{"A1": 2}})
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Contains(t, errs.Message(err), "required subcriteria")
	})

	t.Run("no reviewer", func(t *testing.T) {
		h := newHarness(t, config.TeamPolicyMembers)
		a, err := h.svc.CreateAssessment(ctx, "ada", DraftRequest{LandraceName: "Emmer", CropName: "Wheat"})
		require.NoError(t, err)
		_, err = h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{Subcriteria: fullScores()})
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("reviewer already holds another role", func(t *testing.T) {
		h := newHarness(t, config.TeamPolicyMembers)
		a := h.draft(t)
		_, err := h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{Subcriteria: fullScores(), ReviewerID: "cy"})
		assert.ErrorIs(t, err, errs.ErrDuplicateMember)
	})

	t.Run("unknown reviewer", func(t *testing.T) {
		h := newHarness(t, config.TeamPolicyMembers)
		a := h.draft(t)
		_, err := h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{Subcriteria: fullScores(), ReviewerID: "ghost"})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("new reviewer joins the team", func(t *testing.T) {
		h := newHarness(t, config.TeamPolicyMembers)
		a, err := h.svc.CreateAssessment(ctx, "ada", DraftRequest{LandraceName: "Emmer", CropName: "Wheat"})
		require.NoError(t, err)

		_, err = h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{Subcriteria: fullScores(), ReviewerID: "rio"})
		require.NoError(t, err)

		m, err := h.store.Assignments().Get(ctx, a.ID, "rio")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, models.RoleReviewer, m.Role)
		assert.Equal(t, 1, h.notifications(t, "rio", models.NotificationSubmitted))
	})
}

func TestReviewRequiresPendingStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	draft := h.draft(t)

	returned := h.pending(t)
	_, err := h.svc.AddComment(ctx, returned.ID, "rex", "Please check A1")
	require.NoError(t, err)
	_, err = h.svc.ReturnForRevision(ctx, returned.ID, "rex", "")
	require.NoError(t, err)

	approved := h.pending(t)
	_, err = h.svc.Approve(ctx, approved.ID, "rex")
	require.NoError(t, err)

	for _, id := range []string{draft.ID, returned.ID, approved.ID} {
		for _, user := range []string{"ada", "cy", "rex"} {
			_, err := h.svc.Approve(ctx, id, user)
			assert.ErrorIs(t, err, errs.ErrInvalidTransition, "approve %s by %s", id, user)
			_, err = h.svc.ReturnForRevision(ctx, id, user, "")
			assert.ErrorIs(t, err, errs.ErrInvalidTransition, "return %s by %s", id, user)
		}
	}
}

func TestSpectatorCannotDriveWorkflow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	draft := h.draft(t)
	pending := h.pending(t)
	_, err := h.svc.AddComment(ctx, pending.ID, "rex", "noted")
	require.NoError(t, err)

	for _, id := range []string{draft.ID, pending.ID} {
		_, err := h.svc.ScoreAndSubmit(ctx, id, "sam", SubmitRequest{Subcriteria: fullScores()})
		assert.ErrorIs(t, err, errs.ErrForbidden)
		_, err = h.svc.ReturnForRevision(ctx, id, "sam", "")
		assert.ErrorIs(t, err, errs.ErrForbidden)
		_, err = h.svc.Approve(ctx, id, "sam")
		assert.ErrorIs(t, err, errs.ErrForbidden)
	}

	_, err = h.svc.AddComment(ctx, draft.ID, "sam", "Looks good to me")
	assert.NoError(t, err, "spectators may comment")
}

func TestAssessorCannotReview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)

	_, err := h.svc.Approve(ctx, a.ID, "ada")
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{})
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestReturnRequiresFeedback(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)

	_, err := h.svc.ReturnForRevision(ctx, a.ID, "rex", "")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = h.svc.AddComment(ctx, a.ID, "rex", "  ")
	require.ErrorIs(t, err, errs.ErrValidation, "blank comments are rejected")

	_, err = h.svc.AddComment(ctx, a.ID, "rex", "Population trend needs a source")
	require.NoError(t, err)

	returned, err := h.svc.ReturnForRevision(ctx, a.ID, "rex", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReviewerName)
	assert.Equal(t, "Rex", *returned.ReviewerName)

	assert.Equal(t, 1, h.notifications(t, "ada", models.NotificationReturned))
	assert.Equal(t, 1, h.notifications(t, "cy", models.NotificationReturned))
	assert.Zero(t, h.notifications(t, "sam", models.NotificationReturned))

	_, err = h.svc.SaveDraft(ctx, a.ID, "ada", DraftUpdate{CropName: strPtr("Durum wheat")})
	assert.NoError(t, err, "returned assessments are editable")
	_, err = h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{})
	assert.NoError(t, err, "returned assessments can be resubmitted")
}

func TestReturnWithComment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	draft := h.draft(t)
	pending := h.pending(t)

	_, err := h.svc.ReturnForRevision(ctx, draft.ID, "rex", "premature")
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
	_, err = h.svc.ReturnForRevision(ctx, pending.ID, "ada", "self review")
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.svc.ReturnForRevision(ctx, pending.ID, "sam", "spectating")
	require.ErrorIs(t, err, errs.ErrForbidden)

	for _, id := range []string{draft.ID, pending.ID} {
		comments, err := h.svc.ListComments(ctx, id, "ada")
		require.NoError(t, err)
		assert.Empty(t, comments, "rejected returns store nothing")
	}

	returned, err := h.svc.ReturnForRevision(ctx, pending.ID, "rex", "  Add the 2019 census  ")
	require.NoError(t, err, "the comment sent along satisfies the feedback gate")
	assert.Equal(t, models.StatusReturned, returned.Status)

	comments, err := h.svc.ListComments(ctx, pending.ID, "ada")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Add the 2019 census", comments[0].Body)
	assert.Equal(t, "rex", comments[0].AuthorID)
}

// interleavingStore runs after once, right after the next assessment read
type interleavingStore struct {
	*memory.Store
	after func()
}

func (s *interleavingStore) Assessments() repository.Assessments {
	return interleavingAssessments{Assessments: s.Store.Assessments(), store: s}
}

type interleavingAssessments struct {
	repository.Assessments
	store *interleavingStore
}

func (r interleavingAssessments) GetByID(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := r.Assessments.GetByID(ctx, id)
	if fn := r.store.after; fn != nil {
		r.store.after = nil
		fn()
	}
	return a, err
}

func TestTransitionsConflictWithConcurrentChange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)

	// slow shares the records with h.svc but not its locks, like a second
	// API instance
	racing := &interleavingStore{Store: h.store}
	slow := NewWorkflowService(racing, h.svc.dispatcher, h.svc.directory, Options{
		OperationTimeout: 5 * time.Second,
		Metrics:          h.metrics,
	})

	t.Run("submit", func(t *testing.T) {
		a := h.draft(t)
		racing.after = func() {
			_, err := h.svc.SaveDraft(ctx, a.ID, "cy", DraftUpdate{CropName: strPtr("Spelt")})
			require.NoError(t, err)
		}

		_, err := slow.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{Subcriteria: fullScores()})
		assert.ErrorIs(t, err, errs.ErrConflict)

		stored, err := h.store.Assessments().GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, stored.Status)
		assert.Equal(t, "Spelt", stored.CropName)
	})

	t.Run("return", func(t *testing.T) {
		a := h.pending(t)
		racing.after = func() {
			_, err := h.svc.ReturnForRevision(ctx, a.ID, "rex", "First opinion")
			require.NoError(t, err)
		}

		_, err := slow.ReturnForRevision(ctx, a.ID, "rex", "Second opinion")
		assert.ErrorIs(t, err, errs.ErrConflict)

		comments, err := h.svc.ListComments(ctx, a.ID, "ada")
		require.NoError(t, err)
		require.Len(t, comments, 1, "the losing comment is rolled back")
		assert.Equal(t, "First opinion", comments[0].Body)
	})

	t.Run("approve", func(t *testing.T) {
		a := h.pending(t)
		racing.after = func() {
			_, err := h.svc.ReturnForRevision(ctx, a.ID, "rex", "Needs work")
			require.NoError(t, err)
		}

		_, err := slow.Approve(ctx, a.ID, "rex")
		assert.ErrorIs(t, err, errs.ErrConflict)

		stored, err := h.store.Assessments().GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusReturned, stored.Status)
		assert.False(t, stored.Published)
		assert.Empty(t, h.archive.Keys())
	})
}

func TestApprovePublishes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)
	_, err := h.svc.AddComment(ctx, a.ID, "rex", "All sources verified")
	require.NoError(t, err)

	published, err := h.svc.Approve(ctx, a.ID, "rex")
	require.NoError(t, err)

	require.NotNil(t, published.PublicID)
	assert.Regexp(t, regexp.MustCompile(`^LTA-\d{4}-[0-9A-F]{8}$`), *published.PublicID)
	assert.True(t, published.Published)
	assert.Equal(t, models.StatusApproved, published.Status)
	require.NotNil(t, published.ApprovedAt)
	require.NotNil(t, published.ArchiveURL)
	assert.Equal(t, "memory://archive/published/"+*published.PublicID+".json", *published.ArchiveURL)

	_, err = h.svc.GetAssessment(ctx, a.ID, "ada")
	assert.ErrorIs(t, err, errs.ErrNotFound, "the draft id no longer resolves")

	team, err := h.store.Assignments().ListByAssessment(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, team)
	comments, err := h.store.Comments().ListByAssessment(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	link, err := h.store.TaxonLinks().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, link)

	got, err := h.svc.GetPublished(ctx, *published.PublicID)
	require.NoError(t, err)
	assert.Equal(t, a.LandraceName, got.LandraceName)
	assert.Equal(t, published.Score, got.Score)

	assert.Equal(t, 1, h.notifications(t, "ada", models.NotificationApproved), "captured team is notified")
	assert.Equal(t, 1, h.notifications(t, "cy", models.NotificationApproved))
	assert.Equal(t, 1, h.notifications(t, "rex", models.NotificationSubmitted), "earlier notifications survive")
}

func TestApproveFailureRollsBackAndFlagsReconcile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)

	h.store.SetFault("comments.deleteByAssessment", errors.New("connection reset"))
	_, err := h.svc.Approve(ctx, a.ID, "rex")
	require.ErrorIs(t, err, errs.ErrDependencyFailure)
	assert.True(t, errs.NeedsReconcile(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PublicationFailures))

	view, err := h.svc.GetAssessment(ctx, a.ID, "rex")
	require.NoError(t, err, "nothing was applied")
	assert.Equal(t, models.StatusPendingReview, view.Status)
	assert.Zero(t, h.notifications(t, "ada", models.NotificationApproved))

	h.store.ClearFaults()
	_, err = h.svc.Approve(ctx, a.ID, "rex")
	require.NoError(t, err)
}

func TestApproveCommitFailureIsFlagged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)

	h.store.SetFault("tx.commit", errors.New("commit failed"))
	_, err := h.svc.Approve(ctx, a.ID, "rex")
	assert.True(t, errs.NeedsReconcile(err))

	h.store.ClearFaults()
	_, err = h.svc.SaveDraft(ctx, a.ID, "ada", DraftUpdate{})
	assert.ErrorIs(t, err, errs.ErrInvalidTransition, "pending assessments are not editable")
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)
	_, err := h.svc.InviteMember(ctx, a.ID, "ada", "rio", models.RoleReviewer)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, reviewer := range []string{"rex", "rio"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = h.svc.Approve(ctx, a.ID, reviewer)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.archive.Keys(), 1, "only the winner is archived")
}

func TestReconcileFinishesHalfAppliedApproval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.pending(t)

	// simulate a publication that changed the status but nothing else
	stored, err := h.store.Assessments().GetByID(ctx, a.ID)
	require.NoError(t, err)
	version := stored.Version
	stored.Status = models.StatusApproved
	ok, err := h.store.Assessments().Update(ctx, stored, version, models.StatusPendingReview)
	require.NoError(t, err)
	require.True(t, ok)

	report, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Repaired: 1}, report)

	fixed, err := h.store.Assessments().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, fixed.Published)
	require.NotNil(t, fixed.PublicID)
	assert.NotNil(t, fixed.ArchiveURL)

	team, err := h.store.Assignments().ListByAssessment(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, team)

	report, err = h.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked, "a second sweep finds nothing")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReconciledTotal))
}

func TestSaveDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.draft(t)

	saved, err := h.svc.SaveDraft(ctx, a.ID, "cy", DraftUpdate{
		LandraceName:    strPtr("Rouge de Bordeaux II"),
		Subcriteria:     scoring.Values{"A1": 5, "A2": 5},
		ExpectedVersion: a.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, "Rouge de Bordeaux II", saved.LandraceName)
	assert.Equal(t, 10, saved.Score)
	assert.Equal(t, a.Version+1, saved.Version)

	_, err = h.svc.SaveDraft(ctx, a.ID, "cy", DraftUpdate{ExpectedVersion: a.Version})
	assert.ErrorIs(t, err, errs.ErrConflict, "stale version")

	_, err = h.svc.SaveDraft(ctx, a.ID, "rex", DraftUpdate{CropName: strPtr("Barley")})
	assert.ErrorIs(t, err, errs.ErrForbidden, "reviewers cannot edit")

	_, err = h.svc.SaveDraft(ctx, a.ID, "ada", DraftUpdate{LandraceName: strPtr("")})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = h.svc.SaveDraft(ctx, a.ID, "ada", DraftUpdate{CropName: strPtr("Wheat\nSubject: spoofed")})
	assert.ErrorIs(t, err, errs.ErrValidation)

	stored, err := h.store.Assessments().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Version, stored.Version, "rejected saves change nothing")
}

func TestTeamManagement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.draft(t)

	_, err := h.svc.InviteMember(ctx, a.ID, "ada", "rex", models.RoleSpectator)
	assert.ErrorIs(t, err, errs.ErrDuplicateMember)

	_, err = h.svc.InviteMember(ctx, a.ID, "ada", "ghost", models.RoleReviewer)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = h.svc.InviteMember(ctx, a.ID, "ada", "rio", models.Role("owner"))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = h.svc.InviteMember(ctx, a.ID, "out", "rio", models.RoleReviewer)
	assert.ErrorIs(t, err, errs.ErrForbidden, "outsiders cannot invite")

	_, err = h.svc.InviteMember(ctx, a.ID, "sam", "rio", models.RoleSpectator)
	assert.NoError(t, err, "any member manages the team under the members policy")
	assert.Zero(t, h.notifications(t, "rio", models.NotificationInvitation), "only reviewer invitations notify")

	assert.NoError(t, h.svc.RemoveMember(ctx, a.ID, "ada", "nobody"), "removing a non-member is a no-op")
	assert.NoError(t, h.svc.ChangeMemberRole(ctx, a.ID, "ada", "nobody", models.RoleReviewer), "changing a non-member is a no-op")

	require.NoError(t, h.svc.ChangeMemberRole(ctx, a.ID, "ada", "rio", models.RoleReviewer))
	assert.Equal(t, 1, h.notifications(t, "rio", models.NotificationInvitation))

	require.NoError(t, h.svc.RemoveMember(ctx, a.ID, "rio", "rio"))
	team, err := h.svc.ListTeam(ctx, a.ID, "ada")
	require.NoError(t, err)
	assert.Nil(t, findMember(team, "rio"))
	assert.Len(t, team, 4)
}

func TestEditorsTeamPolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyEditors)
	a := h.draft(t)

	_, err := h.svc.InviteMember(ctx, a.ID, "sam", "rio", models.RoleReviewer)
	assert.ErrorIs(t, err, errs.ErrForbidden)
	assert.ErrorIs(t, h.svc.ChangeMemberRole(ctx, a.ID, "rex", "sam", models.RoleReviewer), errs.ErrForbidden)
	assert.NoError(t, h.svc.RemoveMember(ctx, a.ID, "sam", "sam"), "members may always leave")

	_, err = h.svc.InviteMember(ctx, a.ID, "cy", "rio", models.RoleReviewer)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.notifications(t, "rio", models.NotificationInvitation))

	view, err := h.svc.GetAssessment(ctx, a.ID, "rex")
	require.NoError(t, err)
	assert.Equal(t, models.Capabilities{CanReview: true, CanComment: true}, view.Capabilities)
}

func TestLinkTaxon(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.draft(t)

	linked, err := h.svc.LinkTaxon(ctx, a.ID, "ada", "taxon-99")
	require.NoError(t, err)
	require.NotNil(t, linked.TaxonID)
	assert.Equal(t, "taxon-99", *linked.TaxonID)

	unlinked, err := h.svc.LinkTaxon(ctx, a.ID, "ada", "")
	require.NoError(t, err)
	assert.Nil(t, unlinked.TaxonID)
	link, err := h.store.TaxonLinks().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestDeleteAssessment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.draft(t)

	assert.ErrorIs(t, h.svc.DeleteAssessment(ctx, a.ID, "rex"), errs.ErrForbidden)
	require.NoError(t, h.svc.DeleteAssessment(ctx, a.ID, "ada"))

	_, err := h.svc.GetAssessment(ctx, a.ID, "ada")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, h.svc.DeleteAssessment(ctx, a.ID, "ada"), errs.ErrNotFound)
}

func TestReadsAreMembersOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.draft(t)
	_, err := h.svc.AddComment(ctx, a.ID, "cy", "first")
	require.NoError(t, err)
	_, err = h.svc.AddComment(ctx, a.ID, "rex", "second")
	require.NoError(t, err)

	_, err = h.svc.GetAssessment(ctx, a.ID, "out")
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.svc.ListComments(ctx, a.ID, "out")
	assert.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.svc.AddComment(ctx, a.ID, "out", "drive-by")
	assert.ErrorIs(t, err, errs.ErrForbidden)

	comments, err := h.svc.ListComments(ctx, a.ID, "sam")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Body)
	assert.Equal(t, "second", comments[1].Body)

	_, err = h.svc.GetPublished(ctx, "LTA-2026-00000000")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStoreFailuresAreDependencyFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, config.TeamPolicyMembers)
	a := h.draft(t)

	h.store.SetFault("assessments.get", errors.New("connection refused"))
	_, err := h.svc.GetAssessment(ctx, a.ID, "ada")
	assert.ErrorIs(t, err, errs.ErrDependencyFailure)
	_, err = h.svc.ScoreAndSubmit(ctx, a.ID, "ada", SubmitRequest{})
	assert.ErrorIs(t, err, errs.ErrDependencyFailure)
	assert.False(t, errs.NeedsReconcile(err))
}
