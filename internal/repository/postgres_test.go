package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
	"landrace-threat/internal/scoring"
	"landrace-threat/internal/testutil"
)

func TestPostgresStore(t *testing.T) {
	db := testutil.SetupPostgres(t)
	store := repository.NewPostgresStore(db)
	fx := testutil.SetupFixtures(t, store)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	t.Run("users", func(t *testing.T) {
		u, err := store.Users().GetByID(ctx, fx.Assessor.ID)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "Ada Assessor", u.Name())

		missing, err := store.Users().GetByID(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)

		// Upsert refreshes the directory entry
		testutil.CreateUser(t, store, fx.Outsider.ID, "new@test.org", "Otto")
		u, err = store.Users().GetByID(ctx, fx.Outsider.ID)
		require.NoError(t, err)
		assert.Equal(t, "new@test.org", u.Email)
	})

	t.Run("malformed ids match nothing", func(t *testing.T) {
		for _, id := range []string{"abc", "", "LTA-2026-0000ABCD", uuid.NewString() + "x"} {
			a, err := store.Assessments().GetByID(ctx, id)
			require.NoError(t, err, id)
			assert.Nil(t, a)

			a, err = store.Assessments().GetDraft(ctx, id)
			require.NoError(t, err, id)
			assert.Nil(t, a)

			m, err := store.Assignments().Get(ctx, id, fx.Assessor.ID)
			require.NoError(t, err, id)
			assert.Nil(t, m)

			n, err := store.Assessments().Delete(ctx, id)
			require.NoError(t, err, id)
			assert.Zero(t, n)
		}
	})

	t.Run("assessment update is compare and swap", func(t *testing.T) {
		a := testutil.CreateDraft(t, store, fx.Assessor, scoring.Values{"A1": 4, "A2": scoring.NA})
		assert.Equal(t, 1, a.Version)

		got, err := store.Assessments().GetDraft(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, scoring.Values{"A1": 4, "A2": scoring.NA}, got.Subcriteria)
		assert.Equal(t, 4, got.Score)
		assert.Equal(t, 5, got.MaxScore)

		got.LandraceName = "Senatore Cappelli"
		ok, err := store.Assessments().Update(ctx, got, 1, models.StatusDraft)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2, got.Version)

		stale := *got
		ok, err = store.Assessments().Update(ctx, &stale, 1, models.StatusDraft)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Assessments().Update(ctx, got, 2, models.StatusPendingReview)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("published records leave the draft view", func(t *testing.T) {
		a := testutil.CreateDraft(t, store, fx.Assessor, scoring.Values{"A1": 2})
		publicID := "LTA-2026-" + a.ID[:8]
		now := time.Now()

		a.Status = models.StatusApproved
		a.PublicID = &publicID
		a.Published = true
		a.ApprovedAt = &now
		ok, err := store.Assessments().Update(ctx, a, a.Version, models.StatusDraft)
		require.NoError(t, err)
		require.True(t, ok)

		draft, err := store.Assessments().GetDraft(ctx, a.ID)
		require.NoError(t, err)
		assert.Nil(t, draft)

		pub, err := store.Assessments().GetPublished(ctx, publicID)
		require.NoError(t, err)
		require.NotNil(t, pub)
		assert.Equal(t, a.ID, pub.ID)

		// The assessor assignment still exists, so publication is unfinished
		pending, err := store.Assessments().ListUnreconciled(ctx)
		require.NoError(t, err)
		assert.Contains(t, assessmentIDs(pending), a.ID)

		_, err = store.Assignments().DeleteByAssessment(ctx, a.ID)
		require.NoError(t, err)
		pending, err = store.Assessments().ListUnreconciled(ctx)
		require.NoError(t, err)
		assert.NotContains(t, assessmentIDs(pending), a.ID)

		require.NoError(t, store.Assessments().SetArchiveURL(ctx, a.ID, "s3://bucket/"+publicID+".json"))
		pub, err = store.Assessments().GetPublished(ctx, publicID)
		require.NoError(t, err)
		require.NotNil(t, pub.ArchiveURL)
	})

	t.Run("team", func(t *testing.T) {
		a := testutil.CreateDraft(t, store, fx.Assessor, nil)

		err := store.Assignments().Create(ctx, &models.Assignment{AssessmentID: a.ID, UserID: fx.Assessor.ID, Role: models.RoleReviewer})
		assert.ErrorIs(t, err, repository.ErrDuplicate)

		require.NoError(t, store.Assignments().Create(ctx, &models.Assignment{AssessmentID: a.ID, UserID: fx.Reviewer.ID, Role: models.RoleSpectator}))
		n, err := store.Assignments().UpdateRole(ctx, a.ID, fx.Reviewer.ID, models.RoleReviewer)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		m, err := store.Assignments().Get(ctx, a.ID, fx.Reviewer.ID)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, models.RoleReviewer, m.Role)

		team, err := store.Assignments().ListByAssessment(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, team, 2)

		n, err = store.Assignments().Delete(ctx, a.ID, fx.Outsider.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("comments oldest first", func(t *testing.T) {
		a := testutil.CreateDraft(t, store, fx.Assessor, nil)
		for _, body := range []string{"first", "second", "third"} {
			require.NoError(t, store.Comments().Create(ctx, &models.Comment{AssessmentID: a.ID, AuthorID: fx.Reviewer.ID, Body: body}))
		}

		comments, err := store.Comments().ListByAssessment(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, comments, 3)
		assert.Equal(t, "first", comments[0].Body)
		assert.Equal(t, "third", comments[2].Body)

		count, err := store.Comments().CountByAssessment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("taxon link", func(t *testing.T) {
		a := testutil.CreateDraft(t, store, fx.Assessor, nil)

		require.NoError(t, store.TaxonLinks().Set(ctx, &models.TaxonLink{AssessmentID: a.ID, TaxonID: "wfo-0000001"}))
		require.NoError(t, store.TaxonLinks().Set(ctx, &models.TaxonLink{AssessmentID: a.ID, TaxonID: "wfo-0000002"}))

		link, err := store.TaxonLinks().Get(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, "wfo-0000002", link.TaxonID)

		n, err := store.TaxonLinks().DeleteByAssessment(ctx, a.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("delete cascades", func(t *testing.T) {
		a := testutil.CreateDraft(t, store, fx.Assessor, nil)
		require.NoError(t, store.Comments().Create(ctx, &models.Comment{AssessmentID: a.ID, AuthorID: fx.Assessor.ID, Body: "note"}))

		n, err := store.Assessments().Delete(ctx, a.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		count, err := store.Comments().CountByAssessment(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		team, err := store.Assignments().ListByAssessment(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, team)
	})

	t.Run("notifications newest first", func(t *testing.T) {
		assessmentID := uuid.NewString()
		for _, msg := range []string{"one", "two"} {
			require.NoError(t, store.Notifications().Create(ctx, &models.Notification{
				RecipientID:  fx.Reviewer.ID,
				AssessmentID: assessmentID,
				Type:         models.NotificationSubmitted,
				Message:      msg,
			}))
		}

		list, err := store.Notifications().ListByRecipient(ctx, fx.Reviewer.ID, false)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "two", list[0].Message)

		n, err := store.Notifications().MarkRead(ctx, list[0].ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		unread, err := store.Notifications().ListByRecipient(ctx, fx.Reviewer.ID, true)
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, "one", unread[0].Message)

		missing, err := store.Notifications().GetByID(ctx, -1)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		id := uuid.NewString()

		err := store.InTx(ctx, func(tx repository.Store) error {
			if err := tx.Assessments().Create(ctx, &models.Assessment{
				ID:           id,
				LandraceName: "Rolled back",
				CropName:     "Barley",
				Status:       models.StatusDraft,
				Category:     scoring.LeastConcern,
				CreatedBy:    fx.Assessor.ID,
			}); err != nil {
				return err
			}
			// Nested calls share the outer transaction
			return tx.InTx(ctx, func(repository.Store) error { return boom })
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Assessments().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("audit log", func(t *testing.T) {
		uid := fx.Reviewer.ID
		require.NoError(t, store.Audit().Create(ctx, &models.AuditLog{UserID: &uid, Action: "reconcile.run", Resource: "admin"}))
		require.NoError(t, store.Audit().Create(ctx, &models.AuditLog{Action: "audit.list", Resource: "admin", Details: "anonymous"}))

		logs, err := store.Audit().List(ctx, 10, 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(logs), 2)
		assert.Equal(t, "audit.list", logs[0].Action)
		assert.Nil(t, logs[0].UserID)
	})
}

func assessmentIDs(list []models.Assessment) []string {
	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	return ids
}
