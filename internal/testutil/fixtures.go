package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
	"landrace-threat/internal/scoring"
)

// Fixtures holds test data
type Fixtures struct {
	Assessor *models.User
	Reviewer *models.User
	Outsider *models.User
}

// SetupFixtures registers the three standard users in store
func SetupFixtures(t *testing.T, store repository.Store) *Fixtures {
	t.Helper()

	return &Fixtures{
		Assessor: CreateUser(t, store, "assessor-1", "assessor@test.org", "Ada Assessor"),
		Reviewer: CreateUser(t, store, "reviewer-1", "reviewer@test.org", "Rex Reviewer"),
		Outsider: CreateUser(t, store, "outsider-1", "outsider@test.org", ""),
	}
}

// CreateUser upserts a directory entry
func CreateUser(t *testing.T, store repository.Store, id, email, name string) *models.User {
	t.Helper()

	u := &models.User{ID: id, Email: email, DisplayName: name}
	if err := store.Users().Upsert(context.Background(), u); err != nil {
		t.Fatalf("Failed to create user %s: %v", id, err)
	}
	return u
}

// CreateDraft inserts a scored draft owned by owner, who becomes its assessor
func CreateDraft(t *testing.T, store repository.Store, owner *models.User, values scoring.Values) *models.Assessment {
	t.Helper()
	ctx := context.Background()

	a := &models.Assessment{
		ID:           uuid.NewString(),
		LandraceName: "Bianca di Maiorca",
		CropName:     "Durum wheat",
		AssessorName: owner.Name(),
		Subcriteria:  values,
		Status:       models.StatusDraft,
		CreatedBy:    owner.ID,
	}
	a.ApplyScore()

	err := store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Assessments().Create(ctx, a); err != nil {
			return err
		}
		return tx.Assignments().Create(ctx, &models.Assignment{
			AssessmentID: a.ID,
			UserID:       owner.ID,
			Role:         models.RoleAssessor,
		})
	})
	if err != nil {
		t.Fatalf("Failed to create draft: %v", err)
	}
	return a
}
