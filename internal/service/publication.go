package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/lifecycle"
	"landrace-threat/internal/models"
	"landrace-threat/internal/notify"
	"landrace-threat/internal/repository"
)

// maxPublicIDAttempts bounds retries after a public id collision
const maxPublicIDAttempts = 3

// Approve publishes a pending assessment under a new public id. The status
// change and the removal of the team, comments and taxon link commit
// together. The team is notified with its membership from before approval.
func (s *WorkflowService) Approve(ctx context.Context, id, reviewerID string) (a *models.Assessment, err error) {
	start := time.Now()
	defer func() { s.observe(string(lifecycle.Approve), start, err) }()

	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if a, err = s.loadForChange(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.authorize(ctx, lifecycle.Approve, a, reviewerID)
	if err != nil {
		return nil, err
	}
	team, err := s.registry.Team(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	version, status := a.Version, a.Status
	a.Status = out.To
	a.Published = true
	a.ReviewedAt = timePtr(now)
	a.ReviewedBy = strPtr(reviewerID)
	a.ReviewerName = strPtr(s.directory.Name(ctx, reviewerID, reviewerID))
	a.ApprovedAt = timePtr(now)

	for attempt := 1; ; attempt++ {
		a.PublicID = strPtr(newPublicID(now))
		err = s.store.InTx(ctx, func(tx repository.Store) error {
			if err := s.update(ctx, tx, a, version, status); err != nil {
				return err
			}
			return clearDraftSide(ctx, tx, id)
		})
		if errors.Is(err, repository.ErrDuplicate) && attempt < maxPublicIDAttempts {
			slog.Warn("Public id collision, retrying", "assessment_id", id, "public_id", *a.PublicID)
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return nil, err
		}
		s.metrics.RecordPublicationFailure()
		slog.Error("Failed to publish assessment",
			"assessment_id", id,
			"user_id", reviewerID,
			"error", err,
		)
		return nil, &errs.Error{
			Kind:      errs.KindDependencyFailure,
			Message:   fmt.Sprintf("publication of assessment %s did not complete", id),
			Reconcile: true,
			Err:       err,
		}
	}

	s.archivePublished(ctx, a)
	s.dispatcher.OnTransition(ctx, notify.Event{Type: out.Notify, Assessment: a, ActorID: reviewerID, Team: team})
	s.audit.Log(ctx, reviewerID, "approve", "assessment",
		fmt.Sprintf("Approved assessment %s and published it as %s", id, *a.PublicID))
	slog.Info("Assessment approved",
		"assessment_id", id,
		"public_id", *a.PublicID,
		"user_id", reviewerID,
	)

	return a, nil
}

// clearDraftSide removes the rows that only belong to unpublished work
func clearDraftSide(ctx context.Context, tx repository.Store, id string) error {
	if _, err := tx.Assignments().DeleteByAssessment(ctx, id); err != nil {
		return storeError(err, "failed to remove team of assessment %s", id)
	}
	if _, err := tx.TaxonLinks().DeleteByAssessment(ctx, id); err != nil {
		return storeError(err, "failed to remove taxon link of assessment %s", id)
	}
	if _, err := tx.Comments().DeleteByAssessment(ctx, id); err != nil {
		return storeError(err, "failed to remove comments of assessment %s", id)
	}
	return nil
}

// archivePublished uploads a JSON snapshot of a published assessment. Upload
// failures are logged and leave ArchiveURL unset.
func (s *WorkflowService) archivePublished(ctx context.Context, a *models.Assessment) {
	if s.archive == nil || a.PublicID == nil {
		return
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		slog.Error("Failed to encode assessment snapshot", "assessment_id", a.ID, "error", err)
		return
	}

	url, err := s.archive.Put(ctx, fmt.Sprintf("published/%s.json", *a.PublicID), data, "application/json")
	s.metrics.RecordArchiveUpload(err)
	if err != nil {
		slog.Warn("Failed to archive published assessment",
			"assessment_id", a.ID,
			"public_id", *a.PublicID,
			"error", err,
		)
		return
	}
	if err := s.store.Assessments().SetArchiveURL(ctx, a.ID, url); err != nil {
		slog.Warn("Failed to record archive location", "assessment_id", a.ID, "error", err)
		return
	}
	a.ArchiveURL = &url
}

// ReconcileReport summarises a reconciliation sweep
type ReconcileReport struct {
	Checked  int      `json:"checked"`
	Repaired int      `json:"repaired"`
	Failed   []string `json:"failed,omitempty"`
}

// Reconcile finishes approvals that did not complete: approved records are
// published and their team, comments and taxon link removed. It is safe to
// run at any time.
func (s *WorkflowService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	pending, err := s.store.Assessments().ListUnreconciled(ctx)
	if err != nil {
		return report, storeError(err, "failed to list unreconciled assessments")
	}

	for _, p := range pending {
		report.Checked++
		if err := s.reconcileOne(ctx, p.ID); err != nil {
			slog.Warn("Failed to reconcile assessment", "assessment_id", p.ID, "error", err)
			report.Failed = append(report.Failed, p.ID)
			continue
		}
		report.Repaired++
	}

	s.metrics.RecordReconciled(report.Repaired)
	if report.Checked > 0 {
		slog.Info("Reconciliation finished",
			"checked", report.Checked,
			"repaired", report.Repaired,
			"failed", len(report.Failed),
		)
	}
	return report, nil
}

func (s *WorkflowService) reconcileOne(ctx context.Context, id string) error {
	ctx, release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	a, err := s.store.Assessments().GetByID(ctx, id)
	if err != nil {
		return storeError(err, "failed to load assessment")
	}
	if a == nil || a.Status != models.StatusApproved {
		return nil
	}

	published := false
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if !a.Published || a.PublicID == nil {
			now := s.now()
			version := a.Version
			if a.ApprovedAt == nil {
				a.ApprovedAt = timePtr(now)
			}
			if a.PublicID == nil {
				a.PublicID = strPtr(newPublicID(*a.ApprovedAt))
			}
			a.Published = true
			if err := s.update(ctx, tx, a, version, models.StatusApproved); err != nil {
				return err
			}
			published = true
		}
		return clearDraftSide(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	if published {
		s.archivePublished(ctx, a)
		s.audit.Log(ctx, "", "reconcile", "assessment",
			fmt.Sprintf("Published assessment %s as %s during reconciliation", id, *a.PublicID))
	}
	return nil
}
