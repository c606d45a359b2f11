package service

import (
	"context"
	"log/slog"
	"time"

	"landrace-threat/internal/directory"
	"landrace-threat/internal/email"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/models"
	"landrace-threat/internal/notify"
	"landrace-threat/internal/repository"
)

// Email types recorded in metrics
const (
	emailTypeDigest   = "reviewer_digest"
	emailTypeReminder = "draft_reminder"
)

// MailReport summarises a batch of scheduled emails
type MailReport struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// ReminderService sends the scheduled reviewer digests and draft reminders
type ReminderService struct {
	store     repository.Store
	directory *directory.Directory
	templates *email.Service
	mailer    notify.Mailer
	metrics   *metrics.WorkflowMetrics
	now       func() time.Time
}

// NewReminderService creates a new reminder service. mailer may be nil, in
// which case nothing is sent.
func NewReminderService(
	store repository.Store,
	dir *directory.Directory,
	templates *email.Service,
	mailer notify.Mailer,
	m *metrics.WorkflowMetrics,
) *ReminderService {
	return &ReminderService{
		store:     store,
		directory: dir,
		templates: templates,
		mailer:    mailer,
		metrics:   m,
		now:       time.Now,
	}
}

func daysSince(now time.Time, t *time.Time, fallback time.Time) int {
	from := fallback
	if t != nil {
		from = *t
	}
	if d := now.Sub(from); d > 0 {
		return int(d / (24 * time.Hour))
	}
	return 0
}

// SendReviewerDigests emails each reviewer one summary of the assessments
// waiting for them
func (s *ReminderService) SendReviewerDigests(ctx context.Context) (MailReport, error) {
	var report MailReport

	pending, err := s.store.Assessments().ListByStatus(ctx, models.StatusPendingReview)
	if err != nil {
		return report, storeError(err, "failed to list pending assessments")
	}
	s.metrics.SetPendingReview(len(pending))

	now := s.now()
	var order []string
	items := make(map[string][]email.DigestItem)
	for _, a := range pending {
		team, err := s.store.Assignments().ListByAssessment(ctx, a.ID)
		if err != nil {
			slog.Warn("Failed to load team for digest", "assessment_id", a.ID, "error", err)
			continue
		}
		for _, m := range team {
			if m.Role != models.RoleReviewer {
				continue
			}
			if _, seen := items[m.UserID]; !seen {
				order = append(order, m.UserID)
			}
			items[m.UserID] = append(items[m.UserID], email.DigestItem{
				AssessmentID: a.ID,
				LandraceName: a.LandraceName,
				CropName:     a.CropName,
				AssessorName: a.AssessorName,
				DaysInReview: daysSince(now, a.SubmittedForReviewAt, a.UpdatedAt),
			})
		}
	}

	report.Candidates = len(order)
	for _, reviewerID := range order {
		u, err := s.directory.Lookup(ctx, reviewerID)
		if err != nil || u == nil || u.Email == "" {
			report.Skipped++
			continue
		}
		msg, ok := s.templates.ReviewerDigestEmail(u.Email, items[reviewerID])
		if !ok {
			report.Skipped++
			continue
		}
		s.send(ctx, emailTypeDigest, msg, &report)
	}

	slog.Info("Reviewer digests processed",
		"pending", len(pending),
		"reviewers", report.Candidates,
		"sent", report.Sent,
		"failed", report.Failed,
	)
	return report, nil
}

// SendDraftReminders emails the assessors of drafts and returned
// assessments that have not changed for at least idleFor
func (s *ReminderService) SendDraftReminders(ctx context.Context, idleFor time.Duration) (MailReport, error) {
	var report MailReport
	now := s.now()

	for _, status := range []models.Status{models.StatusDraft, models.StatusReturned} {
		list, err := s.store.Assessments().ListByStatus(ctx, status)
		if err != nil {
			return report, storeError(err, "failed to list %s assessments", status)
		}
		for i := range list {
			a := &list[i]
			if now.Sub(a.UpdatedAt) < idleFor {
				continue
			}
			team, err := s.store.Assignments().ListByAssessment(ctx, a.ID)
			if err != nil {
				slog.Warn("Failed to load team for reminder", "assessment_id", a.ID, "error", err)
				continue
			}
			for _, m := range team {
				if !m.Role.IsEditor() {
					continue
				}
				report.Candidates++
				u, err := s.directory.Lookup(ctx, m.UserID)
				if err != nil || u == nil || u.Email == "" {
					report.Skipped++
					continue
				}
				msg := s.templates.DraftReminderEmail(u.Email, u.Name(), a, daysSince(now, &a.UpdatedAt, now))
				s.send(ctx, emailTypeReminder, msg, &report)
			}
		}
	}

	slog.Info("Draft reminders processed",
		"candidates", report.Candidates,
		"sent", report.Sent,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *ReminderService) send(ctx context.Context, emailType string, msg email.Message, report *MailReport) {
	if s.mailer == nil {
		report.Skipped++
		return
	}
	err := s.mailer.Send(ctx, msg)
	s.metrics.RecordEmail(emailType, err)
	if err != nil {
		slog.Warn("Failed to send scheduled email", "type", emailType, "error", err)
		report.Failed++
		return
	}
	report.Sent++
}
