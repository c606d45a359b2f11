package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"landrace-threat/internal/config"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/service"
)

// Job names, also used as metric labels
const (
	JobReviewerDigest = "reviewer_digest"
	JobDraftReminders = "draft_reminders"
	JobReconcile      = "reconcile"
)

// Reminders sends the scheduled emails
type Reminders interface {
	SendReviewerDigests(ctx context.Context) (service.MailReport, error)
	SendDraftReminders(ctx context.Context, idleFor time.Duration) (service.MailReport, error)
}

// Reconciler repairs approvals that did not complete
type Reconciler interface {
	Reconcile(ctx context.Context) (service.ReconcileReport, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	reminders  Reminders
	reconciler Reconciler
	metrics    *metrics.WorkflowMetrics
	config     *config.SchedulerConfig
	jobTimeout time.Duration

	now    func() time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(
	reminders Reminders,
	reconciler Reconciler,
	m *metrics.WorkflowMetrics,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		reminders:  reminders,
		reconciler: reconciler,
		metrics:    m,
		config:     cfg,
		jobTimeout: 10 * time.Minute,
		now:        time.Now,
	}
}

// Start starts all scheduled tasks. They run until Stop is called or ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("Starting scheduler",
		"reviewer_digest_enabled", s.config.EnableReviewerDigest,
		"draft_reminders_enabled", s.config.EnableDraftReminders,
		"reconcile_enabled", s.config.EnableReconcile)

	type task struct {
		name string
		when schedule
	}
	var tasks []task

	if s.config.EnableReviewerDigest {
		sched, err := parseCron(s.config.ReviewerDigestCron)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", JobReviewerDigest, err)
		}
		tasks = append(tasks, task{JobReviewerDigest, sched})
	}

	if s.config.EnableDraftReminders {
		sched, err := parseCron(s.config.DraftReminderCron)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", JobDraftReminders, err)
		}
		tasks = append(tasks, task{JobDraftReminders, sched})
	}

	if s.config.EnableReconcile {
		if s.config.ReconcileIntervalMins < 1 {
			return fmt.Errorf("invalid reconcile interval: %d minutes", s.config.ReconcileIntervalMins)
		}
		tasks = append(tasks, task{JobReconcile, schedule{
			interval:  time.Duration(s.config.ReconcileIntervalMins) * time.Minute,
			immediate: true,
		}})
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range tasks {
		s.wg.Add(1)
		go func(name string, when schedule) {
			defer s.wg.Done()
			s.loop(ctx, name, when)
		}(t.name, t.when)
	}

	slog.Info("Scheduler started", "tasks", len(tasks))
	return nil
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, when schedule) {
	if when.immediate {
		s.RunJob(ctx, name)
	}

	for {
		now := s.now()
		next := when.next(now)
		slog.Debug("Next task scheduled", "task", name, "next_run", next.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			s.RunJob(ctx, name)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// RunJob runs one job by name and records the result
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := s.now()
	var err error
	switch name {
	case JobReviewerDigest:
		var report service.MailReport
		report, err = s.reminders.SendReviewerDigests(ctx)
		slog.Info("Reviewer digest job finished", "sent", report.Sent, "failed", report.Failed)
	case JobDraftReminders:
		idle := time.Duration(s.config.DraftReminderAfterDays) * 24 * time.Hour
		var report service.MailReport
		report, err = s.reminders.SendDraftReminders(ctx, idle)
		slog.Info("Draft reminder job finished", "sent", report.Sent, "failed", report.Failed)
	case JobReconcile:
		var report service.ReconcileReport
		report, err = s.reconciler.Reconcile(ctx)
		if len(report.Failed) > 0 {
			err = fmt.Errorf("%d assessments could not be reconciled", len(report.Failed))
		}
	default:
		return fmt.Errorf("unknown job %q", name)
	}

	s.metrics.RecordJobRun(name, err)
	if err != nil {
		slog.Error("Scheduled job failed", "task", name, "duration", s.now().Sub(start), "error", err)
	}
	return err
}

// schedule is a parsed subset of cron: every n minutes, every n hours at a
// minute, daily or weekly
type schedule struct {
	interval  time.Duration // fixed interval, other fields unused
	immediate bool          // run once on start

	hourEvery int // every n hours when > 0
	hour      int
	minute    int
	weekly    bool
	weekday   time.Weekday
}

// parseCron parses a cron expression.
// Supports simple cron format: "minute hour day month weekday"
// Examples: "0 9 * * 1" = Monday 9 AM, "0 8 * * *" = Daily 8 AM, "*/5 * * * *" = Every 5 minutes
func parseCron(cronExpr string) (schedule, error) {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return schedule{}, fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return schedule{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		return schedule{interval: time.Duration(interval) * time.Minute, immediate: true}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return schedule{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return schedule{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		return schedule{hourEvery: interval, minute: minute}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return schedule{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		return schedule{hour: hour, minute: minute}, nil
	}

	weekday, err := strconv.Atoi(parts[4])
	if err != nil || weekday < 0 || weekday > 6 {
		return schedule{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
	}
	return schedule{hour: hour, minute: minute, weekly: true, weekday: time.Weekday(weekday)}, nil
}

// next returns the first run time strictly after from
func (sc schedule) next(from time.Time) time.Time {
	switch {
	case sc.interval > 0:
		return from.Add(sc.interval)
	case sc.hourEvery > 0:
		return nextHourlyInterval(from, sc.hourEvery, sc.minute)
	case sc.weekly:
		return nextWeekday(from, sc.weekday, sc.hour, sc.minute)
	default:
		return nextDailyRun(from, sc.hour, sc.minute)
	}
}

func nextHourlyInterval(from time.Time, hourInterval, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	for next.Hour()%hourInterval != 0 {
		next = next.Add(time.Hour)
	}
	return next
}

func nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}
	next = next.AddDate(0, 0, daysUntil)

	// Already passed this week
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
