// Package notify turns workflow transitions into in-app notifications and
// best-effort emails.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"landrace-threat/internal/directory"
	"landrace-threat/internal/email"
	"landrace-threat/internal/errs"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

// Delivery channels reported in failures
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// Mailer delivers one email
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// Event describes a transition that may notify team members. Team is the
// team as it was before the transition ran.
type Event struct {
	Type       models.NotificationType
	Assessment *models.Assessment
	ActorID    string
	Team       []models.Assignment
	Invitee    *models.Assignment
}

// Failure is one recipient that could not be reached on a channel
type Failure struct {
	RecipientID string
	Channel     string
	Err         error
}

// Report summarises a fan-out. It is informational only; transitions never
// fail because of it.
type Report struct {
	Delivered     []models.Notification
	Failures      []Failure
	EmailsSent    int
	EmailsSkipped int
}

// Options tunes a Dispatcher
type Options struct {
	Concurrency      int
	TransitionEmails bool
	Metrics          *metrics.WorkflowMetrics
}

// Dispatcher persists notifications for transition events
type Dispatcher struct {
	store     repository.Store
	directory *directory.Directory
	templates *email.Service
	mailer    Mailer
	opts      Options
}

// NewDispatcher creates a dispatcher. mailer may be nil, in which case no
// emails are sent.
func NewDispatcher(store repository.Store, dir *directory.Directory, templates *email.Service, mailer Mailer, opts Options) *Dispatcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Dispatcher{
		store:     store,
		directory: dir,
		templates: templates,
		mailer:    mailer,
		opts:      opts,
	}
}

// Recipients returns the user ids an event notifies, in team order and
// without duplicates
func Recipients(ev Event) []string {
	var ids []string
	add := func(id string) {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	switch ev.Type {
	case models.NotificationSubmitted:
		for _, a := range ev.Team {
			if a.Role == models.RoleReviewer {
				add(a.UserID)
			}
		}
	case models.NotificationReturned, models.NotificationApproved:
		for _, a := range ev.Team {
			if a.Role.IsEditor() {
				add(a.UserID)
			}
		}
	case models.NotificationInvitation:
		if ev.Invitee != nil && ev.Invitee.Role == models.RoleReviewer {
			add(ev.Invitee.UserID)
		}
	}
	return ids
}

// Message returns the in-app message text for an event
func Message(ev Event) string {
	a := ev.Assessment
	switch ev.Type {
	case models.NotificationSubmitted:
		return fmt.Sprintf("The assessment of %s (%s) was submitted for review.", a.LandraceName, a.CropName)
	case models.NotificationReturned:
		return fmt.Sprintf("The assessment of %s was returned for revision. Please read the reviewer's comments.", a.LandraceName)
	case models.NotificationApproved:
		if a.PublicID != nil {
			return fmt.Sprintf("The assessment of %s was approved and published as %s.", a.LandraceName, *a.PublicID)
		}
		return fmt.Sprintf("The assessment of %s was approved.", a.LandraceName)
	case models.NotificationInvitation:
		return fmt.Sprintf("You were added as reviewer to the assessment of %s.", a.LandraceName)
	default:
		return fmt.Sprintf("The assessment of %s was updated.", a.LandraceName)
	}
}

func (d *Dispatcher) wantsEmail(t models.NotificationType) bool {
	if d.mailer == nil || d.templates == nil {
		return false
	}
	return t == models.NotificationInvitation || d.opts.TransitionEmails
}

// OnTransition writes one notification per recipient. Recipients are
// processed independently; failures are logged and reported.
func (d *Dispatcher) OnTransition(ctx context.Context, ev Event) Report {
	recipients := Recipients(ev)
	if len(recipients) == 0 {
		return Report{}
	}

	message := Message(ev)
	delivered := make([]*models.Notification, len(recipients))

	var (
		mu     sync.Mutex
		report Report
	)
	fail := func(recipientID, channel string, err error) {
		slog.Warn("Notification delivery failed",
			"assessment_id", ev.Assessment.ID,
			"recipient_id", recipientID,
			"channel", channel,
			"type", ev.Type,
			"error", err,
		)
		mu.Lock()
		report.Failures = append(report.Failures, Failure{RecipientID: recipientID, Channel: channel, Err: err})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	for i, recipientID := range recipients {
		g.Go(func() error {
			n := &models.Notification{
				RecipientID:  recipientID,
				AssessmentID: ev.Assessment.ID,
				Type:         ev.Type,
				Message:      message,
			}
			err := d.store.Notifications().Create(ctx, n)
			d.opts.Metrics.RecordNotification(string(ev.Type), err)
			if err != nil {
				fail(recipientID, ChannelInApp, err)
			} else {
				delivered[i] = n
			}

			if !d.wantsEmail(ev.Type) {
				return nil
			}
			sent, err := d.sendEmail(ctx, ev, recipientID, *n)
			d.opts.Metrics.RecordEmail(string(ev.Type), err)
			if err != nil {
				fail(recipientID, ChannelEmail, err)
				return nil
			}
			mu.Lock()
			if sent {
				report.EmailsSent++
			} else {
				report.EmailsSkipped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, n := range delivered {
		if n != nil {
			report.Delivered = append(report.Delivered, *n)
		}
	}
	slices.SortFunc(report.Failures, func(a, b Failure) int {
		return slices.Index(recipients, a.RecipientID) - slices.Index(recipients, b.RecipientID)
	})

	slog.Info("Notifications dispatched",
		"assessment_id", ev.Assessment.ID,
		"type", ev.Type,
		"delivered", len(report.Delivered),
		"failed", len(report.Failures),
		"emails", report.EmailsSent,
	)
	return report
}

// sendEmail reports false when the recipient has no known address
func (d *Dispatcher) sendEmail(ctx context.Context, ev Event, recipientID string, n models.Notification) (bool, error) {
	u, err := d.directory.Lookup(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if u == nil || u.Email == "" {
		return false, nil
	}

	var msg email.Message
	if ev.Type == models.NotificationInvitation && ev.Invitee != nil {
		inviter := d.directory.Name(ctx, ev.ActorID, "A team member")
		msg = d.templates.InvitationEmail(u.Email, inviter, ev.Assessment, ev.Invitee.Role)
	} else {
		msg = d.templates.NotificationEmail(u.Email, n, ev.Assessment)
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

// ListForRecipient lists a user's notifications newest first
func (d *Dispatcher) ListForRecipient(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	list, err := d.store.Notifications().ListByRecipient(ctx, userID, unreadOnly)
	if err != nil {
		return nil, errs.Dependency(err, "failed to list notifications")
	}
	return list, nil
}

// MarkRead flags a notification as read. Only its recipient may do so.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID int64, userID string) error {
	n, err := d.store.Notifications().GetByID(ctx, notificationID)
	if err != nil {
		return errs.Dependency(err, "failed to load notification")
	}
	if n == nil {
		return errs.NotFound("notification %d not found", notificationID)
	}
	if n.RecipientID != userID {
		return errs.Forbidden("only the recipient may mark a notification as read")
	}
	if n.Read {
		return nil
	}
	if _, err := d.store.Notifications().MarkRead(ctx, notificationID); err != nil {
		return errs.Dependency(err, "failed to mark notification as read")
	}
	return nil
}
