package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"landrace-threat/internal/config"
	"landrace-threat/internal/directory"
	"landrace-threat/internal/email"
	"landrace-threat/internal/errs"
	"landrace-threat/internal/models"
	"landrace-threat/internal/repository/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func team() []models.Assignment {
	return []models.Assignment{
		{AssessmentID: "a1", UserID: "ada", Role: models.RoleAssessor},
		{AssessmentID: "a1", UserID: "cy", Role: models.RoleCoAssessor},
		{AssessmentID: "a1", UserID: "rex", Role: models.RoleReviewer},
		{AssessmentID: "a1", UserID: "rio", Role: models.RoleReviewer},
		{AssessmentID: "a1", UserID: "sam", Role: models.RoleSpectator},
	}
}

func assessment() *models.Assessment {
	return &models.Assessment{ID: "a1", LandraceName: "Emmer", CropName: "Wheat"}
}

func newDispatcher(t *testing.T, mailer Mailer, opts Options) (*Dispatcher, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "ada", Email: "ada@example.org", DisplayName: "Ada"},
		{ID: "cy", Email: "cy@example.org"},
		{ID: "rex", Email: "rex@example.org"},
		{ID: "rio"},
	} {
		require.NoError(t, store.Users().Upsert(ctx, &u))
	}
	templates := email.NewService(&config.EmailConfig{AppURL: "https://lrt.example.org"})
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	return NewDispatcher(store, directory.New(store.Users(), 0), templates, mailer, opts), store
}

func TestRecipients(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want []string
	}{
		{"submit notifies reviewers", Event{Type: models.NotificationSubmitted, Team: team()}, []string{"rex", "rio"}},
		{"return notifies editors", Event{Type: models.NotificationReturned, Team: team()}, []string{"ada", "cy"}},
		{"approve notifies editors", Event{Type: models.NotificationApproved, Team: team()}, []string{"ada", "cy"}},
		{"reviewer invitation", Event{Type: models.NotificationInvitation, Invitee: &models.Assignment{UserID: "new", Role: models.RoleReviewer}}, []string{"new"}},
		{"spectator invitation is silent", Event{Type: models.NotificationInvitation, Invitee: &models.Assignment{UserID: "new", Role: models.RoleSpectator}}, nil},
		{"duplicates collapse", Event{Type: models.NotificationSubmitted, Team: append(team(), models.Assignment{UserID: "rex", Role: models.RoleReviewer})}, []string{"rex", "rio"}},
		{"no reviewers", Event{Type: models.NotificationSubmitted, Team: team()[:2]}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recipients(tt.ev))
		})
	}
}

func TestReturnMessageMentionsComments(t *testing.T) {
	msg := Message(Event{Type: models.NotificationReturned, Assessment: assessment()})
	assert.Contains(t, msg, "comments")
}

func TestOnTransitionWritesOnePerRecipient(t *testing.T) {
	d, store := newDispatcher(t, nil, Options{})
	ctx := context.Background()

	report := d.OnTransition(ctx, Event{Type: models.NotificationSubmitted, Assessment: assessment(), Team: team()})

	require.Len(t, report.Delivered, 2)
	assert.Empty(t, report.Failures)
	assert.Equal(t, "rex", report.Delivered[0].RecipientID)
	assert.Equal(t, "rio", report.Delivered[1].RecipientID)

	for _, id := range []string{"rex", "rio"} {
		list, err := store.Notifications().ListByRecipient(ctx, id, true)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.NotificationSubmitted, list[0].Type)
	}
	list, err := store.Notifications().ListByRecipient(ctx, "ada", false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOnTransitionToleratesPartialFailure(t *testing.T) {
	d, store := newDispatcher(t, nil, Options{})
	ctx := context.Background()
	store.SetFault("notifications.create:cy", errors.New("connection reset"))

	teamWithThreeEditors := append(team(), models.Assignment{UserID: "dee", Role: models.RoleCoAssessor})
	report := d.OnTransition(ctx, Event{Type: models.NotificationApproved, Assessment: assessment(), Team: teamWithThreeEditors})

	require.Len(t, report.Delivered, 2)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "cy", report.Failures[0].RecipientID)
	assert.Equal(t, ChannelInApp, report.Failures[0].Channel)

	list, err := store.Notifications().ListByRecipient(ctx, "dee", false)
	require.NoError(t, err)
	assert.Len(t, list, 1, "later recipients are still notified")
}

func TestInvitationSendsEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d, _ := newDispatcher(t, mailer, Options{})

	report := d.OnTransition(context.Background(), Event{
		Type:       models.NotificationInvitation,
		Assessment: assessment(),
		ActorID:    "ada",
		Invitee:    &models.Assignment{AssessmentID: "a1", UserID: "rex", Role: models.RoleReviewer},
	})

	assert.Len(t, report.Delivered, 1)
	assert.Equal(t, 1, report.EmailsSent)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "rex@example.org", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].HTML, "Ada")
}

func TestEmailFailureDoesNotAffectInApp(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	d, _ := newDispatcher(t, mailer, Options{})

	report := d.OnTransition(context.Background(), Event{
		Type:       models.NotificationInvitation,
		Assessment: assessment(),
		Invitee:    &models.Assignment{UserID: "rex", Role: models.RoleReviewer},
	})

	assert.Len(t, report.Delivered, 1)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, ChannelEmail, report.Failures[0].Channel)
}

func TestTransitionEmailsSkipUnknownAddresses(t *testing.T) {
	mailer := &fakeMailer{}
	d, _ := newDispatcher(t, mailer, Options{TransitionEmails: true})

	report := d.OnTransition(context.Background(), Event{Type: models.NotificationSubmitted, Assessment: assessment(), Team: team()})

	assert.Equal(t, 1, report.EmailsSent, "rex has an address")
	assert.Equal(t, 1, report.EmailsSkipped, "rio has none")
	assert.Empty(t, report.Failures)
}

func TestTransitionEmailsOffByDefault(t *testing.T) {
	mailer := &fakeMailer{}
	d, _ := newDispatcher(t, mailer, Options{})

	d.OnTransition(context.Background(), Event{Type: models.NotificationReturned, Assessment: assessment(), Team: team()})
	assert.Empty(t, mailer.sent)
}

func TestMarkRead(t *testing.T) {
	d, _ := newDispatcher(t, nil, Options{})
	ctx := context.Background()
	report := d.OnTransition(ctx, Event{Type: models.NotificationSubmitted, Assessment: assessment(), Team: team()})
	require.NotEmpty(t, report.Delivered)
	n := report.Delivered[0]

	err := d.MarkRead(ctx, n.ID, "someone-else")
	assert.ErrorIs(t, err, errs.ErrForbidden)

	require.NoError(t, d.MarkRead(ctx, n.ID, n.RecipientID))
	require.NoError(t, d.MarkRead(ctx, n.ID, n.RecipientID), "marking twice is fine")

	unread, err := d.ListForRecipient(ctx, n.RecipientID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, d.MarkRead(ctx, 9999, n.RecipientID), errs.ErrNotFound)
}
