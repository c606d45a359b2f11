package email

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"mime"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landrace-threat/internal/config"
	"landrace-threat/internal/models"
	"landrace-threat/internal/scoring"
)

// fakeSMTP accepts one session and records the envelope and data
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt []string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go f.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		<-f.done
	})
	return f
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	write := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	write("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			write("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			f.mu.Lock()
			f.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			f.mu.Unlock()
			write("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			f.mu.Lock()
			f.rcpt = append(f.rcpt, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			f.mu.Unlock()
			write("250 OK")
		case upper == "DATA":
			write("354 End data with <CR><LF>.<CR><LF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.mu.Lock()
			f.data = b.String()
			f.mu.Unlock()
			write("250 OK")
		case upper == "QUIT":
			write("221 Bye")
			return
		default:
			write("250 OK")
		}
	}
}

func testAssessment() *models.Assessment {
	a := &models.Assessment{
		ID:           "0b7a4f5e-1111-4c4c-8d8d-000000000001",
		LandraceName: "Rouge <de> Bordeaux",
		CropName:     "Wheat",
		Subcriteria:  scoring.Values{"A1": 5, "B1": 4},
		Status:       models.StatusPendingReview,
	}
	a.ApplyScore()
	return a
}

func TestSendDeliversOverSMTP(t *testing.T) {
	srv := startFakeSMTP(t)
	host, port, err := net.SplitHostPort(srv.ln.Addr().String())
	require.NoError(t, err)

	svc := NewService(&config.EmailConfig{SMTPHost: host, SMTPPort: port, SMTPFrom: "noreply@example.org", AppURL: "https://lrt.example.org"})
	msg := svc.NotificationEmail("reviewer@example.org", models.Notification{
		Type:    models.NotificationSubmitted,
		Message: "Assessment submitted for review",
	}, testAssessment())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Send(ctx, msg))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "noreply@example.org", srv.from)
	assert.Equal(t, []string{"reviewer@example.org"}, srv.rcpt)
	assert.Contains(t, srv.data, "Subject: Review requested: Rouge <de> Bordeaux")
	assert.Contains(t, srv.data, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, srv.data, "Rouge &lt;de&gt; Bordeaux")
}

func TestSendFailsOnRejectedAuthentication(t *testing.T) {
	srv := startFakeSMTP(t)
	host, port, err := net.SplitHostPort(srv.ln.Addr().String())
	require.NoError(t, err)

	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	svc := NewService(&config.EmailConfig{
		SMTPHost:     host,
		SMTPPort:     port,
		SMTPFrom:     "noreply@example.org",
		SMTPUsername: "mailer",
		SMTPPassword: "wrong",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = svc.Send(ctx, Message{To: "reviewer@example.org", Subject: "Hello", HTML: "<p>hi</p>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to authenticate")

	assert.Contains(t, logs.String(), "SMTP authentication failed")
	assert.Contains(t, logs.String(), "username=mailer")

	<-srv.done
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Empty(t, srv.rcpt, "nothing is sent after a failed login")
}

func TestHeadersStayOnOneLine(t *testing.T) {
	svc := NewService(&config.EmailConfig{SMTPFrom: "noreply@example.org", AppURL: "https://lrt.example.org"})
	a := testAssessment()
	a.LandraceName = "Emmer\r\nBcc: attacker@evil.example"

	msg := svc.InvitationEmail("reviewer@example.org", "Ada", a, models.RoleReviewer)
	buf, err := svc.buildMessage(msg.To, msg.Subject, msg.HTML)
	require.NoError(t, err)

	head, _, found := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, found)
	lines := strings.Split(head, "\r\n")
	assert.Len(t, lines, 5)
	for _, line := range lines {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), line)
	}
	assert.Contains(t, lines, "Subject: Invitation: reviewer assessment of Emmer  Bcc: attacker@evil.example")

	_, err = svc.buildMessage("reviewer@example.org\r\nBcc: attacker@evil.example", "Hi", "")
	assert.Error(t, err)
}

func TestNonASCIISubjectIsEncoded(t *testing.T) {
	svc := NewService(&config.EmailConfig{SMTPFrom: "noreply@example.org"})
	a := testAssessment()
	a.LandraceName = "Ödenwald"

	msg := svc.DraftReminderEmail("ada@example.org", "Ada", a, 14)
	buf, err := svc.buildMessage(msg.To, msg.Subject, msg.HTML)
	require.NoError(t, err)

	var subject string
	for _, line := range strings.Split(buf.String(), "\r\n") {
		if v, ok := strings.CutPrefix(line, "Subject: "); ok {
			subject = v
			break
		}
	}
	assert.True(t, strings.HasPrefix(subject, "=?utf-8?q?"), subject)

	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	require.NoError(t, err)
	assert.Equal(t, "Reminder: draft assessment of Ödenwald", decoded)
}

func TestSendRequiresConfiguration(t *testing.T) {
	svc := NewService(&config.EmailConfig{})
	assert.False(t, svc.Enabled())
	assert.Error(t, svc.Send(context.Background(), Message{To: "x@example.org"}))

	svc = NewService(&config.EmailConfig{SMTPHost: "localhost", SMTPPort: "1"})
	assert.Error(t, svc.Send(context.Background(), Message{}))
}

func TestNotificationEmailLinksPublishedRecord(t *testing.T) {
	svc := NewService(&config.EmailConfig{AppURL: "https://lrt.example.org"})
	a := testAssessment()
	publicID := "LTA-2026-0A1B2C3D"
	a.PublicID = &publicID
	a.Published = true

	msg := svc.NotificationEmail("a@example.org", models.Notification{Type: models.NotificationApproved}, a)

	assert.True(t, strings.HasPrefix(msg.Subject, "Approved:"))
	assert.Contains(t, msg.HTML, "https://lrt.example.org/published/LTA-2026-0A1B2C3D")
}

func TestReviewerDigestEmail(t *testing.T) {
	svc := NewService(&config.EmailConfig{AppURL: "https://lrt.example.org"})

	_, ok := svc.ReviewerDigestEmail("r@example.org", nil)
	assert.False(t, ok, "empty digests are not sent")

	msg, ok := svc.ReviewerDigestEmail("r@example.org", []DigestItem{
		{AssessmentID: "a1", LandraceName: "Emmer", CropName: "Wheat", AssessorName: "Ada", DaysInReview: 3},
		{AssessmentID: "a2", LandraceName: "Bere", CropName: "Barley", AssessorName: "Bo", DaysInReview: 1},
	})
	require.True(t, ok)
	assert.Equal(t, "Daily summary: 2 assessments waiting for review", msg.Subject)
	assert.Contains(t, msg.HTML, "https://lrt.example.org/assessments/a2")
	assert.Contains(t, msg.HTML, "3 days")
}

func TestDraftReminderMentionsReturnedState(t *testing.T) {
	svc := NewService(&config.EmailConfig{AppURL: "https://lrt.example.org"})
	a := testAssessment()
	a.Status = models.StatusReturned

	msg := svc.DraftReminderEmail("a@example.org", "Ada", a, 21)
	assert.Contains(t, msg.HTML, "returned for revision")
	assert.Contains(t, msg.HTML, "21 days")
}
