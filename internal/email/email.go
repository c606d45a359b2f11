package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"unicode"

	"landrace-threat/internal/config"
	"landrace-threat/internal/models"
)

// Message is one outgoing HTML email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Service handles email operations
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

// Enabled reports whether an SMTP server is configured
func (s *Service) Enabled() bool {
	return s.config.Enabled()
}

func (s *Service) assessmentURL(id string) string {
	return fmt.Sprintf("%s/assessments/%s", s.config.AppURL, id)
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

func layout(title, content string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        %s
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`, esc(title), content)
}

func button(href, label string) string {
	return fmt.Sprintf(`<div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #2e7d32; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">%s</a>
        </div>`, esc(href), esc(label))
}

// NotificationEmail mirrors an in-app notification as an email
func (s *Service) NotificationEmail(to string, n models.Notification, a *models.Assessment) Message {
	var subject, heading string
	switch n.Type {
	case models.NotificationSubmitted:
		subject = fmt.Sprintf("Review requested: %s", a.LandraceName)
		heading = "An assessment is waiting for your review"
	case models.NotificationReturned:
		subject = fmt.Sprintf("Returned for revision: %s", a.LandraceName)
		heading = "Your assessment was returned with comments"
	case models.NotificationApproved:
		subject = fmt.Sprintf("Approved: %s", a.LandraceName)
		heading = "Your assessment was approved and published"
	case models.NotificationInvitation:
		subject = fmt.Sprintf("You were added to the assessment of %s", a.LandraceName)
		heading = "You joined an assessment team"
	default:
		subject = fmt.Sprintf("Update on %s", a.LandraceName)
		heading = "Assessment update"
	}

	link := s.assessmentURL(a.ID)
	if a.Published && a.PublicID != nil {
		link = fmt.Sprintf("%s/published/%s", s.config.AppURL, *a.PublicID)
	}

	content := fmt.Sprintf(`<h2 style="color: #2e7d32;">%s</h2>
        <p>%s</p>
        <table style="margin: 20px 0;">
            <tr><td style="padding: 4px 12px 4px 0; color: #777;">Landrace</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0; color: #777;">Crop</td><td>%s</td></tr>
            <tr><td style="padding: 4px 12px 4px 0; color: #777;">Category</td><td>%s (%.1f%%)</td></tr>
        </table>
        %s`,
		esc(heading), esc(n.Message), esc(a.LandraceName), esc(a.CropName),
		esc(a.Category.Label()), a.RiskPercent, button(link, "Open assessment"))

	return Message{To: to, Subject: subject, HTML: layout(subject, content)}
}

// InvitationEmail tells a user they were added to a team
func (s *Service) InvitationEmail(to, inviterName string, a *models.Assessment, role models.Role) Message {
	subject := fmt.Sprintf("Invitation: %s assessment of %s", role, a.LandraceName)

	content := fmt.Sprintf(`<h2 style="color: #2e7d32;">You have been invited</h2>
        <p><strong>%s</strong> added you as <strong>%s</strong> to the threat assessment of
        <strong>%s</strong> (%s).</p>
        %s
        <p>If the button doesn't work, you can also copy and paste the following link into your browser:</p>
        <p style="word-break: break-all; color: #2e7d32;">%s</p>`,
		esc(inviterName), esc(string(role)), esc(a.LandraceName), esc(a.CropName),
		button(s.assessmentURL(a.ID), "Open assessment"), esc(s.assessmentURL(a.ID)))

	return Message{To: to, Subject: subject, HTML: layout(subject, content)}
}

// DigestItem is one row of the reviewer digest
type DigestItem struct {
	AssessmentID string
	LandraceName string
	CropName     string
	AssessorName string
	DaysInReview int
}

// ReviewerDigestEmail summarises the assessments waiting for a reviewer. It
// reports false when there is nothing to send.
func (s *Service) ReviewerDigestEmail(to string, items []DigestItem) (Message, bool) {
	if len(items) == 0 {
		return Message{}, false
	}

	subject := fmt.Sprintf("Daily summary: %d assessments waiting for review", len(items))

	var rows strings.Builder
	for _, item := range items {
		fmt.Fprintf(&rows, `
			<tr style="border-bottom: 1px solid #eee;">
				<td style="padding: 12px 8px;">%s<br><span style="color: #999; font-size: 12px;">%s</span></td>
				<td style="padding: 12px 8px;">%s</td>
				<td style="padding: 12px 8px; text-align: center;">%d days</td>
				<td style="padding: 12px 8px;"><a href="%s" style="color: #2e7d32; text-decoration: none;">Open</a></td>
			</tr>`,
			esc(item.LandraceName), esc(item.CropName), esc(item.AssessorName), item.DaysInReview,
			esc(s.assessmentURL(item.AssessmentID)))
	}

	content := fmt.Sprintf(`<h2 style="color: #2e7d32;">Assessments waiting for review</h2>
        <p>You currently have <strong>%d assessments</strong> pending review:</p>
        <table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
            <thead>
                <tr style="background-color: #f5f5f5; border-bottom: 2px solid #ddd;">
                    <th style="padding: 12px 8px; text-align: left;">Landrace</th>
                    <th style="padding: 12px 8px; text-align: left;">Assessor</th>
                    <th style="padding: 12px 8px; text-align: center;">Waiting</th>
                    <th style="padding: 12px 8px; text-align: left;">Action</th>
                </tr>
            </thead>
            <tbody>%s
            </tbody>
        </table>`, len(items), rows.String())

	return Message{To: to, Subject: subject, HTML: layout(subject, content)}, true
}

// DraftReminderEmail reminds an assessor of an unfinished draft
func (s *Service) DraftReminderEmail(to, userName string, a *models.Assessment, daysIdle int) Message {
	subject := fmt.Sprintf("Reminder: draft assessment of %s", a.LandraceName)

	statusNote := "is still a draft"
	if a.Status == models.StatusReturned {
		statusNote = "was returned for revision and is waiting for your changes"
	}

	content := fmt.Sprintf(`<h2 style="color: #2e7d32;">Hello %s,</h2>
        <p>Your threat assessment of <strong>%s</strong> (%s) %s.</p>
        <p>It has not been updated for <strong>%d days</strong>.</p>
        %s`,
		esc(userName), esc(a.LandraceName), esc(a.CropName), statusNote, daysIdle,
		button(s.assessmentURL(a.ID), "Continue editing"))

	return Message{To: to, Subject: subject, HTML: layout(subject, content)}
}

// Send delivers msg over SMTP
func (s *Service) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return fmt.Errorf("smtp is not configured")
	}
	if msg.To == "" {
		return fmt.Errorf("email recipient is empty")
	}
	return s.sendEmail(ctx, msg.To, msg.Subject, msg.HTML)
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	message, err := s.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server",
			"address", addr,
			"error", err,
		)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil && !isClosedConn(err) {
			slog.Error("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil && !isClosedConn(err) {
			slog.Error("Failed to close SMTP client", "error", err)
		}
	}(client)

	// Development servers such as Mailpit do not support AUTH
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		if err := client.Auth(auth); err != nil {
			slog.Error("SMTP authentication failed",
				"host", s.config.SMTPHost,
				"username", s.config.SMTPUsername,
				"error", err,
			)
			return fmt.Errorf("failed to authenticate with SMTP server: %w", err)
		}
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}

	if _, err := io.Copy(wc, message); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		slog.Debug("SMTP quit failed", "error", err)
	}

	slog.Info("Email sent successfully", "to", to)

	return nil
}

// buildMessage renders the headers and body. The subject is reduced to one
// line and RFC 2047 encoded when it is not plain ASCII.
func (s *Service) buildMessage(to, subject, body string) (*bytes.Buffer, error) {
	for _, addr := range []string{s.config.SMTPFrom, to} {
		if strings.ContainsAny(addr, "\r\n") {
			return nil, fmt.Errorf("invalid email address %q", addr)
		}
	}

	headers := [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", headerText(subject))},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return &message, nil
}

// headerText replaces control characters so a value stays on one header line
func headerText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
