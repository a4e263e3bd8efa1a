package notification

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// Mailer delivers the email channel.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type resendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer returns nil when apiKey is empty, which disables the
// email channel.
func NewResendMailer(apiKey, from string) Mailer {
	if apiKey == "" {
		return nil
	}
	return &resendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *resendMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}
	if _, err := m.client.Emails.Send(params); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func renderEmail(n *LivePayload) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>%s</h2>
  <p>%s</p>
  <p style="color: #888; font-size: 12px;">%s</p>
</body>
</html>`, html.EscapeString(n.Title), html.EscapeString(n.Message), n.Timestamp.Format("02.01.2006 15:04"))
}
