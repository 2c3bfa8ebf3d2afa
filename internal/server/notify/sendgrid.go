package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier sends through the SendGrid v3 mail API.
type SendGridNotifier struct {
	client sendGridClient
	sender string
}

func NewSendGridNotifier(apiKey, sender string) *SendGridNotifier {
	return &SendGridNotifier{client: sendgrid.NewSendClient(apiKey), sender: sender}
}

func (n *SendGridNotifier) SendMagicLink(ctx context.Context, email, link string) error {
	from := mail.NewEmail("Token Bank", n.sender)
	to := mail.NewEmail("", email)
	message := mail.NewSingleEmail(from, magicLinkSubject, to, plainBody(link), htmlBody(link))

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	// Non-2xx answers come back without an error.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
