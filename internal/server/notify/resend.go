package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendNotifier sends through the Resend API.
type ResendNotifier struct {
	emails resend.EmailsSvc
	sender string
}

func NewResendNotifier(apiKey, sender string) *ResendNotifier {
	return &ResendNotifier{emails: resend.NewClient(apiKey).Emails, sender: sender}
}

func (n *ResendNotifier) SendMagicLink(ctx context.Context, email, link string) error {
	params := &resend.SendEmailRequest{
		From:    n.sender,
		To:      []string{email},
		Subject: magicLinkSubject,
		Text:    plainBody(link),
		Html:    htmlBody(link),
	}

	if _, err := n.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
