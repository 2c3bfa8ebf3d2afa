// Package notify delivers magic-link emails through a hosted provider.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/dmitrijs2005/tokenbank/internal/server/config"
)

const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
)

const magicLinkSubject = "Your sign-in link"

var (
	ErrUnknownProvider = errors.New("unknown email provider")
	ErrMissingAPIKey   = errors.New("email api key is not configured")
)

// Notifier sends a login link to an address.
type Notifier interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// New returns the provider selected by cfg.EmailProvider.
func New(cfg *config.Config) (Notifier, error) {
	if cfg.EmailAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case ProviderResend:
		return NewResendNotifier(cfg.EmailAPIKey, cfg.EmailSender), nil
	case ProviderSendGrid:
		return NewSendGridNotifier(cfg.EmailAPIKey, cfg.EmailSender), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.EmailProvider)
	}
}

func plainBody(link string) string {
	return "Click the link below to sign in. It expires shortly and works once.\n\n" + link + "\n"
}

func htmlBody(link string) string {
	l := html.EscapeString(link)
	return `<p>Click the link below to sign in. It expires shortly and works once.</p>` +
		`<p><a href="` + l + `">Sign in</a></p>` +
		`<p style="color:#666;font-size:12px">` + l + `</p>`
}
