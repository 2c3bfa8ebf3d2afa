package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/auth"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/dmitrijs2005/tokenbank/internal/server/repositories/repomanager"
)

// Magic-link event labels.
const (
	EventIssued    = "issued"
	EventConsumed  = "consumed"
	EventRejected  = "rejected"
	EventThrottled = "throttled"
	EventSendError = "send_failed"
)

// Notifier delivers a login link to a user.
type Notifier interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LoginLimiter throttles login requests per key.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MagicLinkService issues and verifies single-use login tokens.
type MagicLinkService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	signer        *auth.MagicLinkSigner
	notifier      Notifier
	limiter       LoginLimiter
	publicURL     string
	maxAge        time.Duration
	sessionMaxAge time.Duration
	logger        logging.Logger
	recorder      Recorder
	now           func() time.Time
}

// NewMagicLinkService builds the service from cfg. A nil now uses time.Now;
// recorder may be nil.
func NewMagicLinkService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	notifier Notifier, limiter LoginLimiter, logger logging.Logger, recorder Recorder, now func() time.Time) (*MagicLinkService, error) {
	if now == nil {
		now = time.Now
	}
	signer, err := auth.NewMagicLinkSigner([]byte(cfg.SecretKey), now)
	if err != nil {
		return nil, err
	}
	return &MagicLinkService{
		db:            db,
		repomanager:   m,
		signer:        signer,
		notifier:      notifier,
		limiter:       limiter,
		publicURL:     strings.TrimRight(cfg.PublicURL, "/"),
		maxAge:        cfg.MagicLinkMaxAge,
		sessionMaxAge: cfg.SessionMaxAge,
		logger:        logger.With("module", "magiclink"),
		recorder:      recorderOrNop(recorder),
		now:           now,
	}, nil
}

// MaxAge is the configured link validity.
func (s *MagicLinkService) MaxAge() time.Duration { return s.maxAge }

// Issue signs a token for email and persists it unused.
func (s *MagicLinkService) Issue(ctx context.Context, email string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	token, err := s.signer.Sign(email)
	if err != nil {
		return "", fmt.Errorf("error signing magic link: %w", err)
	}

	if err := s.repomanager.MagicLinks(s.db).Create(ctx, token, email, s.now()); err != nil {
		return "", common.Unavailable(err)
	}

	s.recorder.MagicLink(EventIssued)
	s.logger.Debug(ctx, "magic link issued", "token", common.Fingerprint(token))
	return token, nil
}

// Verify returns the email bound to token. It fails with
// common.ErrInvalidToken when the signature is bad, the token is older than
// maxAge, unknown or already used. With markUsed the link is consumed in the
// same conditional update that checks it, so only one caller ever wins.
// Without markUsed the link is left untouched.
func (s *MagicLinkService) Verify(ctx context.Context, token string, maxAge time.Duration, markUsed bool) (string, error) {
	email, err := s.signer.Parse(token, maxAge)
	if err != nil {
		return s.reject(ctx, token, "signature or age")
	}

	repo := s.repomanager.MagicLinks(s.db)

	link, err := repo.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.reject(ctx, token, "unknown")
		}
		return "", common.Unavailable(err)
	}
	if link.Used || link.Email != email {
		return s.reject(ctx, token, "used")
	}
	if s.now().Sub(link.CreatedAt) > maxAge {
		return s.reject(ctx, token, "expired")
	}

	if markUsed {
		ok, err := repo.MarkUsed(ctx, token)
		if err != nil {
			return "", common.Unavailable(err)
		}
		if !ok {
			return s.reject(ctx, token, "lost consume race")
		}
		s.recorder.MagicLink(EventConsumed)
	}

	return email, nil
}

// Authenticate resolves a session cookie. The cookie holds a link that was
// consumed at login; it stays valid for sessionMaxAge after issuance.
func (s *MagicLinkService) Authenticate(ctx context.Context, token string) (string, error) {
	email, err := s.signer.Parse(token, s.sessionMaxAge)
	if err != nil {
		return "", common.ErrInvalidToken
	}

	link, err := s.repomanager.MagicLinks(s.db).Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidToken
		}
		return "", common.Unavailable(err)
	}
	if !link.Used || link.Email != email || s.now().Sub(link.CreatedAt) > s.sessionMaxAge {
		return "", common.ErrInvalidToken
	}
	return email, nil
}

// RequestLogin throttles, issues a link and hands it to the notifier. The
// link stays persisted when delivery fails.
func (s *MagicLinkService) RequestLogin(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		s.logger.Warn(ctx, "login limiter unavailable, allowing request", "error", err)
		allowed = true
	}
	if !allowed {
		s.recorder.MagicLink(EventThrottled)
		return common.ErrTooManyRequests
	}

	token, err := s.Issue(ctx, email)
	if err != nil {
		return err
	}

	if err := s.notifier.SendMagicLink(ctx, email, s.LoginURL(token)); err != nil {
		s.recorder.MagicLink(EventSendError)
		s.logger.Error(ctx, "magic link delivery failed", "error", err)
		return fmt.Errorf("%w: %w", common.ErrNotificationFailed, err)
	}

	s.logger.Info(ctx, "magic link sent", "token", common.Fingerprint(token))
	return nil
}

// LoginURL is the link mailed to the user.
func (s *MagicLinkService) LoginURL(token string) string {
	return s.publicURL + "/auth?token=" + url.QueryEscape(token)
}

func (s *MagicLinkService) reject(ctx context.Context, token, reason string) (string, error) {
	s.recorder.MagicLink(EventRejected)
	s.logger.Debug(ctx, "magic link rejected", "token", common.Fingerprint(token), "reason", reason)
	return "", common.ErrInvalidToken
}
