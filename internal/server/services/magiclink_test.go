package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/common"
	"github.com/dmitrijs2005/tokenbank/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentLink struct{ email, link string }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentLink
	err  error
}

func (n *fakeNotifier) SendMagicLink(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentLink{email: email, link: link})
	return nil
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

type magicLinkFixture struct {
	svc      *MagicLinkService
	clock    *testClock
	notifier *fakeNotifier
	limiter  *fakeLimiter
	recorder *fakeRecorder
}

func newMagicLinkFixture(t *testing.T) *magicLinkFixture {
	t.Helper()
	db, m := newSQLiteDB(t)
	f := &magicLinkFixture{
		clock:    newTestClock(),
		notifier: &fakeNotifier{},
		limiter:  &fakeLimiter{allow: true},
		recorder: &fakeRecorder{},
	}
	svc, err := NewMagicLinkService(db, m, testConfig(), f.notifier, f.limiter, discard(), f.recorder, f.clock.Now)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestMagicLink_IssueAndConsume(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "User@Example.com")
	require.NoError(t, err)

	email, err := f.svc.Verify(ctx, token, 900*time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	_, err = f.svc.Verify(ctx, token, 900*time.Second, true)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "second consumption must fail")

	assert.Equal(t, 1, f.recorder.count("magiclink", EventIssued))
	assert.Equal(t, 1, f.recorder.count("magiclink", EventConsumed))
	assert.Equal(t, 1, f.recorder.count("magiclink", EventRejected))
}

func TestMagicLink_ReuseFailsRegardlessOfTiming(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, token, time.Hour, true)
	require.NoError(t, err)

	for _, d := range []time.Duration{0, time.Second, 10 * time.Minute} {
		f.clock.Advance(d)
		_, err := f.svc.Verify(ctx, token, time.Hour, true)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
		_, err = f.svc.Verify(ctx, token, time.Hour, false)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	}
}

func TestMagicLink_PeekDoesNotConsume(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		email, err := f.svc.Verify(ctx, token, f.svc.MaxAge(), false)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", email)
	}

	_, err = f.svc.Verify(ctx, token, f.svc.MaxAge(), true)
	require.NoError(t, err)
}

func TestMagicLink_ExpiredFails(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	f.clock.Advance(901 * time.Second)

	_, err = f.svc.Verify(ctx, token, 900*time.Second, false)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = f.svc.Verify(ctx, token, 900*time.Second, true)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestMagicLink_AgeMeasuredFromCreation(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()
	f.clock.Advance(900 * time.Millisecond)

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	f.clock.Advance(900*time.Second - 50*time.Millisecond)
	email, err := f.svc.Verify(ctx, token, 900*time.Second, false)
	require.NoError(t, err, "50ms before max age")
	assert.Equal(t, "a@example.com", email)

	f.clock.Advance(100 * time.Millisecond)
	_, err = f.svc.Verify(ctx, token, 900*time.Second, true)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestMagicLink_SessionAgeMeasuredFromCreation(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()
	f.clock.Advance(900 * time.Millisecond)

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, token, f.svc.MaxAge(), true)
	require.NoError(t, err)

	f.clock.Advance(time.Hour - 50*time.Millisecond)
	_, err = f.svc.Authenticate(ctx, token)
	require.NoError(t, err)

	f.clock.Advance(100 * time.Millisecond)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestMagicLink_UnknownToken(t *testing.T) {
	f := newMagicLinkFixture(t)

	// Correctly signed but never persisted.
	signer, err := auth.NewMagicLinkSigner([]byte(testConfig().SecretKey), f.clock.Now)
	require.NoError(t, err)
	token, err := signer.Sign("a@example.com")
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), token, time.Hour, true)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestMagicLink_MalformedAndTampered(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	for _, bad := range []string{"", "garbage", token + "x", strings.Replace(token, ".", ".A", 1)} {
		_, err := f.svc.Verify(ctx, bad, time.Hour, true)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	}

	_, err = f.svc.Verify(ctx, token, time.Hour, true)
	assert.NoError(t, err, "failed attempts must not burn the real token")
}

func TestMagicLink_ConcurrentConsumeHasOneWinner(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Verify(ctx, token, time.Hour, true); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMagicLink_Authenticate(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	token, err := f.svc.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "unconsumed link is not a session")

	_, err = f.svc.Verify(ctx, token, f.svc.MaxAge(), true)
	require.NoError(t, err)

	email, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)

	f.clock.Advance(61 * time.Minute)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "session outlives its max age")
}

func TestRequestLogin_SendsEscapedLink(t *testing.T) {
	f := newMagicLinkFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestLogin(ctx, " A@Example.com "))

	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "a@example.com", sent.email)
	assert.True(t, strings.HasPrefix(sent.link, "https://bank.example/auth?token="), sent.link)

	u, err := url.Parse(sent.link)
	require.NoError(t, err)
	token := u.Query().Get("token")

	email, err := f.svc.Verify(ctx, token, f.svc.MaxAge(), true)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)
	assert.Equal(t, []string{"a@example.com"}, f.limiter.keys)
}

func TestRequestLogin_Throttled(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.limiter.allow = false

	err := f.svc.RequestLogin(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, common.ErrTooManyRequests)
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, 1, f.recorder.count("magiclink", EventThrottled))
}

func TestRequestLogin_LimiterErrorFailsOpen(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.limiter.allow = false
	f.limiter.err = errors.New("redis down")

	require.NoError(t, f.svc.RequestLogin(context.Background(), "a@example.com"))
	assert.Len(t, f.notifier.sent, 1)
}

func TestRequestLogin_NotifierFailure(t *testing.T) {
	f := newMagicLinkFixture(t)
	f.notifier.err = errors.New("provider 500")

	err := f.svc.RequestLogin(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, common.ErrNotificationFailed)
	assert.Contains(t, err.Error(), "provider 500")
	assert.Equal(t, 1, f.recorder.count("magiclink", EventIssued), "link is persisted before delivery")
	assert.Equal(t, 1, f.recorder.count("magiclink", EventSendError))
}

func TestRequestLogin_InvalidEmail(t *testing.T) {
	f := newMagicLinkFixture(t)

	err := f.svc.RequestLogin(context.Background(), "not an email")
	assert.ErrorIs(t, err, common.ErrInvalidEmail)
	assert.Empty(t, f.limiter.keys)
}
