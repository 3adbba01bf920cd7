package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/mail"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newLocal(t *testing.T) (*Local, *mail.LogMailer, *clock) {
	t.Helper()
	mailer := &mail.LogMailer{}
	c := &clock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	l, err := NewLocal(context.Background(), db.NewTestDB(t), LocalConfig{
		LoginRate:  rate.Every(time.Hour),
		LoginBurst: 5,
		PublicURL:  "https://najdeno.example.com/",
		Mailer:     mailer,
		Now:        c.now,
	})
	require.NoError(t, err)
	return l, mailer, c
}

func TestSignInAndVerify(t *testing.T) {
	l, _, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))

	s, err := l.SignIn(ctx, "ana@example.com", "secret-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	got, err := l.Verify(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Equal(t, s.ID, got.ID)

	_, err = l.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = l.SignIn(ctx, "nobody@example.com", "secret-1")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = l.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSignOutRevokes(t *testing.T) {
	l, _, _ := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))

	s, err := l.SignIn(ctx, "ana@example.com", "secret-1")
	require.NoError(t, err)
	require.NoError(t, l.SignOut(ctx, s))

	_, err = l.Verify(ctx, s.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestDeletedCredentialEndsSessions(t *testing.T) {
	l, _, _ := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))
	s, err := l.SignIn(ctx, "ana@example.com", "secret-1")
	require.NoError(t, err)

	require.NoError(t, l.DeleteCredential(ctx, "ana@example.com"))
	_, err = l.Verify(ctx, s.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCreateCredentialErrors(t *testing.T) {
	l, _, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))
	assert.ErrorIs(t, l.CreateCredential(ctx, "ANA@example.com", "secret-2"), ErrEmailInUse)
	assert.ErrorIs(t, l.CreateCredential(ctx, "not-an-email", "secret-1"), ErrInvalidEmail)
	assert.ErrorIs(t, l.CreateCredential(ctx, "bo@example.com", "12345"), ErrWeakPassword)
}

func TestSignInRateLimited(t *testing.T) {
	l, _, _ := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))

	for i := 0; i < 5; i++ {
		_, err := l.SignIn(ctx, "ana@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredential)
	}
	_, err := l.SignIn(ctx, "Ana@Example.com", "secret-1")
	assert.ErrorIs(t, err, ErrTooManyRequests)

	// Other addresses have their own budget.
	require.NoError(t, l.CreateCredential(ctx, "bo@example.com", "secret-1"))
	_, err = l.SignIn(ctx, "bo@example.com", "secret-1")
	assert.NoError(t, err)
}

func TestSignInBudgetsAreForgotten(t *testing.T) {
	l, _, c := newLocal(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := l.SignIn(ctx, fmt.Sprintf("guess%d@example.com", i), "wrong")
		require.ErrorIs(t, err, ErrInvalidCredential)
	}
	assert.Equal(t, 50, l.attempts.Len())

	// Five attempts at one an hour refill in five hours.
	c.t = c.t.Add(6 * time.Hour)
	_, err := l.SignIn(ctx, "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, 1, l.attempts.Len())
}

func TestStaleReauthenticationsArePruned(t *testing.T) {
	l, _, c := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))
	require.NoError(t, l.CreateCredential(ctx, "bo@example.com", "secret-1"))

	ana, err := l.SignIn(ctx, "ana@example.com", "secret-1")
	require.NoError(t, err)
	require.NoError(t, l.Reauthenticate(ctx, ana, "secret-1"))

	c.t = c.t.Add(ReauthWindow + time.Minute)
	bo, err := l.SignIn(ctx, "bo@example.com", "secret-1")
	require.NoError(t, err)
	require.NoError(t, l.Reauthenticate(ctx, bo, "secret-1"))

	l.mu.Lock()
	_, kept := l.reauthed[ana.ID]
	n := len(l.reauthed)
	l.mu.Unlock()
	assert.False(t, kept)
	assert.Equal(t, 1, n)
}

func resetCode(t *testing.T, m mail.Message) string {
	t.Helper()
	i := strings.Index(m.Body, "code=")
	require.GreaterOrEqual(t, i, 0, "no code in %q", m.Body)
	raw := m.Body[i+len("code="):]
	if j := strings.IndexAny(raw, "\n "); j >= 0 {
		raw = raw[:j]
	}
	code, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return code
}

func TestPasswordReset(t *testing.T) {
	l, mailer, _ := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))

	require.NoError(t, l.SendPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.Sent())

	require.NoError(t, l.SendPasswordReset(ctx, "ana@example.com"))
	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "https://najdeno.example.com/reset-password?code=")

	code := resetCode(t, sent[0])

	_, err := l.ConfirmPasswordReset(ctx, code, "123")
	assert.ErrorIs(t, err, ErrWeakPassword)

	email, err := l.ConfirmPasswordReset(ctx, code, "brand-new")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)

	_, err = l.SignIn(ctx, "ana@example.com", "brand-new")
	assert.NoError(t, err)

	_, err = l.ConfirmPasswordReset(ctx, code, "another-one")
	assert.ErrorIs(t, err, ErrInvalidResetCode)
	_, err = l.ConfirmPasswordReset(ctx, "bogus", "another-one")
	assert.ErrorIs(t, err, ErrInvalidResetCode)

	assert.ErrorIs(t, l.SendPasswordReset(ctx, "bad address"), ErrInvalidEmail)
}

func TestUpdatePasswordNeedsRecentReauth(t *testing.T) {
	l, _, c := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))
	s, err := l.SignIn(ctx, "ana@example.com", "secret-1")
	require.NoError(t, err)

	assert.ErrorIs(t, l.UpdatePassword(ctx, s, "secret-2"), ErrRequiresRecentLogin)
	assert.ErrorIs(t, l.Reauthenticate(ctx, s, "nope"), ErrWrongPassword)

	require.NoError(t, l.Reauthenticate(ctx, s, "secret-1"))
	c.t = c.t.Add(ReauthWindow + time.Second)
	assert.ErrorIs(t, l.UpdatePassword(ctx, s, "secret-2"), ErrRequiresRecentLogin)

	require.NoError(t, l.Reauthenticate(ctx, s, "secret-1"))
	c.t = c.t.Add(time.Minute)
	assert.ErrorIs(t, l.UpdatePassword(ctx, s, "12"), ErrWeakPassword)
	require.NoError(t, l.UpdatePassword(ctx, s, "secret-2"))

	// The window is used up by a successful change.
	assert.ErrorIs(t, l.UpdatePassword(ctx, s, "secret-3"), ErrRequiresRecentLogin)

	_, err = l.SignIn(ctx, "ana@example.com", "secret-2")
	assert.NoError(t, err)
}

func TestUpdateEmail(t *testing.T) {
	l, _, _ := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateCredential(ctx, "ana@example.com", "secret-1"))
	require.NoError(t, l.CreateCredential(ctx, "bo@example.com", "secret-1"))

	assert.ErrorIs(t, l.UpdateEmail(ctx, "ana@example.com", "bo@example.com"), ErrEmailInUse)
	assert.ErrorIs(t, l.UpdateEmail(ctx, "ana@example.com", "ana"), ErrInvalidEmail)

	require.NoError(t, l.UpdateEmail(ctx, "ana@example.com", "ana.cruz@example.com"))
	_, err := l.SignIn(ctx, "ana.cruz@example.com", "secret-1")
	assert.NoError(t, err)
	_, err = l.SignIn(ctx, "ana@example.com", "secret-1")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "This email is already registered.", Message(ErrEmailInUse))
	assert.Equal(t, "Session expired. Please log in again.", Message(ErrRequiresRecentLogin))
	assert.Equal(t, "Current password is incorrect.", Message(ErrWrongPassword))
	assert.Equal(t, "Too many attempts. Please try again later.", Message(ErrTooManyRequests))
	assert.True(t, IsProviderError(ErrWeakPassword))
	assert.False(t, IsProviderError(context.Canceled))
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(16)
	require.NoError(t, err)
	b, _ := GeneratePassword(16)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
