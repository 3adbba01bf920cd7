package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/mail"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
	"github.com/erazemk/najdeno/internal/throttle"
)

// ReauthWindow is how long a Reauthenticate allows UpdatePassword.
const ReauthWindow = 5 * time.Minute

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LocalConfig configures a Local provider.
type LocalConfig struct {
	// LoginRate and LoginBurst throttle password checks per email.
	LoginRate  rate.Limit
	LoginBurst int
	// PublicURL is the base of links in mails.
	PublicURL string
	Mailer    mail.Mailer
	Now       func() time.Time
}

// Local keeps bcrypt credentials in SQLite and issues JWT sessions.
type Local struct {
	db            *sql.DB
	sessionSecret string
	resetSecret   string
	cfg           LocalConfig

	attempts *throttle.Keyed

	mu       sync.Mutex
	reauthed map[string]time.Time
}

// NewLocal creates a Local provider. Signing secrets are created on first use
// and kept in the settings table.
func NewLocal(ctx context.Context, db *sql.DB, cfg LocalConfig) (*Local, error) {
	sessionSecret, err := store.GetSecret(ctx, db, store.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("loading session secret: %w", err)
	}
	resetSecret, err := store.GetSecret(ctx, db, store.ResetSecret)
	if err != nil {
		return nil, fmt.Errorf("loading reset secret: %w", err)
	}

	if cfg.LoginRate == 0 {
		cfg.LoginRate = rate.Every(6 * time.Second)
	}
	if cfg.LoginBurst == 0 {
		cfg.LoginBurst = 5
	}
	if cfg.Mailer == nil {
		cfg.Mailer = &mail.LogMailer{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Local{
		db:            db,
		sessionSecret: sessionSecret,
		resetSecret:   resetSecret,
		cfg:           cfg,
		attempts:      throttle.New(cfg.LoginRate, cfg.LoginBurst, cfg.Now),
		reauthed:      make(map[string]time.Time),
	}, nil
}

// allow takes one password attempt from email's budget.
func (l *Local) allow(email string) bool {
	return l.attempts.Allow(strings.ToLower(email))
}

// checkPassword compares password with the stored hash for email.
func (l *Local) checkPassword(ctx context.Context, email, password string) (bool, error) {
	hash, err := store.GetPasswordHash(ctx, l.db, email)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// SignIn implements Provider.
func (l *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if !l.allow(email) {
		return nil, ErrTooManyRequests
	}

	ok, err := l.checkPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	if !ok {
		slog.Warn("login failed", "email", email)
		return nil, ErrInvalidCredential
	}

	token, claims, err := auth.GenerateToken(l.sessionSecret, email)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		Email:     email,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify implements Provider.
func (l *Local) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := auth.ValidateToken(l.sessionSecret, token, auth.PurposeSession)
	if err != nil {
		return nil, ErrInvalidSession
	}

	revoked, err := store.IsTokenRevoked(ctx, l.db, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("verifying session: %w", err)
	}
	if revoked {
		return nil, ErrInvalidSession
	}

	// Sessions die with their credential.
	hash, err := store.GetPasswordHash(ctx, l.db, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("verifying session: %w", err)
	}
	if hash == "" {
		return nil, ErrInvalidSession
	}

	return &Session{
		Token:     token,
		Email:     claims.Email,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignOut implements Provider.
func (l *Local) SignOut(ctx context.Context, s *Session) error {
	l.mu.Lock()
	delete(l.reauthed, s.ID)
	l.mu.Unlock()

	if err := store.RevokeToken(ctx, l.db, s.ID, s.ExpiresAt); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

func checkNewCredential(email, password string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	if model.ValidatePassword(password) != nil {
		return ErrWeakPassword
	}
	return nil
}

// CreateCredential implements Provider.
func (l *Local) CreateCredential(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := checkNewCredential(email, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	err = store.CreateCredential(ctx, l.db, email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return ErrEmailInUse
	}
	return err
}

// DeleteCredential implements Provider.
func (l *Local) DeleteCredential(ctx context.Context, email string) error {
	return store.DeleteCredential(ctx, l.db, email)
}

// UpdateEmail implements Provider.
func (l *Local) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if oldEmail == newEmail {
		return nil
	}
	if !emailPattern.MatchString(newEmail) {
		return ErrInvalidEmail
	}
	if !strings.EqualFold(oldEmail, newEmail) {
		existing, err := store.GetPasswordHash(ctx, l.db, newEmail)
		if err != nil {
			return err
		}
		if existing != "" {
			return ErrEmailInUse
		}
	}
	return store.UpdateCredentialEmail(ctx, l.db, oldEmail, newEmail)
}

// SendPasswordReset implements Provider. Unknown addresses get no mail and no
// error, so the endpoint can't be used to probe for accounts.
func (l *Local) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	if !l.allow(email) {
		return ErrTooManyRequests
	}

	hash, err := store.GetPasswordHash(ctx, l.db, email)
	if err != nil {
		return fmt.Errorf("sending password reset: %w", err)
	}
	if hash == "" {
		slog.Warn("password reset requested for unknown email", "email", email)
		return nil
	}

	token, _, err := auth.GenerateResetToken(l.resetSecret, email)
	if err != nil {
		return err
	}

	link := strings.TrimRight(l.cfg.PublicURL, "/") + "/reset-password?code=" + url.QueryEscape(token)
	msg := mail.Message{
		To:      email,
		Subject: "Reset your password",
		Body: "Use the link below to set a new password. It expires in one hour.\n\n" +
			link + "\n\nIf you did not ask for this, you can ignore this mail.",
	}
	if err := l.cfg.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending password reset: %w", err)
	}
	return nil
}

// ConfirmPasswordReset implements Provider. Each code works once.
func (l *Local) ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error) {
	claims, err := auth.ValidateToken(l.resetSecret, code, auth.PurposeReset)
	if err != nil {
		return "", ErrInvalidResetCode
	}
	revoked, err := store.IsTokenRevoked(ctx, l.db, claims.ID)
	if err != nil {
		return "", fmt.Errorf("checking reset code: %w", err)
	}
	if revoked {
		return "", ErrInvalidResetCode
	}
	if model.ValidatePassword(newPassword) != nil {
		return "", ErrWeakPassword
	}

	if err := l.setPassword(ctx, claims.Email, newPassword); err != nil {
		return "", err
	}
	if err := store.RevokeToken(ctx, l.db, claims.ID, claims.ExpiresAt.Time); err != nil {
		return "", fmt.Errorf("revoking reset code: %w", err)
	}
	return claims.Email, nil
}

// Reauthenticate implements Provider.
func (l *Local) Reauthenticate(ctx context.Context, s *Session, password string) error {
	if !l.allow(s.Email) {
		return ErrTooManyRequests
	}
	ok, err := l.checkPassword(ctx, s.Email, password)
	if err != nil {
		return fmt.Errorf("reauthenticating: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	now := l.cfg.Now()
	l.mu.Lock()
	for id, at := range l.reauthed {
		if now.Sub(at) > ReauthWindow {
			delete(l.reauthed, id)
		}
	}
	l.reauthed[s.ID] = now
	l.mu.Unlock()
	return nil
}

// UpdatePassword implements Provider.
func (l *Local) UpdatePassword(ctx context.Context, s *Session, newPassword string) error {
	l.mu.Lock()
	at, ok := l.reauthed[s.ID]
	l.mu.Unlock()
	if !ok || l.cfg.Now().Sub(at) > ReauthWindow {
		return ErrRequiresRecentLogin
	}
	if model.ValidatePassword(newPassword) != nil {
		return ErrWeakPassword
	}

	if err := l.setPassword(ctx, s.Email, newPassword); err != nil {
		return err
	}

	l.mu.Lock()
	delete(l.reauthed, s.ID)
	l.mu.Unlock()
	return nil
}

func (l *Local) setPassword(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	updated, err := store.UpdatePasswordHash(ctx, l.db, email, string(hash))
	if err != nil {
		return err
	}
	if !updated {
		return ErrInvalidCredential
	}
	return nil
}
