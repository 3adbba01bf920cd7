package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
)

// Auth implements identity.Provider with Firebase Authentication. Admin
// operations go through the Admin SDK; password checks and reset codes go
// through the Identity Toolkit REST API.
type Auth struct {
	client  *auth.Client
	toolkit *toolkit
	now     func() time.Time

	mu       sync.Mutex
	reauthed map[string]time.Time
}

// NewAuth creates a provider. toolkitURL may be empty for the public
// endpoint.
func NewAuth(client *auth.Client, apiKey, toolkitURL string) *Auth {
	return &Auth{
		client:   client,
		toolkit:  newToolkit(toolkitURL, apiKey),
		now:      time.Now,
		reauthed: make(map[string]time.Time),
	}
}

// SignIn implements identity.Provider.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	res, err := a.toolkit.signIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	ttl, err := strconv.Atoi(res.ExpiresIn)
	if err != nil {
		ttl = 3600
	}
	return &identity.Session{
		Token:     res.IDToken,
		Email:     res.Email,
		ID:        res.LocalID,
		ExpiresAt: a.now().Add(time.Duration(ttl) * time.Second),
	}, nil
}

// Verify implements identity.Provider. Tokens of disabled users and tokens
// issued before a sign-out are rejected.
func (a *Auth) Verify(ctx context.Context, token string) (*identity.Session, error) {
	tok, err := a.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	switch {
	case auth.IsUserDisabled(err):
		return nil, identity.ErrUserDisabled
	case err != nil:
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidSession, err)
	}

	email, _ := tok.Claims["email"].(string)
	return &identity.Session{
		Token:     token,
		Email:     email,
		ID:        tok.UID,
		ExpiresAt: time.Unix(tok.Expires, 0),
	}, nil
}

// SignOut implements identity.Provider. Firebase can only revoke every
// session of a user at once.
func (a *Auth) SignOut(ctx context.Context, s *identity.Session) error {
	a.mu.Lock()
	delete(a.reauthed, s.ID)
	a.mu.Unlock()

	if err := a.client.RevokeRefreshTokens(ctx, s.ID); err != nil {
		return fmt.Errorf("revoking sessions: %w", err)
	}
	return nil
}

// CreateCredential implements identity.Provider. The Admin SDK creates the
// user without signing anyone in.
func (a *Auth) CreateCredential(ctx context.Context, email, password string) error {
	if model.ValidatePassword(password) != nil {
		return identity.ErrWeakPassword
	}
	params := (&auth.UserToCreate{}).Email(strings.TrimSpace(email)).Password(password)
	_, err := a.client.CreateUser(ctx, params)
	return mapAdminError("creating user", err)
}

// DeleteCredential implements identity.Provider.
func (a *Auth) DeleteCredential(ctx context.Context, email string) error {
	u, err := a.client.GetUserByEmail(ctx, email)
	if auth.IsUserNotFound(err) {
		return nil
	}
	if err != nil {
		return mapAdminError("looking up user", err)
	}
	return mapAdminError("deleting user", a.client.DeleteUser(ctx, u.UID))
}

// UpdateEmail implements identity.Provider.
func (a *Auth) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if oldEmail == newEmail {
		return nil
	}
	u, err := a.client.GetUserByEmail(ctx, oldEmail)
	if err != nil {
		return mapAdminError("looking up user", err)
	}
	_, err = a.client.UpdateUser(ctx, u.UID, (&auth.UserToUpdate{}).Email(newEmail))
	return mapAdminError("updating email", err)
}

// SendPasswordReset implements identity.Provider. Unknown addresses are not
// reported to the caller.
func (a *Auth) SendPasswordReset(ctx context.Context, email string) error {
	err := a.toolkit.sendPasswordReset(ctx, strings.TrimSpace(email))
	if errors.Is(err, identity.ErrInvalidCredential) {
		slog.Warn("password reset requested for unknown email", "email", email)
		return nil
	}
	return err
}

// ConfirmPasswordReset implements identity.Provider.
func (a *Auth) ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error) {
	if model.ValidatePassword(newPassword) != nil {
		return "", identity.ErrWeakPassword
	}
	return a.toolkit.resetPassword(ctx, code, newPassword)
}

// Reauthenticate implements identity.Provider.
func (a *Auth) Reauthenticate(ctx context.Context, s *identity.Session, password string) error {
	_, err := a.toolkit.signIn(ctx, s.Email, password)
	if errors.Is(err, identity.ErrInvalidCredential) {
		return identity.ErrWrongPassword
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.reauthed[s.ID] = a.now()
	a.mu.Unlock()
	return nil
}

// UpdatePassword implements identity.Provider.
func (a *Auth) UpdatePassword(ctx context.Context, s *identity.Session, newPassword string) error {
	a.mu.Lock()
	at, ok := a.reauthed[s.ID]
	a.mu.Unlock()
	if !ok || a.now().Sub(at) > identity.ReauthWindow {
		return identity.ErrRequiresRecentLogin
	}
	if model.ValidatePassword(newPassword) != nil {
		return identity.ErrWeakPassword
	}

	_, err := a.client.UpdateUser(ctx, s.ID, (&auth.UserToUpdate{}).Password(newPassword))
	if err != nil {
		return mapAdminError("updating password", err)
	}

	a.mu.Lock()
	delete(a.reauthed, s.ID)
	a.mu.Unlock()
	return nil
}

func mapAdminError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case auth.IsEmailAlreadyExists(err):
		return identity.ErrEmailInUse
	case auth.IsInvalidEmail(err):
		return identity.ErrInvalidEmail
	case auth.IsUserNotFound(err):
		return identity.ErrInvalidCredential
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
