// Package identity verifies staff credentials and manages sessions. The
// Provider interface has a self-hosted implementation (Local) and a hosted
// one in package firebase.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// Session is an authenticated sign-in.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider is the capability set the application needs from an identity
// service.
type Provider interface {
	// SignIn checks a password and starts a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// Verify resolves a session token.
	Verify(ctx context.Context, token string) (*Session, error)
	// SignOut ends a session. The token stops verifying.
	SignOut(ctx context.Context, s *Session) error
	// CreateCredential provisions a credential without starting a session,
	// so the caller's own session is unaffected.
	CreateCredential(ctx context.Context, email, password string) error
	// DeleteCredential removes a credential.
	DeleteCredential(ctx context.Context, email string) error
	// UpdateEmail moves a credential to a new address.
	UpdateEmail(ctx context.Context, oldEmail, newEmail string) error
	// SendPasswordReset mails a reset link to email.
	SendPasswordReset(ctx context.Context, email string) error
	// ConfirmPasswordReset sets a new password with a mailed reset code and
	// returns the email it belonged to.
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) (string, error)
	// Reauthenticate confirms the session holder's password, allowing a
	// password change for a short while.
	Reauthenticate(ctx context.Context, s *Session, password string) error
	// UpdatePassword changes the session holder's password. It requires a
	// recent Reauthenticate.
	UpdatePassword(ctx context.Context, s *Session, newPassword string) error
}

// Provider errors.
var (
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrInvalidSession      = errors.New("invalid session")
	ErrEmailInUse          = errors.New("email already in use")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrWeakPassword        = errors.New("weak password")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrRequiresRecentLogin = errors.New("requires recent login")
	ErrWrongPassword       = errors.New("wrong password")
	ErrUserDisabled        = errors.New("user disabled")
	ErrInvalidResetCode    = errors.New("invalid reset code")
)

// Message converts a provider error into text for the user.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid email or password."
	case errors.Is(err, ErrInvalidSession):
		return "Your session has ended. Please log in again."
	case errors.Is(err, ErrEmailInUse):
		return "This email is already registered."
	case errors.Is(err, ErrInvalidEmail):
		return "Invalid email address."
	case errors.Is(err, ErrWeakPassword):
		return "Password is too weak."
	case errors.Is(err, ErrTooManyRequests):
		return "Too many attempts. Please try again later."
	case errors.Is(err, ErrRequiresRecentLogin):
		return "Session expired. Please log in again."
	case errors.Is(err, ErrWrongPassword):
		return "Current password is incorrect."
	case errors.Is(err, ErrUserDisabled):
		return "Your account has been suspended. Please contact administrator."
	case errors.Is(err, ErrInvalidResetCode):
		return "This reset link is invalid or has expired."
	default:
		return "Authentication failed. Please try again."
	}
}

// IsProviderError reports whether err is one of the provider errors above.
func IsProviderError(err error) bool {
	for _, known := range []error{
		ErrInvalidCredential, ErrInvalidSession, ErrEmailInUse, ErrInvalidEmail,
		ErrWeakPassword, ErrTooManyRequests, ErrRequiresRecentLogin,
		ErrWrongPassword, ErrUserDisabled, ErrInvalidResetCode,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// GeneratePassword creates a random password of the given length.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
