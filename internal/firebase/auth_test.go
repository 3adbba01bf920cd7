package firebase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/identity"
)

// fakeToolkit answers Identity Toolkit calls. Passwords other than
// "secret-1" fail, as do reset codes other than "good-code".
func fakeToolkit(t *testing.T) *httptest.Server {
	t.Helper()
	fail := func(w http.ResponseWriter, msg string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": msg},
		})
	}
	ok := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			fail(w, "API_KEY_INVALID")
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		switch r.URL.Path {
		case "/accounts:signInWithPassword":
			switch {
			case body["email"] == "locked@example.com":
				fail(w, "USER_DISABLED")
			case body["email"] == "busy@example.com":
				fail(w, "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled due to many failed attempts.")
			case body["password"] != "secret-1":
				fail(w, "INVALID_LOGIN_CREDENTIALS")
			default:
				ok(w, map[string]any{
					"idToken":   "id-token",
					"email":     body["email"],
					"localId":   "uid-1",
					"expiresIn": "3600",
				})
			}
		case "/accounts:sendOobCode":
			switch body["email"] {
			case "nobody@example.com":
				fail(w, "EMAIL_NOT_FOUND")
			case "bad":
				fail(w, "INVALID_EMAIL")
			default:
				ok(w, map[string]any{"email": body["email"]})
			}
		case "/accounts:resetPassword":
			if body["oobCode"] != "good-code" {
				fail(w, "INVALID_OOB_CODE")
				return
			}
			ok(w, map[string]any{"email": "ana@example.com"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	srv := fakeToolkit(t)
	a := NewAuth(nil, "test-key", srv.URL)
	a.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestSignIn(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	s, err := a.SignIn(ctx, " ana@example.com ", "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "id-token", s.Token)
	assert.Equal(t, "uid-1", s.ID)
	assert.Equal(t, "ana@example.com", s.Email)
	assert.Equal(t, time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC), s.ExpiresAt)

	_, err = a.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
	_, err = a.SignIn(ctx, "locked@example.com", "secret-1")
	assert.ErrorIs(t, err, identity.ErrUserDisabled)
	_, err = a.SignIn(ctx, "busy@example.com", "secret-1")
	assert.ErrorIs(t, err, identity.ErrTooManyRequests)
}

func TestSignInWrongKey(t *testing.T) {
	srv := fakeToolkit(t)
	a := NewAuth(nil, "other-key", srv.URL)

	_, err := a.SignIn(context.Background(), "ana@example.com", "secret-1")
	require.Error(t, err)
	assert.False(t, identity.IsProviderError(err))
	assert.Contains(t, err.Error(), "API_KEY_INVALID")
}

func TestSendPasswordReset(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	assert.NoError(t, a.SendPasswordReset(ctx, "ana@example.com"))
	assert.NoError(t, a.SendPasswordReset(ctx, "nobody@example.com"))
	assert.ErrorIs(t, a.SendPasswordReset(ctx, "bad"), identity.ErrInvalidEmail)
}

func TestConfirmPasswordReset(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	email, err := a.ConfirmPasswordReset(ctx, "good-code", "brand-new")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)

	_, err = a.ConfirmPasswordReset(ctx, "stale", "brand-new")
	assert.ErrorIs(t, err, identity.ErrInvalidResetCode)
	_, err = a.ConfirmPasswordReset(ctx, "good-code", "123")
	assert.ErrorIs(t, err, identity.ErrWeakPassword)
}

func TestReauthenticate(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()
	s := &identity.Session{Email: "ana@example.com", ID: "uid-1"}

	assert.ErrorIs(t, a.Reauthenticate(ctx, s, "wrong"), identity.ErrWrongPassword)
	assert.ErrorIs(t, a.UpdatePassword(ctx, s, "secret-2"), identity.ErrRequiresRecentLogin)

	require.NoError(t, a.Reauthenticate(ctx, s, "secret-1"))
	assert.ErrorIs(t, a.UpdatePassword(ctx, s, "12"), identity.ErrWeakPassword)
}

func TestMapToolkitError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"EMAIL_NOT_FOUND", identity.ErrInvalidCredential},
		{"INVALID_PASSWORD", identity.ErrInvalidCredential},
		{"EMAIL_EXISTS", identity.ErrEmailInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", identity.ErrWeakPassword},
		{"EXPIRED_OOB_CODE", identity.ErrInvalidResetCode},
		{"CREDENTIAL_TOO_OLD_LOGIN_AGAIN", identity.ErrRequiresRecentLogin},
		{"TOKEN_EXPIRED", identity.ErrInvalidSession},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.ErrorIs(t, mapToolkitError(tt.code), tt.want)
		})
	}
}
