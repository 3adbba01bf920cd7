package firebase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/erazemk/najdeno/internal/identity"
)

// DefaultIdentityToolkitURL is the Identity Toolkit REST endpoint base.
const DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// toolkit calls the Identity Toolkit REST API for the operations the Admin
// SDK does not offer: password sign-in and out-of-band email codes.
type toolkit struct {
	client *resty.Client
	apiKey string
}

func newToolkit(baseURL, apiKey string) *toolkit {
	if baseURL == "" {
		baseURL = DefaultIdentityToolkitURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &toolkit{client: client, apiKey: apiKey}
}

type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signInResponse struct {
	IDToken   string `json:"idToken"`
	Email     string `json:"email"`
	LocalID   string `json:"localId"`
	ExpiresIn string `json:"expiresIn"`
}

type resetResponse struct {
	Email string `json:"email"`
}

// call posts body to an accounts endpoint and decodes the result.
func (t *toolkit) call(ctx context.Context, endpoint string, body, result any) error {
	var apiErr toolkitError
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("key", t.apiKey).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post("/accounts:" + endpoint)
	if err != nil {
		return fmt.Errorf("calling %s: %w", endpoint, err)
	}
	if resp.IsError() {
		if code := apiErr.Error.Message; code != "" {
			return mapToolkitError(code)
		}
		return fmt.Errorf("calling %s: %s", endpoint, resp.Status())
	}
	return nil
}

// mapToolkitError converts an Identity Toolkit error code into a provider
// error. Some codes carry a detail suffix ("WEAK_PASSWORD : ...").
func mapToolkitError(message string) error {
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return identity.ErrInvalidCredential
	case "USER_DISABLED":
		return identity.ErrUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return identity.ErrTooManyRequests
	case "EMAIL_EXISTS":
		return identity.ErrEmailInUse
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return identity.ErrInvalidEmail
	case "WEAK_PASSWORD":
		return identity.ErrWeakPassword
	case "EXPIRED_OOB_CODE", "INVALID_OOB_CODE":
		return identity.ErrInvalidResetCode
	case "CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return identity.ErrRequiresRecentLogin
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND":
		return identity.ErrInvalidSession
	default:
		return fmt.Errorf("identity toolkit: %s", message)
	}
}

func (t *toolkit) signIn(ctx context.Context, email, password string) (*signInResponse, error) {
	var out signInResponse
	err := t.call(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *toolkit) sendPasswordReset(ctx context.Context, email string) error {
	return t.call(ctx, "sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &struct{}{})
}

func (t *toolkit) resetPassword(ctx context.Context, code, newPassword string) (string, error) {
	var out resetResponse
	err := t.call(ctx, "resetPassword", map[string]any{
		"oobCode":     code,
		"newPassword": newPassword,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Email, nil
}
