package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/ids"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/validate"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps an operation failure to a status and a message the user can
// act on. Unexpected failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		msgs      validate.Errors
		ruleErr   *service.RuleError
		authErr   *service.AuthError
		forbidden *service.ForbiddenError
		reserve   *ids.ReserveError
	)
	switch {
	case errors.As(err, &msgs):
		jsonResponse(w, http.StatusBadRequest, map[string]any{"errors": msgs})
	case errors.As(err, &ruleErr):
		jsonError(w, http.StatusConflict, ruleErr.Msg)
	case errors.As(err, &authErr):
		jsonError(w, http.StatusUnauthorized, authErr.Msg)
	case errors.As(err, &forbidden):
		jsonError(w, http.StatusForbidden, forbidden.Msg)
	case errors.Is(err, service.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case identity.IsProviderError(err):
		slog.Warn("identity provider refused request", "path", r.URL.Path, "error", err)
		jsonError(w, identityStatus(err), identity.Message(err))
	case errors.As(err, &reserve):
		slog.Error("id reservation failed", "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusServiceUnavailable, reserve.Error())
	case errors.Is(err, remote.ErrPermissionDenied):
		slog.Error("data store denied request", "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusForbidden, remote.Message(err))
	case errors.Is(err, remote.ErrUnavailable):
		slog.Error("data store unavailable", "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusServiceUnavailable, remote.Message(err))
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, remote.Message(err))
	}
}

func identityStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, identity.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrWrongPassword),
		errors.Is(err, identity.ErrInvalidResetCode):
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}
