package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/throttle"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	accountKey contextKey = "account"
)

const msgChangePassword = "You must change your password before continuing."

// bearerToken reads the session token from the Authorization header. Browsers
// can't set headers on websocket handshakes, so access_token in the query
// is accepted as well.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// authenticate resolves token to its session and account. Accounts that are
// no longer active are signed out.
func authenticate(ctx context.Context, svc *service.Service, ids identity.Provider, token string) (*identity.Session, *model.Account, error) {
	session, err := ids.Verify(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	acc, err := svc.GetAccountByEmail(ctx, session.Email)
	if errors.Is(err, service.ErrNotFound) {
		return nil, nil, &service.AuthError{Msg: "No account found with this email"}
	}
	if err != nil {
		return nil, nil, err
	}

	if err := service.CheckActive(acc); err != nil {
		if err := svc.SignOut(ctx, session); err != nil {
			slog.Error("failed to sign out inactive account", "user", acc.Email, "error", err)
		}
		slog.Warn("inactive account signed out", "user", acc.Email, "status", acc.Status)
		return nil, nil, err
	}
	return session, acc, nil
}

// AuthMiddleware verifies the session token and loads the account behind it.
func AuthMiddleware(svc *service.Service, ids identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			session, acc, err := authenticate(r.Context(), svc, ids, token)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			ctx = context.WithValue(ctx, accountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePasswordChanged blocks accounts still on a temporary password.
func RequirePasswordChanged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc := GetAccount(r.Context())
		if acc == nil {
			jsonError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !acc.PasswordChanged {
			jsonError(w, http.StatusForbidden, msgChangePassword)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that checks if the user has at least the given role.
func RequireRole(minimum string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := GetAccount(r.Context())
			if acc == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !model.RoleAtLeast(acc.Role, minimum) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAccount retrieves the signed-in account from the context.
func GetAccount(ctx context.Context) *model.Account {
	acc, _ := ctx.Value(accountKey).(*model.Account)
	return acc
}

// GetSession retrieves the verified session from the context.
func GetSession(ctx context.Context) *identity.Session {
	s, _ := ctx.Value(sessionKey).(*identity.Session)
	return s
}

// clientHost returns the request's remote address without the port.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests beyond limit per client address with 429.
func RateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := throttle.New(limit, burst, nil)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientHost(r)) {
				slog.Warn("rate limited", "path", r.URL.Path, "remote", r.RemoteAddr)
				jsonError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes the connection through for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
