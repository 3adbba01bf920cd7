package api

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/media"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/service"
)

// Config holds what the router needs.
type Config struct {
	Service  *service.Service
	Identity identity.Provider
	Hub      *remote.Hub
	Media    media.Store
	Now      func() time.Time

	// SubmitLimit and SubmitBurst throttle public lost report submissions
	// per client address. Zero means one report every 10 seconds, burst 3.
	SubmitLimit rate.Limit
	SubmitBurst int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	if cfg.SubmitLimit == 0 {
		cfg.SubmitLimit = rate.Every(10 * time.Second)
	}
	if cfg.SubmitBurst == 0 {
		cfg.SubmitBurst = 3
	}

	authHandler := &AuthHandler{Svc: cfg.Service}
	usersHandler := &UsersHandler{Svc: cfg.Service}
	lostHandler := &LostHandler{Svc: cfg.Service}
	foundHandler := &FoundHandler{Svc: cfg.Service}
	reportsHandler := &ReportsHandler{Svc: cfg.Service, Now: cfg.Now}
	mediaHandler := &MediaHandler{Media: cfg.Media}
	liveHandler := &LiveHandler{Hub: cfg.Hub, Svc: cfg.Service, Identity: cfg.Identity}

	authMW := AuthMiddleware(cfg.Service, cfg.Identity)
	requireAdmin := RequireRole(model.RoleAdmin)
	submitLimit := RateLimit(cfg.SubmitLimit, cfg.SubmitBurst)

	// staff wraps handlers that need a signed-in account with a changed
	// password.
	staff := func(h http.HandlerFunc) http.Handler {
		return authMW(RequirePasswordChanged(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return staff(requireAdmin(h).ServeHTTP)
	}

	// Public.
	mux.Handle("POST /api/lost", submitLimit(http.HandlerFunc(lostHandler.Submit)))
	mux.HandleFunc("GET /api/public/found", foundHandler.Public)
	mux.HandleFunc("GET /api/public/found/live", liveHandler.Public)
	mux.HandleFunc("GET "+media.RoutePrefix+"{key}", mediaHandler.Get)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/forgot", authHandler.Forgot)
	mux.HandleFunc("POST /api/auth/reset", authHandler.Reset)

	// Signed in, reachable before the first password change.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("PUT /api/auth/profile", authMW(http.HandlerFunc(authHandler.UpdateProfile)))

	mux.Handle("GET /api/dashboard", staff(reportsHandler.Dashboard))

	// Lost reports.
	mux.Handle("GET /api/lost", staff(lostHandler.List))
	mux.Handle("GET /api/lost/{id}", staff(lostHandler.Get))
	mux.Handle("DELETE /api/lost/{id}", staff(lostHandler.Delete))
	mux.Handle("POST /api/lost/{id}/found", staff(lostHandler.MarkFound))

	// Found items and claims.
	mux.Handle("GET /api/found", staff(foundHandler.List))
	mux.Handle("POST /api/found", staff(foundHandler.Create))
	mux.Handle("GET /api/found/{id}", staff(foundHandler.Get))
	mux.Handle("PUT /api/found/{id}", staff(foundHandler.Update))
	mux.Handle("DELETE /api/found/{id}", staff(foundHandler.Delete))
	mux.Handle("PUT /api/found/{id}/photo", staff(foundHandler.UploadPhoto))
	mux.Handle("POST /api/found/{id}/validate", staff(foundHandler.Validate))
	mux.Handle("POST /api/found/{id}/claim", staff(foundHandler.Claim))
	mux.Handle("POST /api/found/{id}/revert", staff(foundHandler.Revert))
	mux.Handle("GET /api/claims", staff(foundHandler.History))

	// Action log.
	mux.Handle("GET /api/logs", staff(reportsHandler.Logs))
	mux.Handle("GET /api/logs/export", staff(reportsHandler.Export))

	mux.Handle("GET /api/live/{collection}", staff(liveHandler.Collection))

	// Accounts (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))

	return mux
}
