package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/service"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Clients are served from other origins; sessions travel in the token,
	// not in cookies.
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveMessage is one snapshot pushed to a subscriber.
type liveMessage struct {
	Collection string `json:"collection"`
	Records    any    `json:"records"`
}

// LiveHandler streams collection snapshots over websockets.
type LiveHandler struct {
	Hub      *remote.Hub
	Svc      *service.Service
	Identity identity.Provider
}

// Public handles GET /api/public/found/live?q=: the public found item view,
// re-sent after every change.
func (h *LiveHandler) Public(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	h.stream(w, r, remote.FoundItems, func(snap remote.Snapshot) any {
		return service.Search(service.Unclaimed(service.FoundItems(snap)), query)
	}, nil)
}

// Collection handles GET /api/live/{collection}.
func (h *LiveHandler) Collection(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	var view func(remote.Snapshot) any
	switch collection {
	case remote.FoundItems:
		view = func(snap remote.Snapshot) any { return service.FoundItems(snap) }
	case remote.LostItems:
		view = func(snap remote.Snapshot) any { return service.LostReports(snap) }
	case remote.ActionLogs:
		view = func(snap remote.Snapshot) any { return audit.FromSnapshot(snap) }
	case remote.Users:
		if !model.RoleAtLeast(GetAccount(r.Context()).Role, model.RoleAdmin) {
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		view = func(snap remote.Snapshot) any { return service.Accounts(snap) }
	default:
		jsonError(w, http.StatusNotFound, "unknown collection")
		return
	}
	h.stream(w, r, collection, view, h.recheck(r, collection == remote.Users))
}

// recheck returns a check that the subscriber may still see the stream. It
// repeats what AuthMiddleware and the role gate checked at the handshake.
func (h *LiveHandler) recheck(r *http.Request, adminOnly bool) func(context.Context) error {
	token := GetSession(r.Context()).Token
	return func(ctx context.Context) error {
		_, acc, err := authenticate(ctx, h.Svc, h.Identity, token)
		if err != nil {
			return err
		}
		if adminOnly && !model.RoleAtLeast(acc.Role, model.RoleAdmin) {
			return &service.ForbiddenError{Msg: "insufficient permissions"}
		}
		return nil
	}
}

// closeFor picks the close frame for a failed recheck.
func closeFor(err error) (int, string) {
	var (
		authErr   *service.AuthError
		forbidden *service.ForbiddenError
	)
	switch {
	case errors.As(err, &authErr):
		return websocket.ClosePolicyViolation, authErr.Msg
	case errors.As(err, &forbidden):
		return websocket.ClosePolicyViolation, forbidden.Msg
	case identity.IsProviderError(err):
		return websocket.ClosePolicyViolation, identity.Message(err)
	default:
		return websocket.CloseInternalServerErr, remote.Message(err)
	}
}

// stream upgrades the connection and sends view(snapshot) for the initial
// snapshot and every change until the client goes away. A non-nil check runs
// before each send; when it fails the stream is closed.
func (h *LiveHandler) stream(w http.ResponseWriter, r *http.Request, collection string, view func(remote.Snapshot) any, check func(context.Context) error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "collection", collection, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unsubscribe, err := h.Hub.Subscribe(ctx, collection, func(snap remote.Snapshot) {
		if ctx.Err() != nil {
			return
		}
		if check != nil {
			if err := check(ctx); err != nil {
				code, reason := closeFor(err)
				slog.Warn("live subscriber no longer authorized", "collection", collection, "remote", r.RemoteAddr, "error", err)
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
				cancel()
				return
			}
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		msg := liveMessage{Collection: collection, Records: view(snap)}
		if err := conn.WriteJSON(msg); err != nil {
			slog.Warn("live update not delivered", "collection", collection, "error", err)
			cancel()
		}
	})
	if err != nil {
		slog.Error("live subscription failed", "collection", collection, "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, remote.Message(err)))
		return
	}
	defer unsubscribe()

	slog.Info("live subscriber connected", "collection", collection, "remote", r.RemoteAddr)

	// Clients only read; reading detects when they leave.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	slog.Info("live subscriber disconnected", "collection", collection, "remote", r.RemoteAddr)
}
