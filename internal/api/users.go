package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// UsersHandler handles account management endpoints (admin only).
type UsersHandler struct {
	Svc *service.Service
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Svc.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, accounts)
}

// Create handles POST /api/users. The response carries the one-time
// password, which is not stored anywhere else.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Account
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Svc.CreateAccount(r.Context(), service.ActorFor(GetAccount(r.Context())), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.Account
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := h.Svc.UpdateAccount(r.Context(), service.ActorFor(GetAccount(r.Context())), r.PathValue("id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, acc)
}
