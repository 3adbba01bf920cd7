package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/validate"
)

// FoundHandler handles found item and claim endpoints.
type FoundHandler struct {
	Svc *service.Service
}

// Public handles GET /api/public/found?q=.
func (h *FoundHandler) Public(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.PublicFoundItems(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// List handles GET /api/found?q=&status=.
func (h *FoundHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Svc.ListFoundItems(r.Context(), q.Get("q"), q.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/found.
func (h *FoundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.FoundItem
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Svc.CreateFoundItem(r.Context(), service.ActorFor(GetAccount(r.Context())), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/found/{id}.
func (h *FoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.GetFoundItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/found/{id}.
func (h *FoundHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.FoundItem
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Svc.UpdateFoundItem(r.Context(), service.ActorFor(GetAccount(r.Context())), r.PathValue("id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/found/{id}.
func (h *FoundHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := service.ActorFor(GetAccount(r.Context()))
	if err := h.Svc.DeleteFoundItem(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadPhoto handles PUT /api/found/{id}/photo with the image in the
// multipart field "image".
func (h *FoundHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart framing around the largest accepted image.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	url, err := h.Svc.SetFoundItemPhoto(r.Context(), service.ActorFor(GetAccount(r.Context())), r.PathValue("id"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"image": url})
}

// Validate handles POST /api/found/{id}/validate.
func (h *FoundHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validate.ValidationInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Svc.ValidateClaim(r.Context(), service.ActorFor(GetAccount(r.Context())), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Claim handles POST /api/found/{id}/claim.
func (h *FoundHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req validate.ClaimInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Svc.ClaimItem(r.Context(), service.ActorFor(GetAccount(r.Context())), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Revert handles POST /api/found/{id}/revert.
func (h *FoundHandler) Revert(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.RevertClaim(r.Context(), service.ActorFor(GetAccount(r.Context())), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// History handles GET /api/claims?q=.
func (h *FoundHandler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.ClaimHistory(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}
