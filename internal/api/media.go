package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/media"
)

// MediaHandler serves found item photos.
type MediaHandler struct {
	Media media.Store
}

// Get handles GET /api/media/{key}.
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.Media.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
