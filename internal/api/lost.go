package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// LostHandler handles lost report endpoints.
type LostHandler struct {
	Svc *service.Service
}

// Submit handles POST /api/lost. Anyone may submit.
func (h *LostHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.LostReport
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.Svc.SubmitLostReport(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]string{
		"id":      id,
		"message": "Your report has been submitted. Reference: " + id,
	})
}

// List handles GET /api/lost?q=&status=all|found|notFound.
func (h *LostHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	switch status {
	case "":
		status = service.FilterAll
	case service.FilterAll, service.FilterFound, service.FilterNotFound:
	default:
		jsonError(w, http.StatusBadRequest, "status must be all, found or notFound")
		return
	}

	reports, err := h.Svc.ListLostReports(r.Context(), q.Get("q"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, reports)
}

// Get handles GET /api/lost/{id}.
func (h *LostHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.Svc.GetLostReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

// Delete handles DELETE /api/lost/{id}.
func (h *LostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := service.ActorFor(GetAccount(r.Context()))
	if err := h.Svc.DeleteLostReport(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkFound handles POST /api/lost/{id}/found.
func (h *LostHandler) MarkFound(w http.ResponseWriter, r *http.Request) {
	actor := service.ActorFor(GetAccount(r.Context()))
	item, err := h.Svc.MarkLostReportFound(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}
