package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// ReportsHandler handles the dashboard and the action log.
type ReportsHandler struct {
	Svc *service.Service
	Now func() time.Time
}

// Dashboard handles GET /api/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// Logs handles GET /api/logs?q=.
func (h *ReportsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Svc.ActionLogs(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entries)
}

// Export handles GET /api/logs/export?format=csv|xlsx&q=. The file holds the
// same rows the filtered log shows.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		write       func(io.Writer, []model.ActionLogEntry) error
		contentType string
	)
	switch format {
	case "csv":
		write, contentType = audit.WriteCSV, "text/csv; charset=utf-8"
	case "xlsx":
		write, contentType = audit.WriteXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		jsonError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	entries, err := h.Svc.ActionLogs(r.Context(), q.Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Render fully before sending headers so a failure can still be reported.
	var buf bytes.Buffer
	if err := write(&buf, entries); err != nil {
		writeError(w, r, fmt.Errorf("exporting action logs: %w", err))
		return
	}

	name := fmt.Sprintf("action_logs_%s.%s", h.now().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *ReportsHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}
