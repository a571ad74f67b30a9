package admin

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pauljones0/wanderdeals/internal/table"
)

type tabSummary struct {
	ID    TabID  `json:"id"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type tablePayload struct {
	tabSummary
	Table table.View `json:"table"`
}

func summarize(id TabID, g grid) tabSummary {
	s := tabSummary{ID: id, State: g.State().Phase()}
	if f, ok := g.State().(Failed); ok {
		s.Error = f.Err.Error()
	}
	return s
}

func (h *Handler) ListTabs(w http.ResponseWriter, r *http.Request, sid string) {
	ws, ok := h.workspace(sid)
	if !ok {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	out := make([]tabSummary, 0, len(Tabs))
	for _, id := range Tabs {
		out = append(out, summarize(id, ws.tabs[id]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) lookupTab(w http.ResponseWriter, r *http.Request, sid string) (TabID, grid, bool) {
	ws, ok := h.workspace(sid)
	if !ok {
		writeError(w, http.StatusUnauthorized, "session expired")
		return "", nil, false
	}
	id := TabID(r.PathValue("tab"))
	g, err := ws.tab(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", nil, false
	}
	return id, g, true
}

func writeTable(w http.ResponseWriter, status int, id TabID, g grid) {
	writeJSON(w, status, tablePayload{tabSummary: summarize(id, g), Table: g.View()})
}

// TableView renders the tab, loading it first if it was never loaded.
func (h *Handler) TableView(w http.ResponseWriter, r *http.Request, sid string) {
	id, g, ok := h.lookupTab(w, r, sid)
	if !ok {
		return
	}
	if _, idle := g.State().(Idle); idle {
		if err := g.Reload(r.Context()); err != nil {
			slog.Warn("Failed to load admin tab", "tab", id, "error", err)
		}
	}
	writeTable(w, http.StatusOK, id, g)
}

func (h *Handler) TableExport(w http.ResponseWriter, r *http.Request, sid string) {
	_, g, ok := h.lookupTab(w, r, sid)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := g.WriteCSV(&buf); err != nil {
		slog.Error("Failed to export table", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.ExportFilename(h.now())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("Failed to write export", "error", err)
	}
}

type tableOpRequest struct {
	Key      string `json:"key"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Action   string `json:"action"`
}

// TableOp applies one interaction to a tab and returns the new view.
func (h *Handler) TableOp(w http.ResponseWriter, r *http.Request, sid string) {
	id, g, ok := h.lookupTab(w, r, sid)
	if !ok {
		return
	}

	op := r.PathValue("op")
	var req tableOpRequest
	switch op {
	case "select-all", "reload":
	default:
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var err error
	switch op {
	case "sort":
		err = g.ToggleSort(req.Key)
	case "page":
		g.SetPage(req.Page)
	case "page-size":
		err = g.SetPageSize(req.PageSize)
	case "select":
		err = g.ToggleSelect(req.Key)
	case "select-all":
		g.ToggleSelectAll()
	case "columns":
		err = g.ToggleColumn(req.Key)
	case "bulk":
		err = g.Bulk(r.Context(), req.Action)
		slog.Info("Admin bulk action", "tab", id, "action", req.Action, "session", sid, "error", err)
	case "row-action":
		err = g.Row(r.Context(), req.Action, req.Key)
		slog.Info("Admin row action", "tab", id, "action", req.Action, "key", req.Key, "session", sid, "error", err)
	case "reload":
		err = g.Reload(r.Context())
	default:
		writeError(w, http.StatusNotFound, "unknown table operation: "+op)
		return
	}

	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("Admin table operation failed", "tab", id, "op", op, "error", err)
			writeJSON(w, status, struct {
				tablePayload
				Message string `json:"message"`
			}{tablePayload{summarize(id, g), g.View()}, "operation failed"})
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeTable(w, http.StatusOK, id, g)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, table.ErrRowNotFound), errors.Is(err, table.ErrUnknownColumn):
		return http.StatusNotFound
	case errors.Is(err, table.ErrInvalidPageSize), errors.Is(err, table.ErrUnsortable),
		errors.Is(err, table.ErrNoSelection), errors.Is(err, table.ErrUnknownAction):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
