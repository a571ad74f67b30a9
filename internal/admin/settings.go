package admin

import (
	"log/slog"
	"net/http"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/session"
	"github.com/pauljones0/wanderdeals/internal/validator"
)

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request, _ string) {
	st, err := h.settings.Settings(r.Context())
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request, sid string) {
	var st models.SystemSettings
	if err := decodeJSON(r, &st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings")
		return
	}
	if err := h.validator.ValidateStruct(st); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validator.FieldErrors(err),
		})
		return
	}
	if err := h.settings.SaveSettings(r.Context(), st); err != nil {
		slog.Error("Failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	slog.Info("System settings updated", "session", sid, "maintenance", st.MaintenanceMode)
	writeJSON(w, http.StatusOK, st)
}

type sessionStatus struct {
	TimeRemaining int64  `json:"timeRemaining"`
	ShowWarning   bool   `json:"showWarning"`
	Formatted     string `json:"formatted"`
	State         string `json:"state"`
}

func newSessionStatus(s session.Status) sessionStatus {
	return sessionStatus{
		TimeRemaining: s.Remaining.Milliseconds(),
		ShowWarning:   s.ShowWarning,
		Formatted:     session.FormatTime(s.Remaining),
		State:         s.State.String(),
	}
}

// SessionStatus is polled by the client and does not count as activity.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request, sid string) {
	st, err := h.timers.Status(sid)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	writeJSON(w, http.StatusOK, newSessionStatus(st))
}

func (h *Handler) SessionExtend(w http.ResponseWriter, r *http.Request, sid string) {
	if err := h.timers.Extend(sid); err != nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	h.SessionStatus(w, r, sid)
}

// SessionActivity reports a client interaction event. Events other than
// pointerdown, keydown, scroll and touchstart are accepted but do not reset the timer.
func (h *Handler) SessionActivity(w http.ResponseWriter, r *http.Request, sid string) {
	var req struct {
		Event session.Event `json:"event"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity")
		return
	}
	if err := h.timers.Touch(sid, req.Event); err != nil {
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}
	h.SessionStatus(w, r, sid)
}
