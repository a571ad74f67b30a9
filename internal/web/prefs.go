package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/prefs"
)

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.prefs.Draft(r.Context(), r.PathValue("owner"))
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	if err != nil {
		slog.Error("Failed to load draft", "owner", r.PathValue("owner"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load draft")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PutDraft stores a partial submission. Drafts are not validated.
func (h *Handler) PutDraft(w http.ResponseWriter, r *http.Request) {
	var d models.Deal
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid draft")
		return
	}
	if err := h.prefs.SaveDraft(r.Context(), r.PathValue("owner"), &d); err != nil {
		slog.Error("Failed to save draft", "owner", r.PathValue("owner"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save draft")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.DeleteDraft(r.Context(), r.PathValue("owner")); err != nil {
		slog.Error("Failed to delete draft", "owner", r.PathValue("owner"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type languagePayload struct {
	Language string `json:"language"`
}

func (h *Handler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	lang, err := h.prefs.Language(r.Context(), r.PathValue("owner"))
	if err != nil {
		slog.Error("Failed to load language", "owner", r.PathValue("owner"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load language")
		return
	}
	writeJSON(w, http.StatusOK, languagePayload{Language: lang})
}

func (h *Handler) PutLanguage(w http.ResponseWriter, r *http.Request) {
	var p languagePayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid language")
		return
	}
	err := h.prefs.SetLanguage(r.Context(), r.PathValue("owner"), p.Language)
	if errors.Is(err, prefs.ErrUnsupportedLanguage) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     "unsupported language",
			"supported": models.Languages,
		})
		return
	}
	if err != nil {
		slog.Error("Failed to save language", "owner", r.PathValue("owner"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save language")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
