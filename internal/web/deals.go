package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/notifier"
	"github.com/pauljones0/wanderdeals/internal/ranking"
	"github.com/pauljones0/wanderdeals/internal/validator"
)

// rankingOptions reads q, category, sort, lat and lng. Coordinates are only
// used when both parse and are in range.
func rankingOptions(r *http.Request) ranking.Options {
	q := r.URL.Query()
	opts := ranking.Options{
		SearchTerm: q.Get("q"),
		Category:   q.Get("category"),
		SortKey:    ranking.ParseSortKey(q.Get("sort")),
	}
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr == nil && lngErr == nil && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
		opts.UserLocation = &models.GeoPoint{Lat: lat, Lng: lng}
	}
	return opts
}

func (h *Handler) rankedDeals(r *http.Request, opts ranking.Options) ([]models.Deal, error) {
	deals, err := h.store.ListVisibleDeals(r.Context())
	if err != nil {
		return nil, err
	}
	return ranking.FilterAndSort(deals, opts), nil
}

func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.rankedDeals(r, rankingOptions(r))
	if err != nil {
		slog.Error("Failed to list deals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deals": deals, "count": len(deals)})
}

// FeaturedDeal returns the memoized top trending deal. refresh=1 picks a new one.
// Without an explicit category the admin's featured category applies; the pick
// is remembered per category, so changing that setting takes effect at once.
func (h *Handler) FeaturedDeal(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		h.featured.Clear()
	}

	opts := rankingOptions(r)
	if opts.SortKey == "" {
		opts.SortKey = ranking.SortTrending
	}
	if opts.Category == "" {
		if st, err := h.prefs.Settings(r.Context()); err == nil {
			opts.Category = st.FeaturedCategory
		}
	}

	deals, err := h.rankedDeals(r, opts)
	if err != nil {
		slog.Error("Failed to rank featured deal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load featured deal")
		return
	}
	deal, ok := h.featured.PickFor(opts.Category, deals)
	if !ok {
		writeError(w, http.StatusNotFound, "no featured deal")
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.store.GetDealByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, models.ErrNotFound) || (err == nil && !deal.Visible()) {
		writeError(w, http.StatusNotFound, "deal not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get deal", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get deal")
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (h *Handler) ViewDeal(w http.ResponseWriter, r *http.Request) {
	err := h.store.IncrementViews(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "deal not found")
	case err != nil:
		slog.Error("Failed to count view", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count view")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) ClaimDeal(w http.ResponseWriter, r *http.Request) {
	if h.inMaintenance(w, r) {
		return
	}
	err := h.store.ClaimDeal(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "deal not found")
	case errors.Is(err, models.ErrDealNotClaimable):
		writeError(w, http.StatusConflict, "deal is no longer available")
	case err != nil:
		slog.Error("Failed to claim deal", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to claim deal")
	default:
		slog.Info("Deal claimed", "id", r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) inMaintenance(w http.ResponseWriter, r *http.Request) bool {
	st, err := h.prefs.Settings(r.Context())
	if err != nil {
		slog.Warn("Failed to load settings, assuming defaults", "error", err)
		return false
	}
	if st.MaintenanceMode {
		writeError(w, http.StatusServiceUnavailable, "down for maintenance")
		return true
	}
	return false
}

// SubmitDeal accepts a merchant submission. Server-owned fields (id, counters,
// moderation state, timestamps) are overwritten. With the owner query
// parameter set, the owner's draft is removed on success.
func (h *Handler) SubmitDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.prefs.Settings(ctx)
	if err != nil {
		slog.Warn("Failed to load settings, assuming defaults", "error", err)
		st = models.DefaultSettings()
	}
	if st.MaintenanceMode {
		writeError(w, http.StatusServiceUnavailable, "down for maintenance")
		return
	}
	if !st.AllowSubmissions {
		writeError(w, http.StatusForbidden, "submissions are closed")
		return
	}

	var deal models.Deal
	if err := decodeJSON(r, &deal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid deal")
		return
	}

	now := h.now()
	deal.ID = uuid.NewString()
	deal.Views = 0
	deal.Claims = 0
	deal.Deleted = false
	deal.Distance = nil
	deal.SourceURL = ""
	deal.CreatedAt = now
	deal.LastUpdated = now
	if deal.ValidFrom.IsZero() {
		deal.ValidFrom = now
	}
	if deal.Category == "" {
		deal.Category = models.CategoryOther
	}
	if st.RequireApproval {
		deal.Status = models.StatusPending
		deal.IsActive = false
	} else {
		deal.Status = models.StatusApproved
		deal.IsActive = true
	}

	if err := h.validator.ValidateStruct(deal); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validator.FieldErrors(err),
		})
		return
	}

	if err := h.store.TryCreateDeal(ctx, deal); err != nil {
		slog.Error("Failed to store submitted deal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit deal")
		return
	}
	slog.Info("Deal submitted", "id", deal.ID, "business", deal.BusinessName, "status", deal.Status)

	if deal.Status == models.StatusPending {
		if _, err := h.notifier.NotifyPendingDeal(ctx, deal, notifier.OriginSubmission); err != nil {
			slog.Error("Error sending moderation notification", "id", deal.ID, "error", err)
		}
	}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		if err := h.prefs.DeleteDraft(ctx, owner); err != nil {
			slog.Warn("Failed to delete submitted draft", "owner", owner, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, deal)
}
