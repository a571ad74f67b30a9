// Package web serves the public deals API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/notifier"
	"github.com/pauljones0/wanderdeals/internal/ranking"
)

type DealStore interface {
	ListVisibleDeals(ctx context.Context) ([]models.Deal, error)
	GetDealByID(ctx context.Context, id string) (*models.Deal, error)
	IncrementViews(ctx context.Context, id string) error
	ClaimDeal(ctx context.Context, id string) error
	TryCreateDeal(ctx context.Context, deal models.Deal) error
}

type DealNotifier interface {
	NotifyPendingDeal(ctx context.Context, deal models.Deal, origin notifier.Origin) (string, error)
}

// Prefs is the per-owner key-value state and the system settings.
type Prefs interface {
	Draft(ctx context.Context, owner string) (*models.Deal, error)
	SaveDraft(ctx context.Context, owner string, d *models.Deal) error
	DeleteDraft(ctx context.Context, owner string) error
	Language(ctx context.Context, owner string) (string, error)
	SetLanguage(ctx context.Context, owner, lang string) error
	Settings(ctx context.Context) (models.SystemSettings, error)
}

type Validator interface {
	ValidateStruct(s any) error
}

type Handler struct {
	store     DealStore
	notifier  DealNotifier
	prefs     Prefs
	validator Validator
	featured  ranking.Featured
	limiter   *RateLimiter
	now       func() time.Time
}

func New(store DealStore, n DealNotifier, p Prefs, v Validator) *Handler {
	return &Handler{
		store:     store,
		notifier:  n,
		prefs:     p,
		validator: v,
		limiter:   NewRateLimiter(rate.Every(time.Second), 10),
		now:       time.Now,
	}
}

// Register adds the public routes to mux. Writes are rate limited per client IP.
func (h *Handler) Register(mux *http.ServeMux) {
	limit := h.limiter.Middleware

	mux.HandleFunc("GET /api/deals", h.ListDeals)
	mux.HandleFunc("GET /api/deals/featured", h.FeaturedDeal)
	mux.HandleFunc("GET /api/deals/{id}", h.GetDeal)
	mux.HandleFunc("POST /api/deals/{id}/view", limit(h.ViewDeal))
	mux.HandleFunc("POST /api/deals/{id}/claim", limit(h.ClaimDeal))
	mux.HandleFunc("POST /api/deals", limit(h.SubmitDeal))

	mux.HandleFunc("GET /api/drafts/{owner}", h.GetDraft)
	mux.HandleFunc("PUT /api/drafts/{owner}", limit(h.PutDraft))
	mux.HandleFunc("DELETE /api/drafts/{owner}", limit(h.DeleteDraft))

	mux.HandleFunc("GET /api/preferences/{owner}/language", h.GetLanguage)
	mux.HandleFunc("PUT /api/preferences/{owner}/language", limit(h.PutLanguage))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}
