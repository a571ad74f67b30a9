// Package admin serves the back office: login, the moderation tables for
// deals, businesses, posts and users, system settings and the idle session timer.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/session"
)

// Store is the persistence the back office reads and moderates.
type Store interface {
	ListDeals(ctx context.Context) ([]models.Deal, error)
	ListDocuments(ctx context.Context, collection string) ([]models.MapRow, error)
	FindUserByUsername(ctx context.Context, username string) (models.MapRow, error)
	SetDealStatus(ctx context.Context, ids []string, status string) error
	SetDealsActive(ctx context.Context, ids []string, active bool) error
	DeleteDeals(ctx context.Context, ids []string) error
	UpdateDocuments(ctx context.Context, collection string, ids []string, updates []firestore.Update) error
	DeleteDocuments(ctx context.Context, collection string, ids []string) error
}

// SettingsStore persists the system settings.
type SettingsStore interface {
	Settings(ctx context.Context) (models.SystemSettings, error)
	SaveSettings(ctx context.Context, st models.SystemSettings) error
}

type Validator interface {
	ValidateStruct(s any) error
}

type Options struct {
	SessionKey   []byte
	CSRFKey      []byte
	CookieSecure bool
	Session      session.Config
}

type Handler struct {
	store     Store
	settings  SettingsStore
	validator Validator
	cookies   *sessions.CookieStore
	timers    *session.Manager
	opts      Options
	now       func() time.Time

	mu         sync.Mutex
	workspaces map[string]*workspace
}

func New(store Store, settings SettingsStore, v Validator, opts Options) *Handler {
	cookies := sessions.NewCookieStore(opts.SessionKey)
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = opts.CookieSecure
	cookies.Options.SameSite = http.SameSiteLaxMode
	cookies.Options.Path = "/"

	h := &Handler{
		store:      store,
		settings:   settings,
		validator:  v,
		cookies:    cookies,
		opts:       opts,
		now:        time.Now,
		workspaces: make(map[string]*workspace),
	}
	h.timers = session.NewManager(opts.Session, h.revoke)
	return h
}

// Routes returns the back office handler with CSRF protection applied.
func (h *Handler) Routes() http.Handler {
	protect := csrf.Protect(
		h.opts.CSRFKey,
		csrf.Secure(h.opts.CookieSecure),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("CSRF check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			writeError(w, http.StatusForbidden, "invalid CSRF token")
		})),
	)
	protected := protect(h.routes())
	if h.opts.CookieSecure {
		return protected
	}
	// Local development runs without TLS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func (h *Handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/login", h.LoginGet)
	mux.HandleFunc("POST /admin/login", h.LoginPost)
	mux.HandleFunc("POST /admin/logout", h.Logout)

	mux.HandleFunc("GET /admin/session", h.auth(false, h.SessionStatus))
	mux.HandleFunc("POST /admin/session/extend", h.auth(true, h.SessionExtend))
	mux.HandleFunc("POST /admin/session/activity", h.auth(false, h.SessionActivity))

	mux.HandleFunc("GET /admin/tabs", h.auth(true, h.ListTabs))
	mux.HandleFunc("GET /admin/tables/{tab}", h.auth(true, h.TableView))
	mux.HandleFunc("GET /admin/tables/{tab}/export.csv", h.auth(true, h.TableExport))
	mux.HandleFunc("POST /admin/tables/{tab}/{op}", h.auth(true, h.TableOp))

	mux.HandleFunc("GET /admin/settings", h.auth(true, h.GetSettings))
	mux.HandleFunc("PUT /admin/settings", h.auth(true, h.PutSettings))
	return mux
}

// Shutdown stops every session timer.
func (h *Handler) Shutdown() {
	h.timers.Shutdown()
}

// revoke drops the state of an expired session. The cookie is cleared on the
// session's next request.
func (h *Handler) revoke(sid string) {
	h.mu.Lock()
	delete(h.workspaces, sid)
	h.mu.Unlock()
}

func (h *Handler) workspace(sid string) (*workspace, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws, ok := h.workspaces[sid]
	return ws, ok
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
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
