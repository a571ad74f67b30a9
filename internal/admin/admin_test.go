package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/prefs"
	"github.com/pauljones0/wanderdeals/internal/session"
	"github.com/pauljones0/wanderdeals/internal/storage"
	"github.com/pauljones0/wanderdeals/internal/table"
	"github.com/pauljones0/wanderdeals/internal/validator"
)

// --- Fake store ---

type fakeStore struct {
	mu      sync.Mutex
	deals   []models.Deal
	docs    map[string][]models.MapRow
	listErr map[string]error
	writes  []string
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var deals []models.Deal
	for i, title := range []string{"Cabin", "Boat tour", "Spa day"} {
		deals = append(deals, models.Deal{
			ID:           string(rune('a' + i)),
			Title:        title,
			BusinessName: "Biz",
			Discount:     "10% off",
			Status:       models.StatusPending,
			CreatedAt:    created.AddDate(0, 0, i),
		})
	}

	return &fakeStore{
		deals: deals,
		docs: map[string][]models.MapRow{
			storage.UsersCollection: {
				{"_id": "u1", "username": "root", "role": models.RoleAdmin, "passwordHash": string(hash)},
				{"_id": "u2", "username": "shop", "role": models.RoleMerchant, "passwordHash": string(hash)},
			},
			storage.PostsCollection: {
				{"_id": "p1", "title": "Hello", "hidden": false},
			},
			storage.BusinessesCollection: {
				{"_id": "b1", "name": "Pine Lodge", "status": models.StatusPending},
			},
		},
		listErr: map[string]error{},
	}
}

func (f *fakeStore) ListDeals(_ context.Context) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr["deals"]; err != nil {
		return nil, err
	}
	var out []models.Deal
	for _, d := range f.deals {
		if !d.Deleted {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, collection string) ([]models.MapRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[collection]; err != nil {
		return nil, err
	}
	out := make([]models.MapRow, 0, len(f.docs[collection]))
	for _, row := range f.docs[collection] {
		cp := models.MapRow{}
		for k, v := range row {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeStore) FindUserByUsername(ctx context.Context, username string) (models.MapRow, error) {
	users, _ := f.ListDocuments(ctx, storage.UsersCollection)
	for _, u := range users {
		if u.String("username") == username {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) updateDeals(ids []string, fn func(d *models.Deal)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.deals {
		if slices.Contains(ids, f.deals[i].ID) {
			fn(&f.deals[i])
		}
	}
}

func (f *fakeStore) SetDealStatus(_ context.Context, ids []string, status string) error {
	f.updateDeals(ids, func(d *models.Deal) {
		d.Status = status
		d.IsActive = status == models.StatusApproved
	})
	f.writes = append(f.writes, "status:"+status)
	return nil
}

func (f *fakeStore) SetDealsActive(_ context.Context, ids []string, active bool) error {
	f.updateDeals(ids, func(d *models.Deal) { d.IsActive = active })
	return nil
}

func (f *fakeStore) DeleteDeals(_ context.Context, ids []string) error {
	f.updateDeals(ids, func(d *models.Deal) { d.Deleted = true })
	return nil
}

func (f *fakeStore) UpdateDocuments(_ context.Context, collection string, ids []string, updates []firestore.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.docs[collection] {
		if !slices.Contains(ids, row.String("_id")) {
			continue
		}
		for _, u := range updates {
			row[u.Path] = u.Value
		}
	}
	return nil
}

func (f *fakeStore) DeleteDocuments(_ context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[collection] = slices.DeleteFunc(f.docs[collection], func(r models.MapRow) bool {
		return slices.Contains(ids, r.String("_id"))
	})
	return nil
}

// --- Helpers ---

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestHandler(t *testing.T, store Store, cfg session.Config) *Handler {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg = session.Config{Timeout: time.Minute, Warning: 10 * time.Second, PollInterval: 10 * time.Millisecond}
	}
	h := New(store, prefs.NewService(prefs.NewMemoryStore()), validator.New(), Options{
		SessionKey: testKey,
		CSRFKey:    testKey,
		Session:    cfg,
	})
	t.Cleanup(h.Shutdown)
	return h
}

type client struct {
	t       *testing.T
	mux     http.Handler
	cookies []*http.Cookie
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.mux.ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return rec
}

func login(t *testing.T, h *Handler) *client {
	t.Helper()
	c := &client{t: t, mux: h.routes()}
	rec := c.do(http.MethodPost, "/admin/login", `{"username":"root","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, c.cookies)
	return c
}

func decodeTable(t *testing.T, rec *httptest.ResponseRecorder) tablePayload {
	t.Helper()
	var p tablePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p), rec.Body.String())
	return p
}

func sessionID(t *testing.T, h *Handler) string {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.workspaces, 1)
	for sid := range h.workspaces {
		return sid
	}
	return ""
}

// --- Tests ---

func TestLogin(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"root","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"ghost","password":"s3cret"}`, http.StatusUnauthorized},
		{"not an admin", `{"username":"shop","password":"s3cret"}`, http.StatusUnauthorized},
		{"malformed", `{"username":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, newFakeStore(t), session.Config{})
			c := &client{t: t, mux: h.routes()}
			rec := c.do(http.MethodPost, "/admin/login", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, h.workspaces)
		})
	}

	t.Run("success preloads every tab", func(t *testing.T) {
		h := newTestHandler(t, newFakeStore(t), session.Config{})
		c := login(t, h)

		rec := c.do(http.MethodGet, "/admin/tabs", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var tabs []tabSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tabs))
		require.Len(t, tabs, 4)
		for _, tab := range tabs {
			assert.Equal(t, "loaded", tab.State, tab.ID)
		}
	})
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	c := &client{t: t, mux: h.routes()}
	for _, path := range []string{"/admin/tables/deals", "/admin/session", "/admin/settings"} {
		rec := c.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestTableInteractions(t *testing.T) {
	store := newFakeStore(t)
	h := newTestHandler(t, store, session.Config{})
	c := login(t, h)

	p := decodeTable(t, c.do(http.MethodGet, "/admin/tables/deals", ""))
	assert.Equal(t, 3, p.Table.TotalRows)
	assert.Equal(t, table.DefaultPageSize, p.Table.PageSize)

	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/sort", `{"key":"title"}`))
	assert.Equal(t, []string{"b", "a", "c"}, rowKeys(p))
	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/sort", `{"key":"title"}`))
	assert.Equal(t, table.Desc, p.Table.SortDir)
	assert.Equal(t, []string{"c", "a", "b"}, rowKeys(p))

	rec := c.do(http.MethodPost, "/admin/tables/deals/sort", `{"key":"images"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(http.MethodPost, "/admin/tables/deals/page-size", `{"pageSize":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(http.MethodPost, "/admin/tables/deals/select", `{"key":"zzz"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = c.do(http.MethodPost, "/admin/tables/deals/bulk", `{"action":"approve"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bulk without selection")

	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/page-size", `{"pageSize":10}`))
	assert.Equal(t, 10, p.Table.PageSize)

	decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/select", `{"key":"a"}`))
	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/select", `{"key":"c"}`))
	assert.Equal(t, []string{"a", "c"}, p.Table.Selected)
	assert.NotEmpty(t, p.Table.BulkActions)

	rec = c.do(http.MethodPost, "/admin/tables/deals/bulk", `{"action":"launch"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/bulk", `{"action":"approve"}`))
	assert.Empty(t, p.Table.Selected)
	assert.Equal(t, "loaded", p.State)
	for _, d := range store.deals {
		if d.ID == "b" {
			assert.Equal(t, models.StatusPending, d.Status)
		} else {
			assert.Equal(t, models.StatusApproved, d.Status, d.ID)
			assert.True(t, d.IsActive)
		}
	}

	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/select-all", ""))
	assert.Len(t, p.Table.Selected, 3)
	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/select-all", ""))
	assert.Empty(t, p.Table.Selected)

	decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/select", `{"key":"b"}`))
	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/deals/bulk", `{"action":"delete"}`))
	assert.Equal(t, 2, p.Table.TotalRows, "deleted deal disappears after reload")
}

func rowKeys(p tablePayload) []string {
	var keys []string
	for _, r := range p.Table.Rows {
		keys = append(keys, r.Key)
	}
	return keys
}

func TestRowActionsOnDocuments(t *testing.T) {
	store := newFakeStore(t)
	h := newTestHandler(t, store, session.Config{})
	c := login(t, h)

	rec := c.do(http.MethodPost, "/admin/tables/users/row-action", `{"action":"make-admin","key":"u2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.RoleAdmin, store.docs[storage.UsersCollection][1]["role"])

	rec = c.do(http.MethodPost, "/admin/tables/users/row-action", `{"action":"make-admin","key":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/admin/tables/posts/row-action", `{"action":"hide","key":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, store.docs[storage.PostsCollection][0]["hidden"])

	rec = c.do(http.MethodPost, "/admin/tables/businesses/row-action", `{"action":"approve","key":"b1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusApproved, store.docs[storage.BusinessesCollection][0]["status"])

	decodeTable(t, c.do(http.MethodPost, "/admin/tables/posts/select", `{"key":"p1"}`))
	p := decodeTable(t, c.do(http.MethodPost, "/admin/tables/posts/bulk", `{"action":"delete"}`))
	assert.Equal(t, 0, p.Table.TotalRows)
	assert.Equal(t, 1, p.Table.TotalPages)
}

func TestTableExport(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	c := login(t, h)

	decodeTable(t, c.do(http.MethodPost, "/admin/tables/posts/columns", `{"key":"createdAt"}`))
	rec := c.do(http.MethodGet, "/admin/tables/posts/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"export-")
	assert.Equal(t, "Title,Author,Hidden\nHello,,false", rec.Body.String())
}

func TestFailedTabLoad(t *testing.T) {
	store := newFakeStore(t)
	store.listErr[storage.PostsCollection] = errors.New("firestore unavailable")
	h := newTestHandler(t, store, session.Config{})
	c := login(t, h)

	p := decodeTable(t, c.do(http.MethodGet, "/admin/tables/posts", ""))
	assert.Equal(t, "failed", p.State)
	assert.Contains(t, p.Error, "firestore unavailable")

	p = decodeTable(t, c.do(http.MethodGet, "/admin/tables/deals", ""))
	assert.Equal(t, "loaded", p.State)

	rec := c.do(http.MethodPost, "/admin/tables/posts/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	store.mu.Lock()
	delete(store.listErr, storage.PostsCollection)
	store.mu.Unlock()
	p = decodeTable(t, c.do(http.MethodPost, "/admin/tables/posts/reload", ""))
	assert.Equal(t, "loaded", p.State)
	assert.Equal(t, 1, p.Table.TotalRows)
}

func TestUnknownTabAndOp(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	c := login(t, h)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/admin/tables/orders", "").Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/admin/tables/deals/explode", `{}`).Code)
}

func TestSettings(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	c := login(t, h)

	var st models.SystemSettings
	rec := c.do(http.MethodGet, "/admin/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, models.DefaultSettings(), st)

	rec = c.do(http.MethodPut, "/admin/settings", `{"defaultLanguage":"it","maxDealsPerMerchant":5}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var verr struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	assert.Contains(t, verr.Fields, "defaultLanguage")

	rec = c.do(http.MethodPut, "/admin/settings", `{"maintenanceMode":true,"defaultLanguage":"fr","maxDealsPerMerchant":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/admin/settings", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.MaintenanceMode)
	assert.Equal(t, "fr", st.DefaultLanguage)
}

func TestSessionEndpoints(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	c := login(t, h)

	var st sessionStatus
	rec := c.do(http.MethodGet, "/admin/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Greater(t, st.TimeRemaining, int64(50_000))
	assert.False(t, st.ShowWarning)
	assert.Equal(t, "active", st.State)
	assert.Regexp(t, `^\d+:\d\d$`, st.Formatted)

	rec = c.do(http.MethodPost, "/admin/session/extend", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/admin/session/activity", `{"event":"mousemove"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/admin/session/activity", `{"event":"keydown"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionExpiryLogsOut(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{
		Timeout:      60 * time.Millisecond,
		Warning:      30 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	c := login(t, h)
	sid := sessionID(t, h)

	require.Eventually(t, func() bool { return h.timers.Expired(sid) }, 2*time.Second, 5*time.Millisecond)
	_, ok := h.workspace(sid)
	assert.False(t, ok, "expiry drops the workspace")

	rec := c.do(http.MethodGet, "/admin/tables/deals", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "session expired")
	assert.False(t, h.timers.Expired(sid), "logout forgets the expired timer")

	rec = c.do(http.MethodGet, "/admin/tables/deals", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "login required")
}

// The timer can revoke the workspace after auth has let the request through.
func TestHandlersAfterRevokeReturnUnauthorized(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	login(t, h)
	sid := sessionID(t, h)
	h.revoke(sid)

	handlers := map[string]func(http.ResponseWriter, *http.Request, string){
		"tabs":   h.ListTabs,
		"view":   h.TableView,
		"export": h.TableExport,
	}
	for name, handle := range handlers {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/tables/deals", nil)
			req.SetPathValue("tab", "deals")
			rec := httptest.NewRecorder()
			require.NotPanics(t, func() { handle(rec, req, sid) })
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "session expired")
		})
	}
}

func TestLogout(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	c := login(t, h)

	rec := c.do(http.MethodPost, "/admin/logout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, h.workspaces)

	rec = c.do(http.MethodGet, "/admin/tabs", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutesRejectMissingCSRFToken(t *testing.T) {
	h := newTestHandler(t, newFakeStore(t), session.Config{})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/login", "application/json", strings.NewReader(`{"username":"root","password":"s3cret"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
