package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/storage"
	"github.com/pauljones0/wanderdeals/internal/table"
)

type TabID string

const (
	TabDeals      TabID = "deals"
	TabBusinesses TabID = "businesses"
	TabPosts      TabID = "posts"
	TabUsers      TabID = "users"
)

// Tabs lists the back office tabs in display order.
var Tabs = []TabID{TabDeals, TabBusinesses, TabPosts, TabUsers}

var ErrUnknownTab = errors.New("unknown tab")

// LoadState is the loading phase of a tab: Idle, Loading, Loaded or Failed.
type LoadState interface {
	Phase() string
}

type Idle struct{}

type Loading struct{}

type Loaded[R table.Row] struct {
	Rows []R
}

type Failed struct {
	Err error
}

func (Idle) Phase() string      { return "idle" }
func (Loading) Phase() string   { return "loading" }
func (Loaded[R]) Phase() string { return "loaded" }
func (Failed) Phase() string    { return "failed" }

// grid is the type-erased surface of a tab used by the HTTP handlers.
type grid interface {
	View() table.View
	ToggleSort(key string) error
	SetPage(n int) int
	SetPageSize(n int) error
	ToggleSelect(key string) error
	ToggleSelectAll()
	ToggleColumn(key string) error
	WriteCSV(w io.Writer) error
	State() LoadState
	Reload(ctx context.Context) error
	Bulk(ctx context.Context, action string) error
	Row(ctx context.Context, action, key string) error
}

// tab binds a table to the loader that fills it and the moderation
// dispatcher its actions call.
type tab[R table.Row] struct {
	*table.Table[R]

	id       TabID
	load     func(ctx context.Context) ([]R, error)
	dispatch func(ctx context.Context, action string, keys []string) error

	mu        sync.Mutex // serializes reloads and actions
	stateMu   sync.Mutex
	state     LoadState
	actionCtx context.Context
}

func newTab[R table.Row](id TabID, columns []table.Column[R], actions []table.Action,
	load func(ctx context.Context) ([]R, error),
	dispatch func(ctx context.Context, action string, keys []string) error,
) (*tab[R], error) {
	t := &tab[R]{id: id, load: load, dispatch: dispatch, state: Idle{}}
	tbl, err := table.New(nil, columns, table.Options[R]{
		BulkActions: actions,
		OnBulkAction: func(action string, keys []string) error {
			return t.dispatch(t.actionCtx, action, keys)
		},
		OnRowAction: func(action string, row R) error {
			key, _ := row.Field(table.DefaultRowKey).(string)
			return t.dispatch(t.actionCtx, action, []string{key})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", id, err)
	}
	t.Table = tbl
	return t, nil
}

func (t *tab[R]) State() LoadState {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

func (t *tab[R]) setState(s LoadState) {
	t.stateMu.Lock()
	t.state = s
	t.stateMu.Unlock()
}

// Reload re-fetches the rows. On failure the previous rows stay in the table.
func (t *tab[R]) Reload(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reloadLocked(ctx)
}

func (t *tab[R]) reloadLocked(ctx context.Context) error {
	t.setState(Loading{})
	rows, err := t.load(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load %s: %w", t.id, err)
		t.setState(Failed{Err: err})
		return err
	}
	t.SetRows(rows)
	t.setState(Loaded[R]{Rows: rows})
	return nil
}

// Bulk applies action to the selection and reloads the tab, also after a
// failed action since part of the writes may have landed.
func (t *tab[R]) Bulk(ctx context.Context, action string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.actionCtx = ctx
	err := t.BulkAction(action)
	t.actionCtx = nil
	if errors.Is(err, table.ErrNoSelection) || errors.Is(err, table.ErrUnknownAction) {
		return err
	}
	if reloadErr := t.reloadLocked(ctx); reloadErr != nil && err == nil {
		return reloadErr
	}
	return err
}

func (t *tab[R]) Row(ctx context.Context, action, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.actionCtx = ctx
	err := t.RowAction(action, key)
	t.actionCtx = nil
	if errors.Is(err, table.ErrRowNotFound) {
		return err
	}
	if reloadErr := t.reloadLocked(ctx); reloadErr != nil && err == nil {
		return reloadErr
	}
	return err
}

// --- Tab definitions ---

var dealActions = []table.Action{
	{Label: "Approve", Value: "approve"},
	{Label: "Reject", Value: "reject"},
	{Label: "Activate", Value: "activate"},
	{Label: "Deactivate", Value: "deactivate"},
	{Label: "Delete", Value: "delete"},
}

var businessActions = []table.Action{
	{Label: "Approve", Value: "approve"},
	{Label: "Reject", Value: "reject"},
}

var postActions = []table.Action{
	{Label: "Hide", Value: "hide"},
	{Label: "Unhide", Value: "unhide"},
	{Label: "Delete", Value: "delete"},
}

var userActions = []table.Action{
	{Label: "Make admin", Value: "make-admin"},
	{Label: "Make merchant", Value: "make-merchant"},
	{Label: "Make user", Value: "make-user"},
}

func yesNo(v any, _ models.MapRow) string {
	if b, ok := v.(bool); ok && b {
		return "Yes"
	}
	return "No"
}

func shortDate(v any) string {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

var dealColumns = []table.Column[models.Deal]{
	{Key: "title", Label: "Title"},
	{Key: "businessName", Label: "Business"},
	{Key: "category", Label: "Category"},
	{Key: "discountLabel", Label: "Discount"},
	{Key: "status", Label: "Status"},
	{Key: "isActive", Label: "Active", Render: func(v any, _ models.Deal) string {
		return yesNo(v, nil)
	}},
	{Key: "views", Label: "Views"},
	{Key: "claims", Label: "Claims"},
	{Key: "validUntil", Label: "Valid until", Render: func(v any, _ models.Deal) string { return shortDate(v) }},
	{Key: "createdAt", Label: "Created", Render: func(v any, _ models.Deal) string { return shortDate(v) }},
	{Key: "images", Label: "Images", Unsortable: true, Render: func(_ any, d models.Deal) string {
		return strconv.Itoa(len(d.Images))
	}},
}

func mapDate(v any, _ models.MapRow) string { return shortDate(v) }

var businessColumns = []table.Column[models.MapRow]{
	{Key: "name", Label: "Name"},
	{Key: "type", Label: "Type"},
	{Key: "email", Label: "Email"},
	{Key: "city", Label: "City"},
	{Key: "status", Label: "Status"},
	{Key: "createdAt", Label: "Created", Render: mapDate},
}

var postColumns = []table.Column[models.MapRow]{
	{Key: "title", Label: "Title"},
	{Key: "author", Label: "Author"},
	{Key: "hidden", Label: "Hidden", Render: yesNo},
	{Key: "createdAt", Label: "Created", Render: mapDate},
}

var userColumns = []table.Column[models.MapRow]{
	{Key: "username", Label: "Username"},
	{Key: "email", Label: "Email"},
	{Key: "role", Label: "Role"},
	{Key: "createdAt", Label: "Created", Render: mapDate},
}

// newTabs builds the four back office tabs over store.
func newTabs(store Store, now func() time.Time) (map[TabID]grid, error) {
	deals, err := newTab(TabDeals, dealColumns, dealActions, store.ListDeals,
		func(ctx context.Context, action string, ids []string) error {
			switch action {
			case "approve":
				return store.SetDealStatus(ctx, ids, models.StatusApproved)
			case "reject":
				return store.SetDealStatus(ctx, ids, models.StatusRejected)
			case "activate":
				return store.SetDealsActive(ctx, ids, true)
			case "deactivate":
				return store.SetDealsActive(ctx, ids, false)
			case "delete":
				return store.DeleteDeals(ctx, ids)
			}
			return fmt.Errorf("%w: %s", table.ErrUnknownAction, action)
		})
	if err != nil {
		return nil, err
	}

	businesses, err := newTab(TabBusinesses, businessColumns, businessActions, listCollection(store, storage.BusinessesCollection),
		func(ctx context.Context, action string, ids []string) error {
			var st string
			switch action {
			case "approve":
				st = models.StatusApproved
			case "reject":
				st = models.StatusRejected
			default:
				return fmt.Errorf("%w: %s", table.ErrUnknownAction, action)
			}
			return store.UpdateDocuments(ctx, storage.BusinessesCollection, ids, []firestore.Update{
				{Path: "status", Value: st},
				{Path: "updatedAt", Value: now()},
			})
		})
	if err != nil {
		return nil, err
	}

	posts, err := newTab(TabPosts, postColumns, postActions, listCollection(store, storage.PostsCollection),
		func(ctx context.Context, action string, ids []string) error {
			switch action {
			case "hide", "unhide":
				return store.UpdateDocuments(ctx, storage.PostsCollection, ids, []firestore.Update{
					{Path: "hidden", Value: action == "hide"},
					{Path: "updatedAt", Value: now()},
				})
			case "delete":
				return store.DeleteDocuments(ctx, storage.PostsCollection, ids)
			}
			return fmt.Errorf("%w: %s", table.ErrUnknownAction, action)
		})
	if err != nil {
		return nil, err
	}

	users, err := newTab(TabUsers, userColumns, userActions, listCollection(store, storage.UsersCollection),
		func(ctx context.Context, action string, ids []string) error {
			var role string
			switch action {
			case "make-admin":
				role = models.RoleAdmin
			case "make-merchant":
				role = models.RoleMerchant
			case "make-user":
				role = models.RoleUser
			default:
				return fmt.Errorf("%w: %s", table.ErrUnknownAction, action)
			}
			return store.UpdateDocuments(ctx, storage.UsersCollection, ids, []firestore.Update{
				{Path: "role", Value: role},
				{Path: "updatedAt", Value: now()},
			})
		})
	if err != nil {
		return nil, err
	}

	return map[TabID]grid{
		TabDeals:      deals,
		TabBusinesses: businesses,
		TabPosts:      posts,
		TabUsers:      users,
	}, nil
}

func listCollection(store Store, collection string) func(ctx context.Context) ([]models.MapRow, error) {
	return func(ctx context.Context) ([]models.MapRow, error) {
		return store.ListDocuments(ctx, collection)
	}
}
