// Package table implements the interaction state behind the admin data grids:
// client-side sort, pagination, row and bulk selection, column visibility and
// CSV export over an arbitrary row type.
//
// A Table never mutates rows. Bulk and row actions are dispatched to the
// caller's callbacks, which perform the mutation and hand fresh rows back via SetRows.
package table

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrUnsortable      = errors.New("column is not sortable")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrNoSelection     = errors.New("no rows selected")
	ErrUnknownAction   = errors.New("unknown action")
	ErrRowNotFound     = errors.New("row not found")
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{10, 25, 50, 100}

const (
	DefaultRowKey   = "_id"
	DefaultPageSize = 25
)

// Row is any record whose fields can be looked up by name.
type Row interface {
	Field(key string) any
}

// Column describes how one field is labelled, sorted and rendered.
type Column[R Row] struct {
	Key        string
	Label      string
	Unsortable bool
	// Render overrides the default cell formatting.
	Render func(value any, row R) string
}

type Action struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Options[R Row] struct {
	RowKey       string
	PageSize     int
	BulkActions  []Action
	OnBulkAction func(action string, keys []string) error
	OnRowAction  func(action string, row R) error
}

type Table[R Row] struct {
	mu      sync.Mutex
	rows    []R
	sorted  []R
	columns []Column[R]
	opts    Options[R]

	sortKey string
	sortDir Direction

	page     int
	pageSize int

	selected    []string
	selectedSet map[string]struct{}
	hidden      map[string]bool
}

func New[R Row](rows []R, columns []Column[R], opts Options[R]) (*Table[R], error) {
	if opts.RowKey == "" {
		opts.RowKey = DefaultRowKey
	}
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if !slices.Contains(PageSizes, opts.PageSize) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, opts.PageSize)
	}

	t := &Table[R]{
		columns:     columns,
		opts:        opts,
		page:        1,
		pageSize:    opts.PageSize,
		selectedSet: make(map[string]struct{}),
		hidden:      make(map[string]bool),
	}
	t.setRowsLocked(rows)
	return t, nil
}

func (t *Table[R]) column(key string) (Column[R], bool) {
	for _, c := range t.columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column[R]{}, false
}

// ToggleSort sorts by key ascending, or flips the direction if key is already the sort column.
func (t *Table[R]) ToggleSort(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	col, ok := t.column(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	if col.Unsortable {
		return fmt.Errorf("%w: %s", ErrUnsortable, key)
	}

	if t.sortKey == key && t.sortDir == Asc {
		t.sortDir = Desc
	} else {
		t.sortKey = key
		t.sortDir = Asc
	}
	t.resort()
	return nil
}

// resort always starts from the original row order so equal rows keep
// their relative order regardless of how often the direction is flipped.
func (t *Table[R]) resort() {
	sorted := slices.Clone(t.rows)
	if t.sortKey != "" {
		key, desc := t.sortKey, t.sortDir == Desc
		sort.SliceStable(sorted, func(i, j int) bool {
			c := CompareValues(sorted[i].Field(key), sorted[j].Field(key))
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	t.sorted = sorted
}

func (t *Table[R]) totalPages() int {
	n := (len(t.sorted) + t.pageSize - 1) / t.pageSize
	return max(n, 1)
}

// SetPage moves to page n, clamped to [1, TotalPages]. It returns the resulting page.
func (t *Table[R]) SetPage(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = min(max(n, 1), t.totalPages())
	return t.page
}

// SetPageSize changes the page size and returns to page 1.
func (t *Table[R]) SetPageSize(n int) error {
	if !slices.Contains(PageSizes, n) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageSize = n
	t.page = 1
	return nil
}

func (t *Table[R]) TotalPages() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalPages()
}

func (t *Table[R]) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

func (t *Table[R]) pageRows() []R {
	start := (t.page - 1) * t.pageSize
	if start >= len(t.sorted) {
		return nil
	}
	end := min(start+t.pageSize, len(t.sorted))
	return t.sorted[start:end]
}

// PageRows returns the rows on the current page in sorted order.
func (t *Table[R]) PageRows() []R {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.pageRows())
}

// SortedRows returns every row in the current sort order.
func (t *Table[R]) SortedRows() []R {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sorted)
}

func (t *Table[R]) keyOf(row R) string {
	v := row.Field(t.opts.RowKey)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (t *Table[R]) findRow(key string) (R, bool) {
	for _, r := range t.rows {
		if t.keyOf(r) == key {
			return r, true
		}
	}
	var zero R
	return zero, false
}

// SetRows replaces the rows, typically after the caller re-fetched them.
// The sort is reapplied, the page is clamped and vanished keys leave the selection.
func (t *Table[R]) SetRows(rows []R) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setRowsLocked(rows)
}

func (t *Table[R]) setRowsLocked(rows []R) {
	t.rows = slices.Clone(rows)
	t.resort()
	t.page = min(max(t.page, 1), t.totalPages())

	present := make(map[string]struct{}, len(t.rows))
	for _, r := range t.rows {
		present[t.keyOf(r)] = struct{}{}
	}
	kept := t.selected[:0]
	for _, k := range t.selected {
		if _, ok := present[k]; ok {
			kept = append(kept, k)
		} else {
			delete(t.selectedSet, k)
		}
	}
	t.selected = kept
}
