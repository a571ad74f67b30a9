package table

import (
	"fmt"
	"slices"
)

// ToggleSelect adds key to the selection or removes it if already selected.
func (t *Table[R]) ToggleSelect(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.findRow(key); !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	if _, ok := t.selectedSet[key]; ok {
		t.unselect(key)
		return nil
	}
	t.selectedSet[key] = struct{}{}
	t.selected = append(t.selected, key)
	return nil
}

func (t *Table[R]) unselect(key string) {
	delete(t.selectedSet, key)
	t.selected = slices.DeleteFunc(t.selected, func(k string) bool { return k == key })
}

// ToggleSelectAll selects exactly the rows of the current page, or clears the
// whole selection when every row of the current page is already selected.
// Calling it twice from an empty selection therefore returns to empty.
func (t *Table[R]) ToggleSelectAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allPageSelected() {
		t.clearSelection()
		return
	}
	t.clearSelection()
	for _, r := range t.pageRows() {
		k := t.keyOf(r)
		if _, dup := t.selectedSet[k]; dup {
			continue
		}
		t.selectedSet[k] = struct{}{}
		t.selected = append(t.selected, k)
	}
}

func (t *Table[R]) allPageSelected() bool {
	rows := t.pageRows()
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if _, ok := t.selectedSet[t.keyOf(r)]; !ok {
			return false
		}
	}
	return true
}

func (t *Table[R]) clearSelection() {
	t.selected = nil
	clear(t.selectedSet)
}

// ClearSelection empties the selection.
func (t *Table[R]) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearSelection()
}

// Selected returns the selected keys in selection order. Selection survives page changes.
func (t *Table[R]) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.selected)
}

func (t *Table[R]) knownAction(action string) bool {
	if len(t.opts.BulkActions) == 0 {
		return true
	}
	return slices.ContainsFunc(t.opts.BulkActions, func(a Action) bool { return a.Value == action })
}

// BulkAction dispatches action with the selected keys to OnBulkAction and clears the selection.
// The selection is cleared even when the callback fails.
func (t *Table[R]) BulkAction(action string) error {
	t.mu.Lock()
	if len(t.selected) == 0 {
		t.mu.Unlock()
		return ErrNoSelection
	}
	if !t.knownAction(action) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	keys := slices.Clone(t.selected)
	t.clearSelection()
	cb := t.opts.OnBulkAction
	t.mu.Unlock()

	// Callbacks run unlocked: they usually re-fetch and call SetRows.
	if cb == nil {
		return nil
	}
	return cb(action, keys)
}

// RowAction dispatches action for the row identified by key to OnRowAction.
func (t *Table[R]) RowAction(action, key string) error {
	t.mu.Lock()
	row, ok := t.findRow(key)
	cb := t.opts.OnRowAction
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	if cb == nil {
		return nil
	}
	return cb(action, row)
}
