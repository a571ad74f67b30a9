package table

import "slices"

type ColumnView struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Sortable bool      `json:"sortable"`
	Visible  bool      `json:"visible"`
	Sorted   Direction `json:"sorted,omitempty"`
}

type RowView struct {
	Key      string   `json:"key"`
	Selected bool     `json:"selected"`
	Cells    []string `json:"cells"`
}

// View is a render snapshot of the table state.
type View struct {
	Columns         []ColumnView `json:"columns"`
	Rows            []RowView    `json:"rows"`
	Page            int          `json:"page"`
	TotalPages      int          `json:"totalPages"`
	PageSize        int          `json:"pageSize"`
	PageSizes       []int        `json:"pageSizes"`
	TotalRows       int          `json:"totalRows"`
	SortKey         string       `json:"sortKey,omitempty"`
	SortDir         Direction    `json:"sortDir,omitempty"`
	Selected        []string     `json:"selected"`
	AllPageSelected bool         `json:"allPageSelected"`
	// BulkActions is only populated while at least one row is selected.
	BulkActions []Action `json:"bulkActions,omitempty"`
}

func (t *Table[R]) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := View{
		Page:            t.page,
		TotalPages:      t.totalPages(),
		PageSize:        t.pageSize,
		PageSizes:       slices.Clone(PageSizes),
		TotalRows:       len(t.sorted),
		SortKey:         t.sortKey,
		SortDir:         t.sortDir,
		Selected:        slices.Clone(t.selected),
		AllPageSelected: t.allPageSelected(),
	}
	if v.Selected == nil {
		v.Selected = []string{}
	}
	if len(t.selected) > 0 {
		v.BulkActions = slices.Clone(t.opts.BulkActions)
	}

	for _, c := range t.columns {
		cv := ColumnView{Key: c.Key, Label: c.Label, Sortable: !c.Unsortable, Visible: !t.hidden[c.Key]}
		if c.Key == t.sortKey {
			cv.Sorted = t.sortDir
		}
		v.Columns = append(v.Columns, cv)
	}

	visible := t.visibleColumns()
	v.Rows = make([]RowView, 0, t.pageSize)
	for _, r := range t.pageRows() {
		key := t.keyOf(r)
		_, sel := t.selectedSet[key]
		rv := RowView{Key: key, Selected: sel, Cells: make([]string, len(visible))}
		for i, c := range visible {
			val := r.Field(c.Key)
			if c.Render != nil {
				rv.Cells[i] = c.Render(val, r)
			} else {
				rv.Cells[i] = FormatValue(val)
			}
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}
