package table

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRow map[string]any

func (r testRow) Field(key string) any { return r[key] }

func makeRows(n int) []testRow {
	rows := make([]testRow, n)
	for i := range rows {
		rows[i] = testRow{"_id": fmt.Sprintf("r%03d", i), "n": i}
	}
	return rows
}

func cols() []Column[testRow] {
	return []Column[testRow]{
		{Key: "_id", Label: "ID"},
		{Key: "name", Label: "Name"},
		{Key: "score", Label: "Score"},
		{Key: "actions", Label: "Actions", Unsortable: true},
	}
}

func keys(rows []testRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["_id"].(string)
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	tbl, err := New(makeRows(3), cols(), Options[testRow]{})
	require.NoError(t, err)

	v := tbl.View()
	assert.Equal(t, DefaultPageSize, v.PageSize)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 1, v.TotalPages)
	assert.Equal(t, []string{"r000", "r001", "r002"}, []string{v.Rows[0].Key, v.Rows[1].Key, v.Rows[2].Key})
}

func TestNew_InvalidPageSize(t *testing.T) {
	_, err := New(makeRows(3), cols(), Options[testRow]{PageSize: 7})
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}

func TestToggleSort_Directions(t *testing.T) {
	rows := []testRow{
		{"_id": "a", "score": 2, "name": "zed"},
		{"_id": "b", "score": 1, "name": "amy"},
		{"_id": "c", "score": 3, "name": "bob"},
	}
	tbl, err := New(rows, cols(), Options[testRow]{})
	require.NoError(t, err)

	require.NoError(t, tbl.ToggleSort("score"))
	assert.Equal(t, []string{"b", "a", "c"}, keys(tbl.SortedRows()))

	require.NoError(t, tbl.ToggleSort("score"))
	assert.Equal(t, []string{"c", "a", "b"}, keys(tbl.SortedRows()))

	// Switching column resets to ascending.
	require.NoError(t, tbl.ToggleSort("name"))
	assert.Equal(t, []string{"b", "c", "a"}, keys(tbl.SortedRows()))
	v := tbl.View()
	assert.Equal(t, "name", v.SortKey)
	assert.Equal(t, Asc, v.SortDir)

	assert.ErrorIs(t, tbl.ToggleSort("actions"), ErrUnsortable)
	assert.ErrorIs(t, tbl.ToggleSort("nope"), ErrUnknownColumn)
}

func TestToggleSort_StableAcrossToggles(t *testing.T) {
	rows := []testRow{
		{"_id": "a1", "score": 1},
		{"_id": "b2", "score": 2},
		{"_id": "a2", "score": 1},
		{"_id": "b1", "score": 2},
		{"_id": "a3", "score": 1},
	}
	tbl, err := New(rows, cols(), Options[testRow]{})
	require.NoError(t, err)

	require.NoError(t, tbl.ToggleSort("score"))
	assert.Equal(t, []string{"a1", "a2", "a3", "b2", "b1"}, keys(tbl.SortedRows()))

	require.NoError(t, tbl.ToggleSort("score"))
	assert.Equal(t, []string{"b2", "b1", "a1", "a2", "a3"}, keys(tbl.SortedRows()))

	require.NoError(t, tbl.ToggleSort("score"))
	assert.Equal(t, []string{"a1", "a2", "a3", "b2", "b1"}, keys(tbl.SortedRows()))
}

func TestCompareValues(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"ints", 2, 10, -1},
		{"int vs float", 2, 1.5, 1},
		{"strings are lexicographic", "10", "9", -1},
		{"bools", false, true, -1},
		{"times", now, now.Add(time.Second), -1},
		{"nil first", nil, "a", -1},
		{"nil equal", nil, nil, 0},
		{"mixed kinds stringified", "b", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareValues(tt.a, tt.b))
		})
	}
}

func TestPagination_Invariant(t *testing.T) {
	for _, size := range PageSizes {
		for _, count := range []int{0, 1, 9, 10, 11, 25, 99, 100, 101, 257} {
			t.Run(fmt.Sprintf("size=%d/count=%d", size, count), func(t *testing.T) {
				tbl, err := New(makeRows(count), cols(), Options[testRow]{PageSize: size})
				require.NoError(t, err)

				total := tbl.TotalPages()
				assert.Equal(t, max(1, (count+size-1)/size), total)

				seen := make(map[string]int)
				for p := 1; p <= total; p++ {
					assert.Equal(t, p, tbl.SetPage(p))
					for _, r := range tbl.PageRows() {
						seen[r["_id"].(string)]++
					}
				}
				assert.Len(t, seen, count)
				for k, n := range seen {
					assert.Equal(t, 1, n, "row %s shown more than once", k)
				}

				assert.Equal(t, 1, tbl.SetPage(-3))
				assert.Equal(t, total, tbl.SetPage(total+5))
			})
		}
	}
}

func TestSetPageSize_ResetsPage(t *testing.T) {
	tbl, err := New(makeRows(60), cols(), Options[testRow]{PageSize: 10})
	require.NoError(t, err)

	tbl.SetPage(4)
	require.NoError(t, tbl.SetPageSize(25))
	assert.Equal(t, 1, tbl.Page())
	assert.Equal(t, 3, tbl.TotalPages())

	assert.ErrorIs(t, tbl.SetPageSize(30), ErrInvalidPageSize)
}

func TestEmptyRows(t *testing.T) {
	tbl, err := New(nil, cols(), Options[testRow]{})
	require.NoError(t, err)

	v := tbl.View()
	assert.Empty(t, v.Rows)
	assert.Equal(t, 1, v.TotalPages)
	assert.Equal(t, 1, v.Page)
	assert.False(t, v.AllPageSelected)

	tbl.ToggleSelectAll()
	assert.Empty(t, tbl.Selected())
}

func TestToggleSelectAll_IsAToggle(t *testing.T) {
	tbl, err := New(makeRows(30), cols(), Options[testRow]{PageSize: 10})
	require.NoError(t, err)

	tbl.ToggleSelectAll()
	assert.Len(t, tbl.Selected(), 10)
	assert.True(t, tbl.View().AllPageSelected)

	tbl.ToggleSelectAll()
	assert.Empty(t, tbl.Selected())
}

func TestSelection_PersistsAcrossPages(t *testing.T) {
	tbl, err := New(makeRows(30), cols(), Options[testRow]{PageSize: 10})
	require.NoError(t, err)

	require.NoError(t, tbl.ToggleSelect("r001"))
	tbl.SetPage(2)
	require.NoError(t, tbl.ToggleSelect("r015"))
	assert.Equal(t, []string{"r001", "r015"}, tbl.Selected())

	// Page 2 is not fully selected, so select-all replaces the selection with page 2.
	tbl.ToggleSelectAll()
	sel := tbl.Selected()
	assert.Len(t, sel, 10)
	assert.NotContains(t, sel, "r001")
	assert.Contains(t, sel, "r015")

	require.NoError(t, tbl.ToggleSelect("r015"))
	assert.NotContains(t, tbl.Selected(), "r015")

	assert.ErrorIs(t, tbl.ToggleSelect("missing"), ErrRowNotFound)
}

func TestBulkAction(t *testing.T) {
	var gotAction string
	var gotKeys []string
	var tbl *Table[testRow]
	opts := Options[testRow]{
		BulkActions: []Action{{Label: "Approve", Value: "approve"}},
		OnBulkAction: func(action string, keys []string) error {
			gotAction, gotKeys = action, keys
			// Re-fetch inside the callback must not deadlock.
			tbl.SetRows(makeRows(2))
			return nil
		},
	}
	tbl, err := New(makeRows(5), cols(), opts)
	require.NoError(t, err)

	assert.ErrorIs(t, tbl.BulkAction("approve"), ErrNoSelection)
	assert.Empty(t, tbl.View().BulkActions, "bulk control hidden without selection")

	require.NoError(t, tbl.ToggleSelect("r003"))
	require.NoError(t, tbl.ToggleSelect("r000"))
	assert.Len(t, tbl.View().BulkActions, 1)

	assert.ErrorIs(t, tbl.BulkAction("delete"), ErrUnknownAction)
	assert.Len(t, tbl.Selected(), 2, "unknown action keeps selection")

	require.NoError(t, tbl.BulkAction("approve"))
	assert.Equal(t, "approve", gotAction)
	assert.Equal(t, []string{"r003", "r000"}, gotKeys)
	assert.Empty(t, tbl.Selected())
	assert.Len(t, tbl.SortedRows(), 2)
}

func TestBulkAction_ClearsSelectionOnError(t *testing.T) {
	boom := errors.New("boom")
	tbl, err := New(makeRows(3), cols(), Options[testRow]{
		OnBulkAction: func(string, []string) error { return boom },
	})
	require.NoError(t, err)

	tbl.ToggleSelectAll()
	assert.ErrorIs(t, tbl.BulkAction("anything"), boom)
	assert.Empty(t, tbl.Selected())
}

func TestRowAction(t *testing.T) {
	var got testRow
	tbl, err := New(makeRows(3), cols(), Options[testRow]{
		OnRowAction: func(action string, row testRow) error {
			got = row
			return nil
		},
	})
	require.NoError(t, err)

	require.NoError(t, tbl.RowAction("edit", "r002"))
	assert.Equal(t, 2, got["n"])
	assert.ErrorIs(t, tbl.RowAction("edit", "r999"), ErrRowNotFound)
}

func TestSetRows_DropsVanishedSelectionAndClampsPage(t *testing.T) {
	tbl, err := New(makeRows(50), cols(), Options[testRow]{PageSize: 10})
	require.NoError(t, err)

	require.NoError(t, tbl.ToggleSelect("r001"))
	require.NoError(t, tbl.ToggleSelect("r040"))
	tbl.SetPage(5)

	tbl.SetRows(makeRows(15))
	assert.Equal(t, []string{"r001"}, tbl.Selected())
	assert.Equal(t, 2, tbl.Page())
}

func TestWriteCSV(t *testing.T) {
	rows := []testRow{
		{"_id": "b", "name": "Bob", "score": 2, "meta": map[string]any{"tier": "gold"}},
		{"_id": "a", "name": "Amy", "score": 1},
		{"_id": "c", "name": "Cat", "score": 3, "tags": []string{"x", "y"}},
	}
	columns := []Column[testRow]{
		{Key: "_id", Label: "ID"},
		{Key: "name", Label: "Name"},
		{Key: "score", Label: "Score"},
		{Key: "meta", Label: "Meta"},
		{Key: "tags", Label: "Tags"},
	}
	tbl, err := New(rows, columns, Options[testRow]{PageSize: 10})
	require.NoError(t, err)
	require.NoError(t, tbl.ToggleSort("score"))
	require.NoError(t, tbl.ToggleColumn("tags"))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	want := strings.Join([]string{
		"ID,Name,Score,Meta",
		"a,Amy,1,",
		`b,Bob,2,{"tier":"gold"}`,
		"c,Cat,3,",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_RoundTripScalars(t *testing.T) {
	tbl, err := New(makeRows(37), []Column[testRow]{
		{Key: "_id", Label: "ID"},
		{Key: "n", Label: "N"},
	}, Options[testRow]{PageSize: 10})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 38, "export is not paginated")
	assert.Equal(t, []string{"ID", "N"}, strings.Split(lines[0], ","))
	for i, line := range lines[1:] {
		assert.Equal(t, []string{fmt.Sprintf("r%03d", i), fmt.Sprint(i)}, strings.Split(line, ","))
	}
}

func TestToggleColumn_AffectsView(t *testing.T) {
	tbl, err := New([]testRow{{"_id": "a", "name": "Amy", "score": 4}}, cols(), Options[testRow]{})
	require.NoError(t, err)

	require.NoError(t, tbl.ToggleColumn("name"))
	v := tbl.View()
	assert.Equal(t, []string{"a", "4", ""}, v.Rows[0].Cells)
	assert.False(t, v.Columns[1].Visible)

	require.NoError(t, tbl.ToggleColumn("name"))
	assert.Len(t, tbl.View().Rows[0].Cells, 4)

	assert.ErrorIs(t, tbl.ToggleColumn("nope"), ErrUnknownColumn)
}

func TestView_RenderOverride(t *testing.T) {
	columns := []Column[testRow]{
		{Key: "_id", Label: "ID"},
		{Key: "score", Label: "Score", Render: func(v any, row testRow) string {
			return fmt.Sprintf("%v pts (%s)", v, row["_id"])
		}},
	}
	tbl, err := New([]testRow{{"_id": "a", "score": 9}}, columns, Options[testRow]{})
	require.NoError(t, err)

	assert.Equal(t, "9 pts (a)", tbl.View().Rows[0].Cells[1])
}

func TestExportFilename(t *testing.T) {
	ts := time.UnixMilli(1717243200123)
	assert.Equal(t, "export-1717243200123.csv", ExportFilename(ts))
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "2025-01-02T03:04:05Z", FormatValue(ts))
	assert.Equal(t, "2025-01-02T03:04:05Z", FormatValue(&ts))
	assert.Equal(t, `["a","b"]`, FormatValue([]string{"a", "b"}))
	assert.Equal(t, "3.5", FormatValue(3.5))
	assert.Equal(t, "true", FormatValue(true))
}
