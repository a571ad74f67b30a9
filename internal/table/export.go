package table

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ToggleColumn shows or hides a column. Hidden columns are skipped in both
// View and WriteCSV.
func (t *Table[R]) ToggleColumn(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.column(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	t.hidden[key] = !t.hidden[key]
	return nil
}

func (t *Table[R]) visibleColumns() []Column[R] {
	cols := make([]Column[R], 0, len(t.columns))
	for _, c := range t.columns {
		if !t.hidden[c.Key] {
			cols = append(cols, c)
		}
	}
	return cols
}

// WriteCSV writes the sorted (not paginated) rows restricted to the visible
// columns. Fields are joined with "," and lines with "\n" without quoting, so
// values containing commas, quotes or newlines are not escaped.
func (t *Table[R]) WriteCSV(w io.Writer) error {
	t.mu.Lock()
	cols := t.visibleColumns()
	rows := t.sorted
	t.mu.Unlock()

	lines := make([]string, 0, len(rows)+1)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	lines = append(lines, strings.Join(header, ","))

	for _, r := range rows {
		fields := make([]string, len(cols))
		for i, c := range cols {
			fields[i] = FormatValue(r.Field(c.Key))
		}
		lines = append(lines, strings.Join(fields, ","))
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// ExportFilename names a CSV export created at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("export-%d.csv", now.UnixMilli())
}
