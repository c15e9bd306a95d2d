// Package dataset provides the in-memory tabular structure that grant
// files are parsed into and that the enrichment pipeline transforms.
package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Table is an ordered-column table of grant records. Cell values are
// string, float64, time.Time or nil. Stages only ever append columns and
// mutate cells; the row count never shrinks.
type Table struct {
	cols []string
	rows []map[string]any
}

// New creates an empty table with the given column order.
func New(cols ...string) *Table {
	return &Table{cols: append([]string(nil), cols...)}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.cols {
		if c == name {
			return true
		}
	}
	return false
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// Append adds a row. Keys not yet known become new columns, in first-seen
// order, so ragged input files still produce a stable schema.
func (t *Table) Append(row map[string]any) {
	for k := range row {
		if !t.HasColumn(k) {
			t.cols = append(t.cols, k)
		}
	}
	t.rows = append(t.rows, row)
}

// Value returns the cell at (row, col), nil when the column is absent.
func (t *Table) Value(i int, col string) any {
	return t.rows[i][col]
}

// Set writes the cell at (row, col), registering the column if new.
func (t *Table) Set(i int, col string, v any) {
	if !t.HasColumn(col) {
		t.cols = append(t.cols, col)
	}
	if t.rows[i] == nil {
		t.rows[i] = make(map[string]any)
	}
	t.rows[i][col] = v
}

// Rename renames columns according to the old→new mapping. Cell keys move
// with the column.
func (t *Table) Rename(renames map[string]string) {
	if len(renames) == 0 {
		return
	}
	for i, c := range t.cols {
		if n, ok := renames[c]; ok {
			t.cols[i] = n
		}
	}
	for _, row := range t.rows {
		for old, n := range renames {
			if v, ok := row[old]; ok {
				delete(row, old)
				row[n] = v
			}
		}
	}
}

// Distinct returns the distinct non-nil, non-empty string values of a
// column, in first-seen row order.
func (t *Table) Distinct(col string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.rows {
		s, ok := row[col].(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// LeftJoin joins another table onto this one. The join key on this side is
// the string value of onColumn; the other table is indexed by its keyColumn.
// Every non-key column of other is copied in with the given prefix.
// Unmatched rows get nil cells, so the joined columns always exist.
// Re-joining with the same prefix overwrites the previous values instead of
// duplicating columns.
func (t *Table) LeftJoin(other *Table, onColumn, keyColumn, prefix string) {
	index := make(map[string]map[string]any, other.NumRows())
	for _, row := range other.rows {
		if k, ok := row[keyColumn].(string); ok && k != "" {
			index[k] = row
		}
	}

	var joined []string
	for _, c := range other.cols {
		if c != keyColumn {
			joined = append(joined, c)
		}
	}

	for i := range t.rows {
		var match map[string]any
		if k, ok := t.rows[i][onColumn].(string); ok {
			match = index[k]
		}
		for _, c := range joined {
			if match != nil {
				t.Set(i, prefix+c, match[c])
			} else {
				t.Set(i, prefix+c, nil)
			}
		}
	}
}

// WriteCSV writes the table as CSV with a header row. Dates are formatted
// as yyyy-mm-dd, floats without exponent, nils as empty cells.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.cols); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	record := make([]string, len(t.cols))
	for _, row := range t.rows {
		for j, c := range t.cols {
			record[j] = formatCell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "dataset: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush")
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	case time.Duration:
		return strconv.FormatInt(int64(x.Hours()/24), 10)
	default:
		return ""
	}
}

// Float coerces a cell value to float64. Strings are parsed; anything else
// non-numeric reports ok=false.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
