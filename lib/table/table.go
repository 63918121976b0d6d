package table

import (
	"fmt"
	"math"
	"regexp"
)

// Table is an in-memory set of rows sharing one ordered list of columns.
// Cells hold whatever the driver or parser produced (int64, float64, string,
// []byte, time.Time, bool or nil).
type Table struct {
	Columns []string
	Rows    [][]any
}

func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Index returns the position of a column, the error carries the closest
// existing column name when one looks like a typo.
func (t *Table) Index(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, newMissingColumnError(name, t.Columns)
}

func (t *Table) HasColumn(name string) bool {
	_, err := t.Index(name)
	return err == nil
}

func (t *Table) AddRow(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, values)
	return nil
}

func (t *Table) Column(name string) ([]any, error) {
	idx, err := t.Index(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Floats returns a column as float64, cells that are not numeric become NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := Float(v)
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out, nil
}

// SetColumn replaces the values of an existing column or appends a new one.
func (t *Table) SetColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx >= 0 {
		for i, row := range t.Rows {
			row[idx] = values[i]
		}
		return nil
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Drop removes columns, unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var keep []string
	for _, c := range t.Columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, c)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

func (t *Table) Select(names ...string) (*Table, error) {
	idxs := make([]int, len(names))
	for i, n := range names {
		idx, err := t.Index(n)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	out := New(names...)
	out.Rows = make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		projected := make([]any, len(idxs))
		for i, idx := range idxs {
			projected[i] = row[idx]
		}
		out.Rows[r] = projected
	}
	return out, nil
}

// Filter returns a table sharing rows with t for which keep returns true.
func (t *Table) Filter(keep func(row []any) bool) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// Chunks splits the rows into max(len/n, 1) parts of nearly equal size,
// the first len%parts parts receive one extra row.
func (t *Table) Chunks(n int) []*Table {
	if n <= 0 {
		n = 1
	}
	parts := t.Len() / n
	if parts < 1 {
		parts = 1
	}
	size, extra := t.Len()/parts, t.Len()%parts

	out := make([]*Table, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunk := New(t.Columns...)
		chunk.Rows = t.Rows[start:end:end]
		out = append(out, chunk)
		start = end
	}
	return out
}

// DropLists removes every column that holds at least one slice value.
func (t *Table) DropLists() *Table {
	var drop []string
	for i, c := range t.Columns {
		for _, row := range t.Rows {
			if _, ok := row[i].([]any); ok {
				drop = append(drop, c)
				break
			}
			if _, ok := row[i].([]string); ok {
				drop = append(drop, c)
				break
			}
		}
	}
	return t.Drop(drop...)
}

// StripNames removes the pattern from every column name. It returns the
// renamed table along with the original names.
func (t *Table) StripNames(pattern string) (*Table, []string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nil, err
	}
	original := append([]string(nil), t.Columns...)
	out := t.Clone()
	for i, c := range out.Columns {
		out.Columns[i] = re.ReplaceAllString(c, "")
	}
	return out, original, nil
}

// SelectPrefix keeps the columns starting with prefix and strips it.
func (t *Table) SelectPrefix(prefix string) (*Table, []string, error) {
	re, err := regexp.Compile("^" + prefix)
	if err != nil {
		return nil, nil, err
	}
	var names []string
	for _, c := range t.Columns {
		if re.MatchString(c) {
			names = append(names, c)
		}
	}
	selected, err := t.Select(names...)
	if err != nil {
		return nil, nil, err
	}
	return selected.StripNames("^" + prefix)
}

// Float converts numeric cells, numeric strings are not converted.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// IsNull reports nil and NaN cells.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}
