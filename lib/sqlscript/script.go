// Package sqlscript accumulates SQL statements with their positional
// parameters so they can be replayed against a connection in order or
// rendered to literal SQL text.
package sqlscript

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"libgal/lib/table"
)

type Statement struct {
	SQL    string
	Values []any
}

// Script is append-only, statements are never reordered or removed.
type Script struct {
	statements []Statement
}

func New() *Script {
	return &Script{}
}

func (s *Script) Len() int {
	return len(s.statements)
}

// Statements returns a copy of the accumulated statements.
func (s *Script) Statements() []Statement {
	out := make([]Statement, len(s.statements))
	for i, st := range s.statements {
		out[i] = Statement{SQL: st.SQL, Values: append([]any(nil), st.Values...)}
	}
	return out
}

func (s *Script) add(sql string, values ...any) {
	s.statements = append(s.statements, Statement{SQL: sql, Values: values})
}

func (s *Script) AddStatement(sql string) {
	s.add(sql)
}

func (s *Script) BeginTransaction() {
	s.add("BEGIN TRANSACTION;")
}

func (s *Script) EndTransaction() {
	s.add("END TRANSACTION;")
}

func qualified(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// InsertBatch appends one parameterized INSERT per row of t.
func (s *Script) InsertBatch(t *table.Table, schema, name string) error {
	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s);",
		qualified(schema, name),
		strings.Join(t.Columns, ", "),
		strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ","),
	)
	for r, row := range t.Rows {
		values := make([]any, len(row))
		for i, v := range row {
			normalized, err := NormalizeValue(t.Columns[i], v)
			if err != nil {
				return fmt.Errorf("insert batch: row %d column %q: %w", r, t.Columns[i], err)
			}
			values[i] = normalized
		}
		s.add(sql, values...)
	}
	return nil
}

// DeleteByIndex deletes every row whose key appears in the pk column of t.
func (s *Script) DeleteByIndex(t *table.Table, schema, name, pk string) error {
	values, err := t.Unique(pk)
	if err != nil {
		return err
	}
	literals := make([]string, len(values))
	for i, v := range values {
		literals[i] = Literal(v)
	}
	s.add(fmt.Sprintf(
		"DELETE FROM %s WHERE %s IN (%s);",
		qualified(schema, name), pk, strings.Join(literals, ", "),
	))
	return nil
}

// DeleteByTable deletes the rows of schema.name whose key exists in the
// staging table.
func (s *Script) DeleteByTable(schema, name, stgSchema, stgName, pk string) {
	s.add(fmt.Sprintf(
		"DELETE FROM %s WHERE %s IN (SEL %s FROM %s);",
		qualified(schema, name), pk, pk, qualified(stgSchema, stgName),
	))
}

func (s *Script) InsertFromTable(schemaOrig, nameOrig, schemaDest, nameDest string) {
	s.add(fmt.Sprintf(
		"INSERT INTO %s SELECT * FROM %s;",
		qualified(schemaDest, nameDest), qualified(schemaOrig, nameOrig),
	))
}

func (s *Script) DropTable(schema, name string) {
	s.add(fmt.Sprintf("DROP TABLE %s;", qualified(schema, name)))
}

var valuesClause = regexp.MustCompile(`VALUES \(.*\?.*\);\s*$`)

// Render returns one literal SQL string per statement in insertion order,
// placeholders replaced by quoted values. Every string ends with ';'.
func (s *Script) Render() []string {
	out := make([]string, len(s.statements))
	for i, st := range s.statements {
		sql := st.SQL
		if len(st.Values) > 0 {
			literals := make([]string, len(st.Values))
			for j, v := range st.Values {
				literals[j] = Literal(v)
			}
			sql = valuesClause.ReplaceAllString(sql, "") + "VALUES (" + strings.Join(literals, ", ") + ");"
		}
		if !strings.HasSuffix(strings.TrimSpace(sql), ";") {
			sql += ";"
		}
		out[i] = sql
	}
	return out
}

// String joins the rendered statements with newlines.
func (s *Script) String() string {
	return strings.Join(s.Render(), "\n")
}

// NormalizeValue prepares a cell for a parameterized insert: times become
// dates, NaN becomes NULL, strings lose single quotes and surrounding
// whitespace and integral floats in identifier-like columns (names
// containing "Id" or "Num") become integers.
func NormalizeValue(column string, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.Format(time.DateOnly), nil
	case string:
		return strings.TrimSpace(strings.ReplaceAll(x, "'", "")), nil
	case float64:
		if math.IsNaN(x) {
			return nil, nil
		}
		if strings.Contains(column, "Id") || strings.Contains(column, "Num") {
			if math.IsInf(x, 0) {
				return nil, fmt.Errorf("cannot convert %v to an integer", x)
			}
			if x == math.Trunc(x) {
				return int64(x), nil
			}
		}
		return x, nil
	case float32:
		return NormalizeValue(column, float64(x))
	}
	return v, nil
}

// Literal quotes a value for inclusion in SQL text. Strings are wrapped in
// single quotes with embedded quotes removed, this is not injection safe.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(x), "'", "") + "'"
	case time.Time:
		return "'" + x.Format(time.DateOnly) + "'"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		if math.IsNaN(x) {
			return "NULL"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return Literal(float64(x))
	}
	return fmt.Sprint(v)
}
