package odbctools

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// TypeNames maps inferred column kinds to DDL types.
type TypeNames struct {
	Integer string
	Float   string
	Text    string
	Time    string
	Bool    string
}

// Dialect captures what differs between the SQL backends libgal talks to.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	Types       TypeNames

	quote func(string) string
	// sqlite has no schemas, "schema.table" is kept as a single identifier
	joinSchema bool
	// name of the catalog query used by TableExists
	exists func(schema, name string) (string, []any)
	// appended to CREATE TABLE, receives the (possibly empty) primary key
	createSuffix func(d Dialect, pk string) string
}

// Quote quotes a single identifier. Dialects without quoting return it as is.
func (d Dialect) Quote(ident string) string {
	if d.quote == nil {
		return ident
	}
	return d.quote(ident)
}

// Qualify builds the table reference used in generated SQL.
func (d Dialect) Qualify(schema, name string) string {
	if schema == "" {
		return d.Quote(name)
	}
	if d.joinSchema {
		return d.Quote(schema + "." + name)
	}
	return d.Quote(schema) + "." + d.Quote(name)
}

func (d Dialect) rebind(query string) (string, error) {
	if d.Placeholder == nil {
		return query, nil
	}
	return d.Placeholder.ReplacePlaceholders(query)
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func backtick(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	Types: TypeNames{
		Integer: "INTEGER",
		Float:   "REAL",
		Text:    "TEXT",
		Time:    "TIMESTAMP",
		Bool:    "INTEGER",
	},
	quote:      doubleQuote,
	joinSchema: true,
	exists: func(schema, name string) (string, []any) {
		if schema != "" {
			name = schema + "." + name
		}
		return "SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?", []any{name}
	},
}

var MySQL = Dialect{
	Name:        "mysql",
	Placeholder: sq.Question,
	Types: TypeNames{
		Integer: "BIGINT",
		Float:   "DOUBLE",
		Text:    "TEXT",
		Time:    "DATETIME",
		Bool:    "BOOLEAN",
	},
	quote: backtick,
	exists: func(schema, name string) (string, []any) {
		if schema == "" {
			return "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{name}
		}
		return "SELECT count(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", []any{schema, name}
	},
}

var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	Types: TypeNames{
		Integer: "BIGINT",
		Float:   "DOUBLE PRECISION",
		Text:    "TEXT",
		Time:    "TIMESTAMP",
		Bool:    "BOOLEAN",
	},
	quote: doubleQuote,
	exists: func(schema, name string) (string, []any) {
		if schema == "" {
			return "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?", []any{name}
		}
		return "SELECT count(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", []any{schema, name}
	},
}

// Teradata identifiers are interpolated as given, the way hand written
// Teradata SQL usually references database.table.
var Teradata = Dialect{
	Name:        "teradata",
	Placeholder: sq.Question,
	Types: TypeNames{
		Integer: "BIGINT",
		Float:   "FLOAT",
		Text:    "VARCHAR(1024)",
		Time:    "TIMESTAMP(6)",
		Bool:    "BYTEINT",
	},
	exists: func(schema, name string) (string, []any) {
		if schema == "" {
			return "SELECT count(*) FROM DBC.TablesV WHERE DatabaseName = DATABASE AND TableName = ?", []any{name}
		}
		return "SELECT count(*) FROM DBC.TablesV WHERE DatabaseName = ? AND TableName = ?", []any{schema, name}
	},
	createSuffix: func(d Dialect, pk string) string {
		if pk == "" {
			return " NO PRIMARY INDEX"
		}
		return fmt.Sprintf(" PRIMARY INDEX (%s)", d.Quote(pk))
	},
}
