// Package odbctools holds the table level helpers shared by every backend:
// range reads, chunked inserts and the insert-if-absent upserts.
package odbctools

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"libgal/lib/logging"
	"libgal/lib/sqlscript"
	"libgal/lib/table"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("libgal/lib/odbctools")
	meter  = otel.Meter("libgal/lib/odbctools")
)

var rowsInserted, _ = meter.Int64Counter(
	"libgal.rows_inserted",
	metric.WithDescription("Rows written by chunked inserts."),
)

const DefaultBatchRows = 10000

// maximum number of keys per DELETE ... IN (...) statement
const deleteChunk = 1000

// Conn is satisfied by *sqlx.DB.
type Conn interface {
	sqlx.ExtContext
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type InsertOptions struct {
	// BatchRows bounds the rows written per transaction, DefaultBatchRows
	// when zero.
	BatchRows int
	// PrimaryKey is used for the DDL of tables created on the fly.
	PrimaryKey string
	Logger     *slog.Logger
}

func (o InsertOptions) batchRows() int {
	if o.BatchRows <= 0 {
		return DefaultBatchRows
	}
	return o.BatchRows
}

// Query runs a query and collects its result set. Byte slices returned by
// text columns are converted to strings.
func Query(ctx context.Context, db sqlx.QueryerContext, query string, args ...any) (*table.Table, error) {
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	decoders := make([]func([]byte) any, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			decoders[i] = textDecoder(ct.DatabaseTypeName())
		}
	}

	out := table.New(columns...)
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			b, ok := v.([]byte)
			if !ok {
				continue
			}
			if decoders[i] != nil {
				values[i] = decoders[i](b)
			} else {
				values[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, values)
	}
	return out, rows.Err()
}

// textDecoder parses numeric columns that text protocols (mysql without
// arguments) return as bytes.
func textDecoder(databaseType string) func([]byte) any {
	name := strings.ToUpper(databaseType)
	switch {
	case strings.Contains(name, "INT"):
		return func(b []byte) any {
			if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
				return n
			}
			return string(b)
		}
	case strings.Contains(name, "DECIMAL"), strings.Contains(name, "NUMERIC"),
		strings.Contains(name, "FLOAT"), strings.Contains(name, "DOUBLE"), name == "REAL":
		return func(b []byte) any {
			if f, err := strconv.ParseFloat(string(b), 64); err == nil {
				return f
			}
			return string(b)
		}
	}
	return nil
}

func TableExists(ctx context.Context, db sqlx.QueryerContext, d Dialect, schema, name string) (bool, error) {
	query, args := d.exists(schema, name)
	query, err := d.rebind(query)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.QueryRowxContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check table %s: %w", d.Qualify(schema, name), err)
	}
	return count > 0, nil
}

// SelectRecordsByRange reads columns of schema.name whose rangeColumn lies
// in [lo, hi]. An empty rangeColumn reads the whole table.
func SelectRecordsByRange(
	ctx context.Context,
	db sqlx.QueryerContext,
	d Dialect,
	schema, name string,
	columns []string,
	rangeColumn string,
	lo, hi any,
) (*table.Table, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	if len(quoted) == 0 {
		quoted = []string{"*"}
	}

	builder := sq.Select(quoted...).
		From(d.Qualify(schema, name)).
		PlaceholderFormat(d.Placeholder)
	if rangeColumn != "" {
		builder = builder.Where(sq.GtOrEq{d.Quote(rangeColumn): lo}).
			Where(sq.LtOrEq{d.Quote(rangeColumn): hi})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return Query(ctx, db, query, args...)
}

func LoadTable(ctx context.Context, db sqlx.QueryerContext, d Dialect, schema, name string) (*table.Table, error) {
	return Query(ctx, db, "SELECT * FROM "+d.Qualify(schema, name))
}

// KeyExists reports whether any row of name has field equal to key.
func KeyExists(ctx context.Context, db sqlx.QueryerContext, d Dialect, name, field string, key any) (bool, error) {
	query, args, err := sq.Select("1").
		From(d.Qualify("", name)).
		Where(sq.Eq{d.Quote(field): key}).
		Limit(1).
		PlaceholderFormat(d.Placeholder).
		ToSql()
	if err != nil {
		return false, err
	}
	result, err := Query(ctx, db, query, args...)
	if err != nil {
		return false, err
	}
	return !result.Empty(), nil
}

type columnKind int

const (
	kindUnknown columnKind = iota
	kindBool
	kindInteger
	kindFloat
	kindTime
	kindText
)

func kindOf(v any) columnKind {
	switch v.(type) {
	case nil:
		return kindUnknown
	case bool:
		return kindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInteger
	case float32, float64:
		return kindFloat
	case time.Time:
		return kindTime
	}
	return kindText
}

// the widest kind seen wins, mixing times or bools with anything else
// falls back to text
func inferKind(values []any) columnKind {
	kind := kindUnknown
	for _, v := range values {
		k := kindOf(v)
		switch {
		case k == kindUnknown || k == kind:
		case kind == kindUnknown:
			kind = k
		case (kind == kindInteger && k == kindFloat) || (kind == kindFloat && k == kindInteger):
			kind = kindFloat
		default:
			return kindText
		}
	}
	if kind == kindUnknown {
		return kindText
	}
	return kind
}

func (d Dialect) typeName(kind columnKind) string {
	switch kind {
	case kindBool:
		return d.Types.Bool
	case kindInteger:
		return d.Types.Integer
	case kindFloat:
		return d.Types.Float
	case kindTime:
		return d.Types.Time
	}
	return d.Types.Text
}

// CreateTableSQL derives a CREATE TABLE statement from the cell types of t.
func CreateTableSQL(d Dialect, schema, name string, t *table.Table, pk string) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		values := make([]any, len(t.Rows))
		for r, row := range t.Rows {
			values[r] = row[i]
		}
		defs[i] = d.Quote(c) + " " + d.typeName(inferKind(values))
	}
	sql := fmt.Sprintf("CREATE TABLE %s (%s)", d.Qualify(schema, name), strings.Join(defs, ", "))
	if d.createSuffix != nil {
		sql += d.createSuffix(d, pk)
	}
	return sql
}

func insertSQL(d Dialect, schema, name string, columns []string) (string, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.Qualify(schema, name),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)
	return d.rebind(sql)
}

// drivers reject NaN, it is written as NULL
func driverValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return nil
		}
	}
	return v
}

// Insert appends the rows of t to schema.name, creating the table from the
// inferred column types when it does not exist. Each chunk is written in its
// own transaction through a prepared statement.
func Insert(ctx context.Context, db Conn, d Dialect, schema, name string, t *table.Table, opts InsertOptions) error {
	if t.Empty() {
		return nil
	}
	logger := logging.Or(opts.Logger)
	target := d.Qualify(schema, name)

	ctx, span := tracer.Start(ctx, "odbctools.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", d.Name),
		attribute.String("db.table", target),
		attribute.Int("rows", t.Len()),
	)

	exists, err := TableExists(ctx, db, d, schema, name)
	if err != nil {
		return err
	}
	if !exists {
		ddl := CreateTableSQL(d, schema, name, t, opts.PrimaryKey)
		logger.Info("creating table", "table", target)
		logger.Debug("create table", "sql", ddl)
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", target, err)
		}
	}

	query, err := insertSQL(d, schema, name, t.Columns)
	if err != nil {
		return err
	}

	chunks := t.Chunks(opts.batchRows())
	for i, chunk := range chunks {
		logger.Info("loading batch", "table", target, "batch", i+1, "of", len(chunks), "rows", chunk.Len())
		if err := insertChunk(ctx, db, query, chunk); err != nil {
			return fmt.Errorf("insert into %s, batch %d: %w", target, i+1, err)
		}
		if rowsInserted != nil {
			rowsInserted.Add(ctx, int64(chunk.Len()), metric.WithAttributes(attribute.String("db.system", d.Name)))
		}
	}
	return nil
}

func insertChunk(ctx context.Context, db Conn, query string, chunk *table.Table) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	args := make([]any, len(chunk.Columns))
	for _, row := range chunk.Rows {
		for i, v := range row {
			args[i] = driverValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func missingRows(t *table.Table, pk string, existing *table.Table) (*table.Table, error) {
	idx, err := t.Index(pk)
	if err != nil {
		return nil, err
	}
	keys, err := existing.KeySet(pk)
	if err != nil {
		return nil, err
	}
	return t.Filter(func(row []any) bool {
		_, found := keys[table.Key(row[idx])]
		return !found
	}), nil
}

func readKeys(ctx context.Context, db sqlx.QueryerContext, d Dialect, schema, name, pk string, bounded bool, t *table.Table) (*table.Table, error) {
	exists, err := TableExists(ctx, db, d, schema, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return table.New(pk), nil
	}
	if !bounded {
		return SelectRecordsByRange(ctx, db, d, schema, name, []string{pk}, "", nil, nil)
	}
	lo, hi, err := t.Bounds(pk)
	if err != nil {
		return nil, err
	}
	if lo == nil {
		return table.New(pk), nil
	}
	return SelectRecordsByRange(ctx, db, d, schema, name, []string{pk}, pk, lo, hi)
}

func insertIfAbsent(ctx context.Context, db Conn, d Dialect, schema, name string, t *table.Table, pk string, bounded bool, opts InsertOptions) (*table.Table, *table.Table, error) {
	if t.Empty() {
		empty := table.New(t.Columns...)
		return empty, table.New(pk), nil
	}
	if _, err := t.Index(pk); err != nil {
		return nil, nil, err
	}
	existing, err := readKeys(ctx, db, d, schema, name, pk, bounded, t)
	if err != nil {
		return nil, nil, err
	}
	inserted, err := missingRows(t, pk, existing)
	if err != nil {
		return nil, nil, err
	}

	logging.Or(opts.Logger).Info(
		"insert if absent",
		"table", d.Qualify(schema, name),
		"new", inserted.Len(),
		"existing", existing.Len(),
	)
	if opts.PrimaryKey == "" {
		opts.PrimaryKey = pk
	}
	if err := Insert(ctx, db, d, schema, name, inserted, opts); err != nil {
		return nil, nil, err
	}
	return inserted, existing, nil
}

// UpsertByPrimaryKey inserts the rows of t whose pk is not yet present in
// schema.name. Only keys within [min(pk), max(pk)] of t are read back.
// Existing rows are never updated. It returns the rows that were written
// and the keys that were already there.
func UpsertByPrimaryKey(ctx context.Context, db Conn, d Dialect, schema, name string, t *table.Table, pk string, opts InsertOptions) (inserted, existing *table.Table, err error) {
	return insertIfAbsent(ctx, db, d, schema, name, t, pk, true, opts)
}

// InsertByPrimaryKey is UpsertByPrimaryKey reading every key of the target
// table instead of a range.
func InsertByPrimaryKey(ctx context.Context, db Conn, d Dialect, schema, name string, t *table.Table, pk string, opts InsertOptions) (inserted, existing *table.Table, err error) {
	return insertIfAbsent(ctx, db, d, schema, name, t, pk, false, opts)
}

// ReplaceByPrimaryKey deletes the rows sharing a key with t and inserts t.
func ReplaceByPrimaryKey(ctx context.Context, db Conn, d Dialect, schema, name string, t *table.Table, pk string, opts InsertOptions) error {
	if t.Empty() {
		return nil
	}
	keys, err := t.Unique(pk)
	if err != nil {
		return err
	}
	exists, err := TableExists(ctx, db, d, schema, name)
	if err != nil {
		return err
	}
	if exists {
		for start := 0; start < len(keys); start += deleteChunk {
			end := min(start+deleteChunk, len(keys))
			query, args, err := sq.Delete(d.Qualify(schema, name)).
				Where(sq.Eq{d.Quote(pk): keys[start:end]}).
				PlaceholderFormat(d.Placeholder).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := db.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete from %s: %w", d.Qualify(schema, name), err)
			}
		}
	}
	if opts.PrimaryKey == "" {
		opts.PrimaryKey = pk
	}
	return Insert(ctx, db, d, schema, name, t, opts)
}

// LoadSQL reads a script file and splits it into statements. Lines starting
// with "--" are dropped before splitting on ';'.
func LoadSQL(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitSQL(string(content)), nil
}

func SplitSQL(script string) []string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, "\r"))
	}

	var statements []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			statements = append(statements, part)
		}
	}
	return statements
}

// InsertsFromTable renders one literal INSERT statement per row of t.
func InsertsFromTable(t *table.Table, target string) ([]string, error) {
	header := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", target, strings.Join(t.Columns, ", "))
	out := make([]string, 0, t.Len())
	for r, row := range t.Rows {
		literals := make([]string, len(row))
		for i, v := range row {
			normalized, err := sqlscript.NormalizeValue(t.Columns[i], v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, t.Columns[i], err)
			}
			literals[i] = sqlscript.Literal(normalized)
		}
		out = append(out, header+"("+strings.Join(literals, ", ")+");")
	}
	return out, nil
}
