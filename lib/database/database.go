// Package database opens connections to the supported backends and exposes
// them behind a single DB interface built on sqlx.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"libgal/lib/logging"
	"libgal/lib/odbctools"
	"libgal/lib/table"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("libgal/lib/database")

type DB interface {
	Kind() Kind
	// Query runs a SELECT and collects the result set.
	Query(ctx context.Context, query string, args ...any) (*table.Table, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	// Insert appends t to schema.name, creating the table when missing.
	Insert(ctx context.Context, schema, name string, t *table.Table) error
	// Upsert inserts the rows of t whose pk is not yet present. The rows
	// written and the keys already there are returned.
	Upsert(ctx context.Context, schema, name string, t *table.Table, pk string) (inserted, existing *table.Table, err error)
	// Replace deletes the rows of schema.name sharing a pk with t and
	// inserts all of t.
	Replace(ctx context.Context, schema, name string, t *table.Table, pk string) error
	TableExists(ctx context.Context, schema, name string) (bool, error)
	ReadTable(ctx context.Context, schema, name string) (*table.Table, error)
	// InsertsFromTable renders the content of a table as INSERT statements.
	InsertsFromTable(ctx context.Context, schema, name string) ([]string, error)
	DropTable(ctx context.Context, schema, name string) error
	TruncateTable(ctx context.Context, schema, name string) error
	SQLX() *sqlx.DB
	Close() error
}

// Stager is implemented by backends that merge through staging tables.
type Stager interface {
	StagingInsert(ctx context.Context, t *table.Table, schema, name, pk string, opts StagingOptions) error
	StagingUpsert(ctx context.Context, t *table.Table, schema, name, pk string, opts StagingOptions) error
}

type StagingOptions struct {
	// StagingSchema defaults to the destination schema.
	StagingSchema string
	// StagingName defaults to a generated unique name.
	StagingName string
}

func Open(ctx context.Context, opts Options, logger *slog.Logger) (DB, error) {
	opts = opts.withDefaults()
	logger = logging.Or(logger).With("backend", opts.Kind.String())

	var (
		db  DB
		err error
	)
	switch opts.Kind {
	case KindSQLite:
		db, err = asDB(OpenSQLite(opts.File, opts, logger))
	case KindMySQL:
		db, err = asDB(OpenMySQL(ctx, opts, logger))
	case KindTeradata:
		db, err = asDB(OpenTeradata(ctx, opts, logger))
	case KindPostgres:
		db, err = asDB(OpenPostgres(ctx, opts, logger))
	case KindLibSQL:
		db, err = asDB(OpenLibSQL(ctx, opts, logger))
	default:
		return nil, fmt.Errorf("open: unknown database kind %v", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// asDB keeps a nil backend pointer from turning into a non-nil DB.
func asDB[T DB](db T, err error) (DB, error) {
	if err != nil {
		return nil, err
	}
	return db, nil
}

func StagingInsert(ctx context.Context, db DB, t *table.Table, schema, name, pk string, opts StagingOptions) error {
	stager, ok := db.(Stager)
	if !ok {
		return &UnsupportedError{Backend: db.Kind(), Operation: "staging insert"}
	}
	return stager.StagingInsert(ctx, t, schema, name, pk, opts)
}

func StagingUpsert(ctx context.Context, db DB, t *table.Table, schema, name, pk string, opts StagingOptions) error {
	stager, ok := db.(Stager)
	if !ok {
		return &UnsupportedError{Backend: db.Kind(), Operation: "staging upsert"}
	}
	return stager.StagingUpsert(ctx, t, schema, name, pk, opts)
}

// handle is the backend independent part of every DB.
type handle struct {
	kind      Kind
	db        *sqlx.DB
	dialect   odbctools.Dialect
	logger    *slog.Logger
	batchRows int
}

func newHandle(kind Kind, db *sqlx.DB, dialect odbctools.Dialect, opts Options, logger *slog.Logger) *handle {
	return &handle{
		kind:      kind,
		db:        db,
		dialect:   dialect,
		logger:    logging.Or(logger),
		batchRows: opts.BatchRows,
	}
}

func (h *handle) Kind() Kind {
	return h.kind
}

func (h *handle) SQLX() *sqlx.DB {
	return h.db
}

func (h *handle) Dialect() odbctools.Dialect {
	return h.dialect
}

func (h *handle) Close() error {
	h.logger.Debug("closing connection")
	return h.db.Close()
}

func (h *handle) insertOptions(pk string) odbctools.InsertOptions {
	return odbctools.InsertOptions{
		BatchRows:  h.batchRows,
		PrimaryKey: pk,
		Logger:     h.logger,
	}
}

func (h *handle) Query(ctx context.Context, query string, args ...any) (*table.Table, error) {
	ctx, span := tracer.Start(ctx, "database.Query")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", h.kind.String()))

	h.logger.Debug("query", "sql", query)
	result, err := odbctools.Query(ctx, h.db, h.db.Rebind(query), args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

func (h *handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := tracer.Start(ctx, "database.Exec")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", h.kind.String()))

	h.logger.Debug("exec", "sql", query)
	result, err := h.db.ExecContext(ctx, h.db.Rebind(query), args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

func (h *handle) Insert(ctx context.Context, schema, name string, t *table.Table) error {
	return odbctools.Insert(ctx, h.db, h.dialect, schema, name, t, h.insertOptions(""))
}

func (h *handle) Upsert(ctx context.Context, schema, name string, t *table.Table, pk string) (*table.Table, *table.Table, error) {
	return odbctools.UpsertByPrimaryKey(ctx, h.db, h.dialect, schema, name, t, pk, h.insertOptions(pk))
}

func (h *handle) Replace(ctx context.Context, schema, name string, t *table.Table, pk string) error {
	return odbctools.ReplaceByPrimaryKey(ctx, h.db, h.dialect, schema, name, t, pk, h.insertOptions(pk))
}

func (h *handle) TableExists(ctx context.Context, schema, name string) (bool, error) {
	return odbctools.TableExists(ctx, h.db, h.dialect, schema, name)
}

func (h *handle) ReadTable(ctx context.Context, schema, name string) (*table.Table, error) {
	return odbctools.LoadTable(ctx, h.db, h.dialect, schema, name)
}

func (h *handle) InsertsFromTable(ctx context.Context, schema, name string) ([]string, error) {
	content, err := h.ReadTable(ctx, schema, name)
	if err != nil {
		return nil, err
	}
	return odbctools.InsertsFromTable(content, h.dialect.Qualify(schema, name))
}

func (h *handle) DropTable(ctx context.Context, schema, name string) error {
	_, err := h.db.ExecContext(ctx, "DROP TABLE "+h.dialect.Qualify(schema, name))
	return err
}

func (h *handle) TruncateTable(ctx context.Context, schema, name string) error {
	_, err := h.db.ExecContext(ctx, "DELETE FROM "+h.dialect.Qualify(schema, name))
	return err
}

// sql.DB pool settings shared by the server backends.
func configurePool(db *sqlx.DB, opts Options) {
	db.SetMaxOpenConns(opts.PoolSize)
	db.SetMaxIdleConns(opts.PoolSize)
	db.SetConnMaxLifetime(opts.PoolRecycle.Std())
}

func ping(ctx context.Context, db *sqlx.DB, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout.Std())
	defer cancel()
	return db.PingContext(ctx)
}
