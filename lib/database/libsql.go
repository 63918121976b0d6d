package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"libgal/lib/logging"
	"libgal/lib/odbctools"

	"github.com/jmoiron/sqlx"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// LibSQL is a remote sqlite database served by libSQL (turso). It shares
// the sqlite dialect.
type LibSQL struct {
	*handle
}

var _ DB = (*LibSQL)(nil)

func OpenLibSQL(ctx context.Context, opts Options, logger *slog.Logger) (*LibSQL, error) {
	opts = opts.withDefaults()
	logger = logging.Or(logger)
	if opts.URL == "" {
		return nil, errors.New("libsql: a database url was not specified")
	}

	db, err := sqlx.Open("libsql", opts.URL)
	if err != nil {
		return nil, err
	}
	configurePool(db, opts)
	if err := ping(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to libsql: %w", err)
	}
	return &LibSQL{handle: newHandle(KindLibSQL, db, odbctools.SQLite, opts, logger)}, nil
}
