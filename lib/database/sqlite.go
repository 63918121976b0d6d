package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"libgal/lib/odbctools"
	"libgal/lib/table"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// SQLite is a single connection sqlite database, in memory unless a file is
// given. VacuumInto persists an in-memory database.
type SQLite struct {
	*handle
	path string
}

var _ DB = (*SQLite)(nil)

func OpenSQLite(path string, opts Options, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		path = memoryPath
	}
	if path != memoryPath {
		_, statErr := os.Stat(path)
		if os.IsNotExist(statErr) {
			f, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a second connection to ":memory:" would be a different database,
	// file databases serialize writers anyway
	db.SetMaxOpenConns(1)
	if path != memoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLite{
		handle: newHandle(KindSQLite, db, odbctools.SQLite, opts, logger),
		path:   path,
	}, nil
}

func (s *SQLite) InMemory() bool {
	return s.path == memoryPath
}

// VacuumInto writes a compacted copy of the database to file, replacing any
// previous copy.
func (s *SQLite) VacuumInto(ctx context.Context, file string) error {
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.logger.Info("writing database", "file", file)
	_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", file)
	return err
}

// Diff returns the rows of table a that are not in table b.
func (s *SQLite) Diff(ctx context.Context, a, b string) (*table.Table, error) {
	q := s.dialect.Quote
	return s.Query(ctx, fmt.Sprintf("SELECT * FROM %s EXCEPT SELECT * FROM %s", q(a), q(b)))
}

// CreateTableLike creates an empty table with the columns of source.
func (s *SQLite) CreateTableLike(ctx context.Context, source, name string) error {
	q := s.dialect.Quote
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE 0", q(name), q(source)))
	return err
}

func (s *SQLite) TableColumns(ctx context.Context, name string) ([]string, error) {
	info, err := s.Query(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", name)
	if err != nil {
		return nil, err
	}
	if info.Empty() {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	columns := make([]string, 0, info.Len())
	for _, row := range info.Rows {
		columns = append(columns, fmt.Sprint(row[0]))
	}
	return columns, nil
}

func (s *SQLite) KeyExists(ctx context.Context, name, field string, key any) (bool, error) {
	return odbctools.KeyExists(ctx, s.db, s.dialect, name, field, key)
}

func (s *SQLite) objects(ctx context.Context, kind string) ([]string, error) {
	result, err := s.Query(ctx, "SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%' ORDER BY name", kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, result.Len())
	for _, row := range result.Rows {
		names = append(names, fmt.Sprint(row[0]))
	}
	return names, nil
}

func (s *SQLite) Tables(ctx context.Context) ([]string, error) {
	return s.objects(ctx, "table")
}

func (s *SQLite) Views(ctx context.Context) ([]string, error) {
	return s.objects(ctx, "view")
}

func (s *SQLite) dropAll(ctx context.Context, kind string) error {
	names, err := s.objects(ctx, strings.ToLower(kind))
	if err != nil {
		return err
	}
	for _, name := range names {
		s.logger.Debug("dropping", "type", kind, "name", name)
		if _, err := s.db.ExecContext(ctx, "DROP "+kind+" "+s.dialect.Quote(name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) DropTables(ctx context.Context) error {
	return s.dropAll(ctx, "TABLE")
}

func (s *SQLite) DropViews(ctx context.Context) error {
	return s.dropAll(ctx, "VIEW")
}
