package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"libgal/lib/logging"
	"libgal/lib/odbctools"
	"libgal/lib/sqlscript"
	"libgal/lib/table"

	_ "github.com/alexbrainman/odbc"
	"github.com/jmoiron/sqlx"
	"gopkg.in/ini.v1"
)

// Teradata talks to Teradata through the installed ODBC driver. Every
// statement runs on one session so DATABASE and BT/ET behave as they do in
// BTEQ.
type Teradata struct {
	*handle
	database string
	loader   BulkLoader
	retry    RetryPolicy
	// called before every retry sleep, tests use it to count attempts
	notify func(err error, wait time.Duration)
}

var (
	_ DB     = (*Teradata)(nil)
	_ Stager = (*Teradata)(nil)
)

// odbcinst.ini sections that are not drivers
var odbcinstReserved = map[string]bool{
	ini.DefaultSection: true,
	"ODBC":             true,
	"ODBC Drivers":     true,
}

func odbcinstPaths() []string {
	var paths []string
	if dir := os.Getenv("ODBCSYSINI"); dir != "" {
		paths = append(paths, filepath.Join(dir, "odbcinst.ini"))
	}
	if file := os.Getenv("ODBCINSTINI"); file != "" {
		if filepath.IsAbs(file) {
			paths = append(paths, file)
		} else if dir := os.Getenv("ODBCSYSINI"); dir != "" {
			paths = append(paths, filepath.Join(dir, file))
		}
	}
	paths = append(paths, "/etc/odbcinst.ini", "/usr/local/etc/odbcinst.ini")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".odbcinst.ini"))
	}
	return paths
}

// Drivers lists the ODBC drivers registered in the odbcinst.ini files found
// on the system, in file order without duplicates.
func Drivers(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = odbcinstPaths()
	}
	seen := map[string]bool{}
	var drivers []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, section := range cfg.Sections() {
			name := section.Name()
			if odbcinstReserved[name] || seen[name] {
				continue
			}
			seen[name] = true
			drivers = append(drivers, name)
		}
	}
	return drivers, nil
}

// FindDriver returns the first driver whose name contains want, ignoring case.
func FindDriver(drivers []string, want string) (string, error) {
	for _, d := range drivers {
		if strings.Contains(strings.ToLower(d), strings.ToLower(want)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: no driver matching %q among %v", ErrDriverNotFound, want, drivers)
}

// ConnectionString builds the ODBC connection string for a Teradata host.
func ConnectionString(driver string, opts Options) string {
	link := fmt.Sprintf("DRIVER={%s};DBCNAME=%s;UID=%s;PWD=%s", driver, opts.Host, opts.User, opts.Password)
	if strings.Contains(strings.ToLower(opts.Logmech), "ldap") {
		link = "AUTHENTICATION=LDAP;" + link
	}
	return link
}

func OpenTeradata(ctx context.Context, opts Options, logger *slog.Logger) (*Teradata, error) {
	opts = opts.withDefaults()
	logger = logging.Or(logger)

	drivers, err := Drivers()
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		logger.Error("no odbc drivers installed")
		return nil, fmt.Errorf("%w: no odbc drivers installed", ErrDriverNotFound)
	}
	logger.Info("odbc drivers found", "drivers", drivers)
	driver, err := FindDriver(drivers, opts.Driver)
	if err != nil {
		return nil, err
	}

	logger.Info("connecting to teradata", "host", opts.Host, "user", opts.User, "driver", driver, "charset", opts.Charset)
	db, err := sqlx.Open("odbc", ConnectionString(driver, opts))
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to teradata %s: %w", opts.Host, err)
	}

	td := NewTeradata(db, opts, logger)
	if opts.Database != "" {
		if err := td.UseDB(ctx, opts.Database); err != nil {
			db.Close()
			return nil, err
		}
	}
	return td, nil
}

// NewTeradata wraps an open connection. opts.Database is taken as the
// session default without issuing DATABASE.
func NewTeradata(db *sqlx.DB, opts Options, logger *slog.Logger) *Teradata {
	opts = opts.withDefaults()
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(opts.PoolRecycle.Std())

	h := newHandle(KindTeradata, db, odbctools.Teradata, opts, logger)
	return &Teradata{
		handle:   h,
		database: opts.Database,
		loader:   BatchLoader{BatchRows: opts.BatchRows, Logger: h.logger},
		retry:    opts.Retry,
		notify: func(err error, wait time.Duration) {
			h.logger.Warn("fastload locked, retrying", "wait", wait, "err", err)
		},
	}
}

func (t *Teradata) SetBulkLoader(loader BulkLoader) {
	t.loader = loader
}

// Database returns the session default database, empty when none was set.
func (t *Teradata) Database() string {
	return t.database
}

func (t *Teradata) UseDB(ctx context.Context, database string) error {
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("DATABASE %s;", database)); err != nil {
		return err
	}
	t.database = database
	return nil
}

func (t *Teradata) CurrentDate(ctx context.Context) (time.Time, error) {
	result, err := t.Query(ctx, "SELECT CURRENT_DATE;")
	if err != nil {
		return time.Time{}, err
	}
	if result.Empty() {
		return time.Time{}, fmt.Errorf("current date: empty result")
	}
	switch v := result.Rows[0][0].(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.DateOnly, strings.TrimSpace(v))
	default:
		return time.Time{}, fmt.Errorf("current date: unexpected value %v (%T)", v, v)
	}
}

// ShowTables lists the tables of database whose name starts with prefix.
func (t *Teradata) ShowTables(ctx context.Context, database, prefix string) (*table.Table, error) {
	return t.Query(ctx, `SELECT DatabaseName, TableName, CreateTimeStamp, LastAlterTimeStamp
FROM DBC.TablesV
WHERE TableKind = 'T'
AND lower(DatabaseName) = ?
AND TableName LIKE ?
ORDER BY TableName;`, strings.ToLower(database), strings.ToLower(prefix)+"%")
}

func (t *Teradata) DropTable(ctx context.Context, schema, name string) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s;", t.dialect.Qualify(schema, name)))
	return err
}

func (t *Teradata) TruncateTable(ctx context.Context, schema, name string) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s ALL;", t.dialect.Qualify(schema, name)))
	return err
}

// CreateTableLike copies the definition of schemaOrig.nameOrig.
func (t *Teradata) CreateTableLike(ctx context.Context, schema, name, schemaOrig, nameOrig string) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE %s AS %s WITH NO DATA;",
		t.dialect.Qualify(schema, name), t.dialect.Qualify(schemaOrig, nameOrig),
	))
	return err
}

// ExecScript replays a script on the session. Failures wrap ErrDatabase.
func (t *Teradata) ExecScript(ctx context.Context, script *sqlscript.Script) error {
	ctx, span := tracer.Start(ctx, "database.ExecScript")
	defer span.End()

	if err := script.Execute(ctx, t.db, t.logger); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	return nil
}
