package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"libgal/lib/logging"
	"libgal/lib/odbctools"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const defaultMySQLPort = 3306

type MySQL struct {
	*handle
}

var _ DB = (*MySQL)(nil)

func mysqlConfig(opts Options) *mysql.Config {
	port := opts.Port
	if port == 0 {
		port = defaultMySQLPort
	}
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(port))
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	cfg.Timeout = opts.ConnectTimeout.Std()
	return cfg
}

func OpenMySQL(ctx context.Context, opts Options, logger *slog.Logger) (*MySQL, error) {
	opts = opts.withDefaults()
	logger = logging.Or(logger)

	cfg := mysqlConfig(opts)
	logger.Info("connecting to mysql", "addr", cfg.Addr, "user", cfg.User, "database", cfg.DBName)
	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	configurePool(db, opts)
	if err := ping(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to mysql %s: %w", cfg.Addr, err)
	}
	return &MySQL{handle: newHandle(KindMySQL, db, odbctools.MySQL, opts, logger)}, nil
}
