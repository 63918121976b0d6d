package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"libgal/lib/logging"
	"libgal/lib/odbctools"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const defaultPostgresPort = 5432

type Postgres struct {
	*handle
	pool *pgxpool.Pool
}

var _ DB = (*Postgres)(nil)

// postgresURL returns opts.URL when set, otherwise a url built from the
// host options.
func postgresURL(opts Options) string {
	if opts.URL != "" {
		return opts.URL
	}
	port := opts.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(opts.User, opts.Password),
		Host:   net.JoinHostPort(opts.Host, strconv.Itoa(port)),
		Path:   "/" + opts.Database,
	}
	return u.String()
}

func OpenPostgres(ctx context.Context, opts Options, logger *slog.Logger) (*Postgres, error) {
	opts = opts.withDefaults()
	logger = logging.Or(logger)

	poolConfig, err := pgxpool.ParseConfig(postgresURL(opts))
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolConfig.MaxConns = int32(opts.PoolSize)
	poolConfig.MaxConnLifetime = opts.PoolRecycle.Std()
	poolConfig.ConnConfig.ConnectTimeout = opts.ConnectTimeout.Std()

	logger.Info("connecting to postgres", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	return &Postgres{
		handle: newHandle(KindPostgres, db, odbctools.Postgres, opts, logger),
		pool:   pool,
	}, nil
}

func (p *Postgres) Close() error {
	err := p.handle.Close()
	p.pool.Close()
	return err
}
