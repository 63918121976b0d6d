package database

import (
	"context"
	"fmt"
	"errors"
	"log/slog"
	"regexp"

	"libgal/lib/odbctools"
	"libgal/lib/table"

	"github.com/alexbrainman/odbc"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var fastloadAttempts, _ = otel.Meter("libgal/lib/database").Int64Counter(
	"libgal.fastload_attempts",
	metric.WithDescription("Bulk load attempts, including retries."),
)

// Teradata reports a table locked by a running or aborted load with
// error 2663, the load succeeds once the lock is released.
const fastloadLockedCode = 2663

// fastloadLockedMessage matches the code as the driver prints it, as in
// "[Error 2663]" or "(-2663)". Table names holding the digits do not match.
var fastloadLockedMessage = regexp.MustCompile(`(?i)\berror[\s:#\[]*-?2663\b|\(-?2663\)`)

// BulkLoader writes a table into Teradata, creating the destination with pk
// as primary index when it does not exist.
type BulkLoader interface {
	Load(ctx context.Context, db *sqlx.DB, t *table.Table, schema, name, pk string) error
}

// BatchLoader loads through batched prepared inserts on the ODBC session.
type BatchLoader struct {
	BatchRows int
	Logger    *slog.Logger
}

func (l BatchLoader) Load(ctx context.Context, db *sqlx.DB, t *table.Table, schema, name, pk string) error {
	return odbctools.Insert(ctx, db, odbctools.Teradata, schema, name, t, odbctools.InsertOptions{
		BatchRows:  l.BatchRows,
		PrimaryKey: pk,
		Logger:     l.Logger,
	})
}

// Fastload bulk loads t into schema.name. It needs a session default
// database, set through Options.Database or UseDB.
func (t *Teradata) Fastload(ctx context.Context, tbl *table.Table, schema, name, pk string) error {
	if t.database == "" {
		return fmt.Errorf("%w: fastload requires a default database", ErrDatabase)
	}
	ctx, span := tracer.Start(ctx, "database.Fastload")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.table", t.dialect.Qualify(schema, name)),
		attribute.Int("rows", tbl.Len()),
	)

	if fastloadAttempts != nil {
		fastloadAttempts.Add(ctx, 1)
	}
	if err := t.loader.Load(ctx, t.db, tbl, schema, name, pk); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// isFastloadLocked classifies the driver error only. Wrapping layers add
// table and statement text that may contain any digits.
func isFastloadLocked(err error) bool {
	if err == nil {
		return false
	}
	var odbcErr *odbc.Error
	if errors.As(err, &odbcErr) {
		for _, d := range odbcErr.Diag {
			if d.NativeError == fastloadLockedCode || d.NativeError == -fastloadLockedCode {
				return true
			}
		}
		return false
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		if inner := x.Unwrap(); inner != nil {
			return isFastloadLocked(inner)
		}
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if isFastloadLocked(inner) {
				return true
			}
		}
		return false
	}
	return fastloadLockedMessage.MatchString(err.Error())
}

// RetryFastload runs Fastload, sleeping the retry interval and trying again
// while the load fails with error 2663. Any other error is returned at once.
// When every attempt hits the lock an error wrapping ErrDatabase is returned.
func (t *Teradata) RetryFastload(ctx context.Context, tbl *table.Table, schema, name, pk string) error {
	policy := t.retry.withDefaults()

	attempts := 0
	operation := func() error {
		attempts++
		err := t.Fastload(ctx, tbl, schema, name, pk)
		if err == nil || isFastloadLocked(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval.Std()), uint64(policy.Attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(operation, b, t.notify)
	if err == nil {
		return nil
	}
	if isFastloadLocked(err) {
		t.logger.Error("fastload retries exhausted", "table", t.dialect.Qualify(schema, name), "attempts", attempts)
		return fmt.Errorf("%w: fastload into %s failed after %d attempts: %w",
			ErrDatabase, t.dialect.Qualify(schema, name), attempts, err)
	}
	return err
}
