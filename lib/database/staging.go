package database

import (
	"context"
	"fmt"
	"strings"

	"libgal/lib/sqlscript"
	"libgal/lib/table"

	"github.com/google/uuid"
)

func (t *Teradata) stagingTarget(schema, name string, opts StagingOptions) (string, string) {
	stgSchema := opts.StagingSchema
	if stgSchema == "" {
		stgSchema = schema
	}
	stgName := opts.StagingName
	if stgName == "" {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		stgName = fmt.Sprintf("stg_%s_%s", name, id[:8])
	}
	return stgSchema, stgName
}

// loadStaging replaces the staging table with the content of tbl and makes
// sure the destination exists with the staging table definition.
func (t *Teradata) loadStaging(ctx context.Context, tbl *table.Table, schema, name, stgSchema, stgName, pk string) error {
	exists, err := t.TableExists(ctx, stgSchema, stgName)
	if err != nil {
		return err
	}
	if exists {
		t.logger.Info("dropping previous staging table", "table", t.dialect.Qualify(stgSchema, stgName))
		if err := t.DropTable(ctx, stgSchema, stgName); err != nil {
			return err
		}
	}

	t.logger.Info("loading staging table", "table", t.dialect.Qualify(stgSchema, stgName), "rows", tbl.Len())
	if err := t.RetryFastload(ctx, tbl, stgSchema, stgName, pk); err != nil {
		return err
	}

	exists, err = t.TableExists(ctx, schema, name)
	if err != nil {
		return err
	}
	if !exists {
		t.logger.Info("creating destination from staging", "table", t.dialect.Qualify(schema, name))
		return t.CreateTableLike(ctx, schema, name, stgSchema, stgName)
	}
	return nil
}

// dropStaging runs on every exit once a staging name is chosen, including
// failed or cancelled loads, so it ignores cancellation of ctx.
func (t *Teradata) dropStaging(ctx context.Context, stgSchema, stgName string) {
	if err := t.DropTable(context.WithoutCancel(ctx), stgSchema, stgName); err != nil {
		t.logger.Warn("could not drop staging table", "table", t.dialect.Qualify(stgSchema, stgName), "err", err)
	}
}

// StagingInsert loads tbl into a staging table and copies the rows whose pk
// is not yet in schema.name with a single INSERT ... SELECT. The staging
// table is dropped afterwards, also when loading or merging fails.
func (t *Teradata) StagingInsert(ctx context.Context, tbl *table.Table, schema, name, pk string, opts StagingOptions) error {
	if tbl.Empty() {
		t.logger.Info("nothing to stage", "table", t.dialect.Qualify(schema, name))
		return nil
	}
	if _, err := tbl.Index(pk); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "database.StagingInsert")
	defer span.End()

	stgSchema, stgName := t.stagingTarget(schema, name, opts)
	defer t.dropStaging(ctx, stgSchema, stgName)
	if err := t.loadStaging(ctx, tbl, schema, name, stgSchema, stgName, pk); err != nil {
		span.RecordError(err)
		return err
	}

	dest := t.dialect.Qualify(schema, name)
	stg := t.dialect.Qualify(stgSchema, stgName)
	key := t.dialect.Quote(pk)
	merge := fmt.Sprintf(
		"INSERT INTO %s SELECT s.* FROM %s s LEFT JOIN %s d ON s.%s = d.%s WHERE d.%s IS NULL;",
		dest, stg, dest, key, key, key,
	)
	t.logger.Info("merging staging table", "from", stg, "into", dest)
	if _, err := t.db.ExecContext(ctx, merge); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: merge %s into %s: %w", ErrDatabase, stg, dest, err)
	}
	return nil
}

// StagingUpsert replaces the rows of schema.name sharing a pk with tbl. The
// delete and the insert run inside one BT/ET transaction.
func (t *Teradata) StagingUpsert(ctx context.Context, tbl *table.Table, schema, name, pk string, opts StagingOptions) error {
	if tbl.Empty() {
		t.logger.Info("nothing to stage", "table", t.dialect.Qualify(schema, name))
		return nil
	}
	if _, err := tbl.Index(pk); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "database.StagingUpsert")
	defer span.End()

	stgSchema, stgName := t.stagingTarget(schema, name, opts)
	defer t.dropStaging(ctx, stgSchema, stgName)
	if err := t.loadStaging(ctx, tbl, schema, name, stgSchema, stgName, pk); err != nil {
		span.RecordError(err)
		return err
	}

	script := sqlscript.New()
	script.BeginTransaction()
	script.DeleteByTable(schema, name, stgSchema, stgName, pk)
	script.InsertFromTable(stgSchema, stgName, schema, name)
	script.EndTransaction()
	return t.ExecScript(ctx, script)
}
