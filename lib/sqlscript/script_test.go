package sqlscript

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"libgal/lib/logging"
	"libgal/lib/table"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func people() *table.Table {
	t := table.New("PartyId", "name", "born", "score")
	t.Rows = [][]any{
		{1.0, " O'Brien ", time.Date(1990, 5, 1, 13, 0, 0, 0, time.UTC), 2.5},
		{2.0, "ana", time.Date(1985, 1, 2, 0, 0, 0, 0, time.UTC), math.NaN()},
		{3.0, "luis", nil, 7.0},
	}
	return t
}

func TestRenderInsertBatch(t *testing.T) {
	script := New()
	require.NoError(t, script.InsertBatch(people(), "p_staging", "people"))

	rendered := script.Render()
	expected := []string{
		"INSERT INTO p_staging.people (PartyId, name, born, score) VALUES (1, 'OBrien', '1990-05-01', 2.5);",
		"INSERT INTO p_staging.people (PartyId, name, born, score) VALUES (2, 'ana', '1985-01-02', NULL);",
		"INSERT INTO p_staging.people (PartyId, name, born, score) VALUES (3, 'luis', NULL, 7);",
	}
	if diff := cmp.Diff(expected, rendered); diff != "" {
		t.Fatalf("rendered script mismatch (-want +got):\n%s", diff)
	}
	for _, sql := range rendered {
		require.True(t, strings.HasSuffix(sql, ";"))
	}

	statements := script.Statements()
	require.Len(t, statements, 3)
	require.Equal(t, "INSERT INTO p_staging.people (PartyId, name, born, score) VALUES (?,?,?,?);", statements[0].SQL)
	require.Equal(t, []any{int64(1), "OBrien", "1990-05-01", 2.5}, statements[0].Values)
}

func TestRenderPreservesOrder(t *testing.T) {
	tbl := table.New("id")
	for i := 0; i < 50; i++ {
		require.NoError(t, tbl.AddRow(int64(i)))
	}

	script := New()
	script.BeginTransaction()
	require.NoError(t, script.InsertBatch(tbl, "", "t"))
	script.EndTransaction()

	rendered := script.Render()
	require.Len(t, rendered, 52)
	require.Equal(t, "BEGIN TRANSACTION;", rendered[0])
	require.Equal(t, "END TRANSACTION;", rendered[51])
	for i := 0; i < 50; i++ {
		require.Equal(t, "INSERT INTO t (id) VALUES ("+strconv.Itoa(i)+");", rendered[i+1])
	}
}

func TestDeleteStatements(t *testing.T) {
	tbl := table.New("pk")
	tbl.Rows = [][]any{{"a"}, {"b"}, {"a"}}

	script := New()
	require.NoError(t, script.DeleteByIndex(tbl, "s", "t", "pk"))
	script.DeleteByTable("s", "t", "stg", "t_stg", "pk")
	script.InsertFromTable("stg", "t_stg", "s", "t")
	script.DropTable("stg", "t_stg")
	script.AddStatement("COLLECT STATISTICS ON s.t COLUMN pk;")

	require.Equal(t, []string{
		"DELETE FROM s.t WHERE pk IN ('a', 'b');",
		"DELETE FROM s.t WHERE pk IN (SEL pk FROM stg.t_stg);",
		"INSERT INTO s.t SELECT * FROM stg.t_stg;",
		"DROP TABLE stg.t_stg;",
		"COLLECT STATISTICS ON s.t COLUMN pk;",
	}, script.Render())

	require.Error(t, script.DeleteByIndex(tbl, "s", "t", "missing"))
}

func TestStatementsIsACopy(t *testing.T) {
	script := New()
	script.AddStatement("SELECT 1;")
	copied := script.Statements()
	copied[0].SQL = "changed"
	require.Equal(t, "SELECT 1;", script.Statements()[0].SQL)
}

func TestExecute(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE people (PartyId INTEGER, name TEXT, born TEXT, score REAL)")
	require.NoError(t, err)

	script := New()
	require.NoError(t, script.InsertBatch(people(), "", "people"))

	ctx := context.Background()
	require.NoError(t, script.Execute(ctx, db, logging.Discard()))

	var count int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM people WHERE score IS NULL").Scan(&count))
	require.Equal(t, 1, count)

	broken := New()
	broken.AddStatement("INSERT INTO missing VALUES (1);")
	err = broken.Execute(ctx, db, logging.Discard())
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, 0, execErr.Index)
}
