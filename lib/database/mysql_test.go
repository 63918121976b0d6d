package database

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"libgal/lib/logging"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMySQL(t testing.TB) (Options, func(testing.TB)) {
	if os.Getenv("LIBGAL_INTEGRATION") == "" {
		t.Skip("set LIBGAL_INTEGRATION=1 to run tests against docker containers")
	}
	ctx := context.Background()

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "root",
				"MYSQL_DATABASE":      "libgal",
				"MYSQL_USER":          "libgal",
				"MYSQL_PASSWORD":      "libgal",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(2 * time.Minute),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Kind:     KindMySQL,
		Host:     host,
		Port:     port.Int(),
		User:     "libgal",
		Password: "libgal",
		Database: "libgal",
	}
	return opts, func(t testing.TB) {
		err := container.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestMySQLUpsert(t *testing.T) {
	opts, cleanup := setupMySQL(t)
	defer cleanup(t)

	ctx := context.Background()
	db, err := Open(ctx, opts, logging.Discard())
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, KindMySQL, db.Kind())

	inserted, existing, err := db.Upsert(ctx, "", "sales", sales(1, 2, 3), "id")
	require.NoError(t, err)
	require.Equal(t, 3, inserted.Len())
	require.True(t, existing.Empty())

	inserted, existing, err = db.Upsert(ctx, "", "sales", sales(3, 4), "id")
	require.NoError(t, err)
	require.Equal(t, 1, inserted.Len())
	require.Equal(t, 1, existing.Len())

	result, err := db.Query(ctx, "SELECT count(*) AS n FROM sales")
	require.NoError(t, err)
	require.EqualValues(t, 4, result.Rows[0][0])

	require.NoError(t, db.DropTable(ctx, "", "sales"))
}
