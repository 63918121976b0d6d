package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"libgal/lib/configutil"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (dir, config string) {
	t.Helper()
	dir = t.TempDir()
	config = filepath.Join(dir, "libgal.json5")
	require.NoError(t, os.WriteFile(config, []byte(fmt.Sprintf(`{
	// profiles for the tests
	log: { format: "csv", level: "error" },
	databases: {
		local: { kind: "sqlite", file: %q },
	},
}`, filepath.Join(dir, "local.db"))), 0o600))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(
		"id,item,amount\n1,mate,10.5\n2,yerba,\n3,termo,30\n",
	), 0o600))
	return dir, config
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestUpsertAndQuery(t *testing.T) {
	dir, config := writeConfig(t)
	env := filepath.Join(dir, ".env")
	csv := filepath.Join(dir, "sales.csv")

	run(t, "upsert", "--config", config, "--env", env, "--db", "local", "--pk", "id", csv, "sales")
	run(t, "upsert", "--config", config, "--env", env, "--db", "local", "--pk", "id", csv, "sales")

	out := run(t, "query", "--config", config, "--env", env, "--db", "local", "SELECT count(*) AS n FROM sales")
	require.Regexp(t, `│ 3\s+│`, out)

	out = run(t, "inserts", "--config", config, "--env", env, "--db", "local", "sales")
	require.Contains(t, out, `INSERT INTO "sales" (id, item, amount) VALUES (2, 'yerba', NULL);`)
}

func TestProfileSelection(t *testing.T) {
	cfg := Config{}
	_, err := cfg.profile("dw")
	require.ErrorContains(t, err, `unknown database profile "dw"`)
}

func TestLogConfigOverride(t *testing.T) {
	c := LogConfig{Format: "CSV", AppName: "job"}.override("", "debug", "")
	require.Equal(t, LogConfig{Format: "CSV", Level: "debug", AppName: "job"}, c)

	c = LogConfig{}.override("", "", "")
	require.Equal(t, "JSON", c.Format)
	require.Equal(t, "libgal", c.AppName)

	_, err := LogConfig{Format: "xml"}.options()
	require.Error(t, err)
}

func TestMasked(t *testing.T) {
	require.Equal(t, "********", masked("TD_PASSWORD", "secret"))
	require.Equal(t, "", masked("TD_PASSWORD", ""))
	require.Equal(t, "tdprod", masked("TD_HOST", "tdprod"))
}

func TestConfigDurations(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "libgal.json5")
	require.NoError(t, os.WriteFile(config, []byte(`{
	databases: {
		dw: { kind: "teradata", host: "tdprod", retry: { attempts: 10, interval: "20s" } },
	},
}`), 0o600))
	require.NoError(t, os.WriteFile(configutil.LocalPath(config), []byte(`{
	databases: {
		dw: { kind: "teradata", host: "tdprod", connect_timeout: 5, retry: { attempts: 10, interval: "1m" } },
	},
}`), 0o600))

	cfg, err := configutil.ReadConfig[Config](config)
	require.NoError(t, err)
	opts, err := cfg.profile("dw")
	require.NoError(t, err)
	require.Equal(t, time.Minute, opts.Retry.Interval.Std())
	require.Equal(t, 5*time.Second, opts.ConnectTimeout.Std())
	require.Equal(t, 10, opts.Retry.Attempts)
}
