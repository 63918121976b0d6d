package env

import (
	"os"
	"path/filepath"
	"testing"

	"libgal/lib/logging"

	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIBGAL_TEST_A=one\nLIBGAL_TEST_B=\"two words\"\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LIBGAL_TEST_A")
		os.Unsetenv("LIBGAL_TEST_B")
	})

	vars, err := Load(path, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, "one", vars["LIBGAL_TEST_A"])
	require.Equal(t, "two words", vars["LIBGAL_TEST_B"])
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	t.Setenv("LIBGAL_TEST_C", "inherited")

	vars, err := Load(filepath.Join(t.TempDir(), "missing.env"), logging.Discard())
	require.NoError(t, err)
	require.Equal(t, "inherited", vars["LIBGAL_TEST_C"])
}

func TestLoadKeepsProcessValues(t *testing.T) {
	t.Setenv("LIBGAL_TEST_D", "process")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIBGAL_TEST_D=file\n"), 0o600))

	vars, err := Load(path, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, "process", vars["LIBGAL_TEST_D"])
}
