package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	f, err = ParseFormat(" CSV ")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	_, err = ParseFormat("None")
	require.True(t, errors.Is(err, ErrInvalidFormat))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Format: FormatJSON, Name: "tests"})
	require.NoError(t, err)

	logger.Info("Test INFO json", "rows", 3)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	require.Equal(t, "tests", record["name"])
	require.Equal(t, "INFO", record["level"])
	require.Equal(t, "Test INFO json", record["message"])
	require.Equal(t, float64(3), record["rows"])

	_, err = time.Parse(TimeLayout, record["time"].(string))
	require.NoError(t, err)
}

func TestJSONKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Format: FormatJSON, Name: "etl"})
	require.NoError(t, err)

	logger.With("table", "dw.sales").WithGroup("load").Warn(`quoted "rows"`, "rows", 2)
	logger.Error("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.Regexp(t, `^\{"time":"[^"]+","name":"etl","level":"[A-Z]+","message":`, line)
		require.True(t, json.Valid([]byte(line)), line)
	}
	require.True(t, strings.HasSuffix(lines[0], `"message":"quoted \"rows\"","table":"dw.sales","load":{"rows":2}}`), lines[0])
	require.True(t, strings.HasSuffix(lines[1], `"level":"ERROR","message":"plain"}`), lines[1])
}

func TestCSVFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Format: FormatCSV, Name: "tests", Level: slog.LevelDebug})
	require.NoError(t, err)

	logger.With("table", "t1").Warn("loaded; done", "rows", 2)
	logger.WithGroup("db").Debug("query", "sql", "select 1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	fields := strings.Split(lines[0], ";")
	require.Len(t, fields, 4)
	require.Equal(t, "tests", fields[1])
	require.Equal(t, "WARNING", fields[2])
	require.Equal(t, "loaded, done table=t1 rows=2", fields[3])

	fields = strings.Split(lines[1], ";")
	require.Len(t, fields, 4)
	require.Equal(t, "DEBUG", fields[2])
	require.Equal(t, "query db.sql=select 1", fields[3])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(nil, Options{Format: Format(42)})
	require.True(t, errors.Is(err, ErrInvalidFormat))
}
