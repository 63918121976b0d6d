package env

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"libgal/lib/logging"

	"github.com/joho/godotenv"
)

// Load reads variables from a .env file into the process environment when
// the file exists and returns the resulting environment. Variables already
// set in the process are not overridden. A missing file is not an error,
// the process environment is returned as is.
func Load(path string, logger *slog.Logger) (map[string]string, error) {
	logger = logging.Or(logger)

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := godotenv.Load(path); err != nil {
				return nil, err
			}
			logger.Debug("loaded environment file", "path", path)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("environment file not found, using system environment", "path", path)
		default:
			return nil, err
		}
	}

	return Environ(), nil
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
