package sqlscript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"libgal/lib/logging"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecError reports the statement that stopped a script.
type ExecError struct {
	Index     int
	Statement Statement
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("statement %d failed: %s", e.Index, e.Err.Error())
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// drivers echo NUL padding from fixed width buffers into error text
func cleanDriverMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\x00", "")
}

// Execute replays the script statement by statement and stops at the first
// failure. Progress is logged every 2%.
func (s *Script) Execute(ctx context.Context, db Execer, logger *slog.Logger) error {
	logger = logging.Or(logger)
	total := len(s.statements)
	logger.Info("executing sql script", "statements", total)

	lastReported := 0
	for i, st := range s.statements {
		percent := i * 100 / total
		if percent%2 == 0 && percent != lastReported {
			logger.Info("executing sql script", "completed_percent", percent)
			lastReported = percent
		}

		var err error
		if len(st.Values) > 0 {
			_, err = db.ExecContext(ctx, st.SQL, st.Values...)
		} else {
			_, err = db.ExecContext(ctx, st.SQL)
		}
		if err != nil {
			logger.Error("sql script statement failed", "index", i, "err", cleanDriverMessage(err))
			logger.Debug("failed statement", "sql", st.SQL)
			if len(st.Values) > 0 {
				logger.Debug("failed statement values", "values", st.Values)
			}
			return &ExecError{Index: i, Statement: st, Err: err}
		}
	}
	return nil
}
