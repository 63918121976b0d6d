// Package fsutil keeps a job's working directories in shape: it creates
// them, opens up their permissions and rotates old files out.
package fsutil

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"libgal/lib/logging"
)

const (
	OutputDir = "output"
	LogsDir   = "logs"
	DBDir     = "db"

	// PublicMode is applied to every file under the output directories.
	PublicMode os.FileMode = 0o664
)

// OutputDirs are cleaned on every InitEnv, DBDir is not.
var OutputDirs = []string{OutputDir, LogsDir}

const day = 24 * time.Hour

// Manager runs the maintenance operations, logging every action.
type Manager struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) Manager {
	return Manager{logger: logging.Or(logger)}
}

func (m Manager) files(path string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e)
		}
	}
	return files, nil
}

func (m Manager) remove(path string, dryRun bool, args ...any) {
	m.logger.Info("deleting file", append([]any{"path", path}, args...)...)
	if dryRun {
		m.logger.Info("dry run, skipping", "path", path)
		return
	}
	if err := os.Remove(path); err != nil {
		m.logger.Error("failed to delete file", "path", path, "err", err)
	}
}

// DeleteOlderFiles removes the regular files in path last modified more than
// maxDays before now. A zero now means the current time.
func (m Manager) DeleteOlderFiles(path string, maxDays int, dryRun bool, now time.Time) error {
	if now.IsZero() {
		now = time.Now()
	}
	files, err := m.files(path)
	if err != nil {
		return err
	}
	maxAge := time.Duration(maxDays) * day
	for _, f := range files {
		info, err := f.Info()
		if err != nil {
			m.logger.Error("failed to stat file", "path", f.Name(), "err", err)
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= maxAge {
			continue
		}
		m.remove(filepath.Join(path, f.Name()), dryRun, "age_days", int(math.Round(age.Hours()/24)))
	}
	return nil
}

// DeleteFiles removes every regular file in path.
func (m Manager) DeleteFiles(path string, dryRun bool) error {
	files, err := m.files(path)
	if err != nil {
		return err
	}
	for _, f := range files {
		m.remove(filepath.Join(path, f.Name()), dryRun)
	}
	return nil
}

func (m Manager) CreateDirs(dirs ...string) error {
	for _, dir := range dirs {
		m.logger.Info("creating directory", "path", dir)
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return err
		}
	}
	return nil
}

// ChangeToPublicPermissions sets PublicMode on the regular files in path.
func (m Manager) ChangeToPublicPermissions(path string) error {
	files, err := m.files(path)
	if err != nil {
		return err
	}
	for _, f := range files {
		file := filepath.Join(path, f.Name())
		m.logger.Info("changing permissions", "path", file, "mode", fmt.Sprintf("%#o", PublicMode))
		if err := os.Chmod(file, PublicMode); err != nil {
			m.logger.Error("failed to change permissions", "path", file, "err", err)
		}
	}
	return nil
}

// CreateOutputDirs creates output, logs and db next to home, which is the
// path of the job's entry point, and opens up their permissions.
func (m Manager) CreateOutputDirs(home string) error {
	var errs []error
	for _, dir := range outputPaths(home) {
		if err := m.CreateDirs(dir); err != nil {
			return err
		}
		errs = append(errs, m.ChangeToPublicPermissions(dir))
	}
	return errors.Join(errs...)
}

// InitEnv prepares the directories next to home, expires log and output
// files older than 90 days and empties output.
func (m Manager) InitEnv(home string, now time.Time) error {
	if err := m.CreateOutputDirs(home); err != nil {
		return err
	}
	base := filepath.Dir(home)
	for _, dir := range OutputDirs {
		if err := m.DeleteOlderFiles(filepath.Join(base, dir), 90, false, now); err != nil {
			return err
		}
	}
	return m.DeleteFiles(filepath.Join(base, OutputDir), false)
}

func outputPaths(home string) []string {
	base := filepath.Dir(home)
	dirs := append(append([]string{}, OutputDirs...), DBDir)
	for i, dir := range dirs {
		dirs[i] = filepath.Join(base, dir)
	}
	return dirs
}
