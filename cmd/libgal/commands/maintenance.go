package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"libgal/lib/database"
	"libgal/lib/fsutil"
	"libgal/lib/timezone"

	"github.com/spf13/cobra"
)

var (
	cleanDir     string
	cleanMaxDays int
	cleanDryRun  bool
	cleanODate   string
	cleanInit    bool
)

func init() {
	vacuumCmd.Flags().StringVarP(&dbProfile, "db", "d", "", "A sqlite database profile from the config.")
	rootCmd.AddCommand(vacuumCmd)

	cleanCmd.Flags().StringVar(&cleanDir, "dir", "", "Only clean this directory.")
	cleanCmd.Flags().IntVar(&cleanMaxDays, "max-days", 30, "Delete files older than this many days.")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Log what would be deleted without deleting.")
	cleanCmd.Flags().StringVar(&cleanODate, "odate", "", "Processing date (YYYYMMDD) file ages are measured from.")
	cleanCmd.Flags().BoolVar(&cleanInit, "init", false, "Create output, logs and db next to the config home and rotate them.")
	rootCmd.AddCommand(cleanCmd)
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum --db <profile> <file.db>",
	Short: "Writes a compacted copy of a sqlite database to a file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := stateFrom(ctx)
		db, err := s.open(ctx, dbProfile)
		if err != nil {
			return err
		}
		defer db.Close()

		sqlite, ok := db.(*database.SQLite)
		if !ok {
			return &database.UnsupportedError{Backend: db.Kind(), Operation: "vacuum"}
		}
		if err := sqlite.VacuumInto(ctx, args[0]); err != nil {
			return err
		}
		s.logger.Info("database written", "file", args[0])
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [--init] [--dir <path>] [--max-days <n>] [--dry-run]",
	Short: "Rotates old files out of the job directories.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := stateFrom(cmd.Context())
		m := fsutil.New(s.logger)

		now, err := timezone.ParseODate(cleanODate)
		if err != nil {
			return err
		}

		if cleanInit {
			home := s.config.Home
			if home == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				home = filepath.Join(wd, "main")
			}
			return m.InitEnv(home, now)
		}
		if cleanDir == "" {
			return fmt.Errorf("pass --dir or --init")
		}
		return m.DeleteOlderFiles(cleanDir, cleanMaxDays, cleanDryRun, now)
	},
}
