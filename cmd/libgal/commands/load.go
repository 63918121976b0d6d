package commands

import (
	"fmt"
	"os"
	"strings"

	"libgal/lib/database"
	"libgal/lib/table"
	"libgal/lib/textutil"

	"github.com/spf13/cobra"
)

var (
	loadSchema     string
	loadPK         string
	csvSeparator   string
	powercenter    bool
	replaceRows    bool
	stagingSchema  string
	stagingName    string
	stagingReplace bool
)

func init() {
	for _, cmd := range []*cobra.Command{upsertCmd, stageCmd, insertsCmd} {
		cmd.Flags().StringVarP(&dbProfile, "db", "d", "", "The database profile from the config.")
		cmd.Flags().StringVarP(&loadSchema, "schema", "s", "", "The schema (database) of the destination table.")
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{upsertCmd, stageCmd} {
		cmd.Flags().StringVar(&loadPK, "pk", "", "The primary key column.")
		cmd.Flags().StringVar(&csvSeparator, "sep", ",", "The CSV field separator.")
		cmd.Flags().BoolVar(&powercenter, "powercenter", false, "Strip characters PowerCenter cannot read from text cells.")
		cmd.MarkFlagRequired("pk")
	}
	upsertCmd.Flags().BoolVar(&replaceRows, "replace", false, "Replace rows whose key already exists instead of keeping them.")
	stageCmd.Flags().StringVar(&stagingSchema, "staging-schema", "", "Where the staging table is created, defaults to --schema.")
	stageCmd.Flags().StringVar(&stagingName, "staging-name", "", "The staging table name, generated when empty.")
	stageCmd.Flags().BoolVar(&stagingReplace, "upsert", false, "Replace existing keys instead of only inserting new ones.")
}

func readCSV(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if len([]rune(csvSeparator)) != 1 {
		return nil, fmt.Errorf("the separator must be a single character, got %q", csvSeparator)
	}
	t, err := table.ReadCSV(f, []rune(csvSeparator)[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if powercenter {
		t = textutil.PowercenterCompatTable(t)
	}
	return t, nil
}

var upsertCmd = &cobra.Command{
	Use:   "upsert --db <profile> --pk <column> <file.csv> <table>",
	Short: "Inserts the rows of a CSV whose key is not yet in the table.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := stateFrom(ctx)

		t, err := readCSV(args[0])
		if err != nil {
			return err
		}
		db, err := s.open(ctx, dbProfile)
		if err != nil {
			return err
		}
		defer db.Close()

		if replaceRows {
			if err := db.Replace(ctx, loadSchema, args[1], t, loadPK); err != nil {
				return err
			}
			s.logger.Info("rows replaced", "table", args[1], "rows", t.Len())
			return nil
		}

		inserted, existing, err := db.Upsert(ctx, loadSchema, args[1], t, loadPK)
		if err != nil {
			return err
		}
		s.logger.Info("upsert done", "table", args[1], "inserted", inserted.Len(), "existing", existing.Len())
		return nil
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage --db <profile> --pk <column> <file.csv> <table>",
	Short: "Loads a CSV into a staging table and merges it into the destination.",
	Long: strings.TrimSpace(`
Loads a CSV into a staging table and merges it into the destination.
Only backends with staging support (Teradata) accept this command. The
staging table is dropped once the merge finishes.`),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s := stateFrom(ctx)

		t, err := readCSV(args[0])
		if err != nil {
			return err
		}
		db, err := s.open(ctx, dbProfile)
		if err != nil {
			return err
		}
		defer db.Close()

		opts := database.StagingOptions{StagingSchema: stagingSchema, StagingName: stagingName}
		if stagingReplace {
			err = database.StagingUpsert(ctx, db, t, loadSchema, args[1], loadPK, opts)
		} else {
			err = database.StagingInsert(ctx, db, t, loadSchema, args[1], loadPK, opts)
		}
		if err != nil {
			return err
		}
		s.logger.Info("staging merge done", "table", args[1], "rows", t.Len())
		return nil
	},
}

var insertsCmd = &cobra.Command{
	Use:   "inserts --db <profile> <table>",
	Short: "Prints the content of a table as INSERT statements.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := stateFrom(ctx).open(ctx, dbProfile)
		if err != nil {
			return err
		}
		defer db.Close()

		statements, err := db.InsertsFromTable(ctx, loadSchema, args[0])
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			fmt.Fprintln(cmd.OutOrStdout(), stmt)
		}
		return nil
	},
}
