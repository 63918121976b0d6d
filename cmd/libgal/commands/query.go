package commands

import (
	"fmt"

	"libgal/lib/odbctools"
	"libgal/lib/sqlscript"

	"github.com/spf13/cobra"
)

var (
	dbProfile  string
	scriptFile string
)

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, execCmd} {
		cmd.Flags().StringVarP(&dbProfile, "db", "d", "", "The database profile from the config.")
		rootCmd.AddCommand(cmd)
	}
	execCmd.Flags().StringVarP(&scriptFile, "file", "f", "", "A .sql file with ;-separated statements.")
}

var queryCmd = &cobra.Command{
	Use:   "query --db <profile> <sql>",
	Short: "Runs a SELECT and prints the result set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := stateFrom(ctx).open(ctx, dbProfile)
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := db.Query(ctx, args[0])
		if err != nil {
			return err
		}
		renderTable(cmd.OutOrStdout(), result)
		return nil
	},
}

var execCmd = &cobra.Command{
	Use:   "exec --db <profile> [--file <script.sql>] [sql...]",
	Short: "Executes statements in order, stopping at the first failure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		statements := args
		if scriptFile != "" {
			loaded, err := odbctools.LoadSQL(scriptFile)
			if err != nil {
				return err
			}
			statements = append(loaded, statements...)
		}
		if len(statements) == 0 {
			return fmt.Errorf("nothing to execute, pass statements or --file")
		}

		ctx := cmd.Context()
		s := stateFrom(ctx)
		db, err := s.open(ctx, dbProfile)
		if err != nil {
			return err
		}
		defer db.Close()

		script := sqlscript.New()
		for _, stmt := range statements {
			for _, part := range odbctools.SplitSQL(stmt) {
				script.AddStatement(part)
			}
		}
		if err := script.Execute(ctx, db.SQLX(), s.logger); err != nil {
			return err
		}
		s.logger.Info("script done", "statements", script.Len())
		return nil
	},
}
