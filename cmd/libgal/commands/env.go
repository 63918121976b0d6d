package commands

import (
	"sort"
	"strings"

	"libgal/lib/env"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var envPrefix string

func init() {
	envCmd.Flags().StringVar(&envPrefix, "prefix", "", "Only print variables starting with this prefix.")
	rootCmd.AddCommand(envCmd)
}

var secretWords = []string{"PASSWORD", "PASS", "SECRET", "TOKEN", "KEY"}

func masked(name, value string) string {
	upper := strings.ToUpper(name)
	for _, w := range secretWords {
		if strings.Contains(upper, w) && value != "" {
			return "********"
		}
	}
	return value
}

var envCmd = &cobra.Command{
	Use:   "env [--prefix <PREFIX>]",
	Short: "Prints the environment after loading the .env file, secrets masked.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := env.Environ()
		names := make([]string, 0, len(vars))
		for name := range vars {
			if strings.HasPrefix(name, envPrefix) {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		out := newPrettyTable(cmd.OutOrStdout())
		out.AppendHeader(prettytable.Row{"Variable", "Value"})
		for _, name := range names {
			out.AppendRow(prettytable.Row{name, masked(name, vars[name])})
		}
		out.Render()
		return nil
	},
}
