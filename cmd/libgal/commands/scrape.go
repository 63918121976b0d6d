package commands

import (
	"fmt"
	"net/url"
	"time"

	"libgal/lib/browser"
	"libgal/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeSelector string
	scrapeTimeout  time.Duration
	browseHidden   bool
	browseWait     time.Duration
)

func init() {
	for _, cmd := range []*cobra.Command{scrapeCmd, browseCmd} {
		cmd.Flags().StringVar(&scrapeSelector, "select", "a", "The css selector of the elements to print.")
		rootCmd.AddCommand(cmd)
	}
	scrapeCmd.Flags().DurationVar(&scrapeTimeout, "timeout", 30*time.Second, "The request timeout.")
	browseCmd.Flags().BoolVar(&browseHidden, "hidden", false, "Run firefox headless.")
	browseCmd.Flags().DurationVar(&browseWait, "wait", 0, "How long to let the page run scripts before reading it.")
}

func printSelection(cmd *cobra.Command, doc *goquery.Document) {
	sel := doc.Find(scrapeSelector)
	if scrapeSelector == "a" {
		out := newPrettyTable(cmd.OutOrStdout())
		out.AppendHeader(prettytable.Row{"Name", "Href"})
		for _, a := range htmlutil.GetAnchors(cmd.Context(), sel, doc.Url) {
			out.AppendRow(prettytable.Row{a.Name, a.Href})
		}
		out.Render()
		return
	}
	sel.Each(func(_ int, s *goquery.Selection) {
		fmt.Fprintln(cmd.OutOrStdout(), htmlutil.CleanText(s.Text()))
	})
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--select <css>] <url>",
	Short: "Fetches a page over http and prints the matching elements.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := stateFrom(cmd.Context())
		fetcher := htmlutil.NewFetcher(htmlutil.FetcherOptions{
			Timeout: scrapeTimeout,
			Retries: 2,
			Logger:  s.logger,
		})
		doc, err := fetcher.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSelection(cmd, doc)
		return nil
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse [--hidden] [--select <css>] <url>",
	Short: "Opens a page in firefox and prints the matching elements once rendered.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := stateFrom(cmd.Context())
		opts := s.config.Browser
		opts.URL = args[0]
		if browseHidden {
			opts.Hidden = true
		}

		session, err := browser.OpenFirefox(cmd.Context(), opts, s.logger)
		if err != nil {
			return err
		}
		defer session.Close()

		if browseWait > 0 {
			select {
			case <-time.After(browseWait):
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}

		doc, err := session.Document()
		if err != nil {
			return err
		}
		doc.Url, _ = url.Parse(opts.URL)
		printSelection(cmd, doc)
		return nil
	},
}
