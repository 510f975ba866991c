package commands

import (
	"fmt"
	"io"
	"time"

	"courtprices/internal/history"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyVenue string
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func printHistory(out io.Writer, entries []history.Entry, loc *time.Location) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Time", "Run", "Venue", "Status", "Changed", "Dry run", "Detail"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Time.In(loc).Format("2006-01-02 15:04"),
			e.RunID.String()[:8],
			e.Venue,
			e.Status,
			yesNo(e.Changed),
			yesNo(e.DryRun),
			e.Detail,
		})
	}
	t.Render()
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the venue outcomes of past runs, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		clock, err := newTime()
		if err != nil {
			return err
		}
		store, err := history.Open(ctx, cfg.History)
		if err != nil {
			return fmt.Errorf("open run journal: %w", err)
		}
		defer store.Close()

		entries, err := store.List(ctx, history.ListOptions{
			Venue: historyVenue,
			Limit: historyLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
			return nil
		}
		printHistory(cmd.OutOrStdout(), entries, clock.Location())
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show, 0 shows all")
	historyCmd.Flags().StringVar(&historyVenue, "venue", "", "only show this venue")
	rootCmd.AddCommand(historyCmd)
}
