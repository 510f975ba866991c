package commands

import (
	"errors"
	"fmt"
	"io"

	"courtprices/internal/schedule"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var validateYear int

var errInvalidPrices = errors.New("the courts file has pricing issues")

func printIssues(out io.Writer, issues []schedule.Issue) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Venue", "Type", "Surface", "Kind", "Problem"})
	for _, issue := range issues {
		t.AppendRow(table.Row{issue.Venue, issue.Type, issue.Surface, issue.Kind, issue.Message})
	}
	t.Render()
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the price windows of every court group for gaps, overlaps and missing hours.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, records, err := loadVenues()
		if err != nil {
			return err
		}
		clock, err := newTime()
		if err != nil {
			return err
		}

		issues := schedule.Validate(records, schedule.ValidateOptions{
			Location: clock.Location(),
			Year:     validateYear,
		})
		if len(issues) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d venues, no issues\n", len(records))
			return nil
		}
		printIssues(cmd.OutOrStdout(), issues)
		return fmt.Errorf("%w: %d found", errInvalidPrices, len(issues))
	},
}

func init() {
	validateCmd.Flags().IntVar(&validateYear, "year", 0, "only check the days of this year for missing prices")
	rootCmd.AddCommand(validateCmd)
}
