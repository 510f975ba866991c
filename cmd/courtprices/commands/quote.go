package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"courtprices/internal/schedule"
	"courtprices/internal/venue"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	quoteVenue string
	quoteFrom  string
	quoteTo    string
)

var quoteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseQuoteTime reads a booking time, times without an offset are in loc.
func parseQuoteTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range quoteLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a time like 2025-10-06T18:00", value)
}

func courtIDs(ids []venue.CourtID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return strings.Join(out, ", ")
}

func printQuote(out io.Writer, record venue.Record, start, end time.Time) {
	t := newTable(out)
	t.SetTitle("%s, %s to %s", record.Name, start.Format("Mon 2006-01-02 15:04"), end.Format("15:04"))
	t.AppendHeader(table.Row{"Type", "Surface", "Courts", "Price", "Cheapest hour", "Dearest hour"})
	for _, c := range record.Courts {
		price := "no price"
		if total, ok := schedule.Price(c.Prices, start, end); ok {
			price = total.StringFixed(2)
		}
		low, high := "-", "-"
		if lo, hi, ok := schedule.MinMax(c.Prices, start); ok {
			low, high = lo.String(), hi.String()
		}
		t.AppendRow(table.Row{c.Type, c.Surface, courtIDs(c.Courts), price, low, high})
	}
	t.Render()
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Print what booking each court group of a venue costs for a time range.",
	RunE: func(cmd *cobra.Command, args []string) error {
		clock, err := newTime()
		if err != nil {
			return err
		}
		start, err := parseQuoteTime(quoteFrom, clock.Location())
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		end, err := parseQuoteTime(quoteTo, clock.Location())
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		if !end.After(start) {
			return errors.New("--to must be after --from")
		}

		_, records, err := loadVenues()
		if err != nil {
			return err
		}
		record, ok := findVenue(records, quoteVenue)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "venue not found: %q\n", quoteVenue)
			return nil
		}
		printQuote(cmd.OutOrStdout(), record, start, end)
		return nil
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteVenue, "venue", "", "venue name")
	quoteCmd.Flags().StringVar(&quoteFrom, "from", "", "start of the booking")
	quoteCmd.Flags().StringVar(&quoteTo, "to", "", "end of the booking")
	quoteCmd.MarkFlagRequired("venue")
	quoteCmd.MarkFlagRequired("from")
	quoteCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(quoteCmd)
}
