package commands

import (
	"fmt"
	"io"
	"strings"

	"courtprices/internal/history"
	"courtprices/internal/updater"
	"courtprices/internal/venue"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// tableReporter prints run progress for a person watching the terminal.
type tableReporter struct {
	out io.Writer
}

func newTableReporter(out io.Writer) tableReporter {
	return tableReporter{out: out}
}

func (r tableReporter) Start(venueName, source string) {
	fmt.Fprintf(r.out, "\n%s\n  fetching %s\n", venueName, source)
}

func formatSchedule(s venue.Schedule) string {
	if len(s) == 0 {
		return "closed"
	}
	rules := make([]string, len(s))
	for i, rule := range s {
		rules[i] = fmt.Sprintf("%s=%s", rule.Key, rule.Price)
	}
	return strings.Join(rules, " ")
}

func (r tableReporter) Outcome(o updater.Outcome) {
	switch o.Status {
	case history.StatusAcquireFailed:
		fmt.Fprintf(r.out, "  could not read the pricing page: %v\n", o.Err)
		return
	case history.StatusExtractFailed:
		fmt.Fprintf(r.out, "  could not extract prices: %v\n", o.Err)
		return
	}

	p := o.Proposal
	fmt.Fprintf(r.out, "  %s season %s to %s\n", p.Season, p.From, p.To)

	unmatched := map[[2]string]bool{}
	for _, c := range o.Unmatched {
		unmatched[[2]string{c.Type, c.Surface}] = true
	}

	t := newTable(r.out)
	t.AppendHeader(table.Row{"Type", "Surface", "Schedule", "Matched"})
	for _, c := range p.Courts {
		matched := "yes"
		if unmatched[[2]string{c.Type, c.Surface}] {
			matched = "no"
		}
		t.AppendRow(table.Row{c.Type, c.Surface, formatSchedule(c.Schedule), matched})
	}
	t.Render()

	for _, rejected := range p.Rejected {
		fmt.Fprintf(r.out, "  skipped %s %s: %s\n", rejected.Court.Type, rejected.Court.Surface, strings.Join(rejected.Problems, "; "))
	}
	if !o.Changed {
		fmt.Fprintln(r.out, "  prices are already up to date")
	}
}

func (r tableReporter) Summary(s updater.Summary) {
	t := newTable(r.out)
	t.SetTitle("run %s", s.RunID)
	t.AppendHeader(table.Row{"Attempted", "Succeeded", "Changed", "Saved"})

	saved := "no"
	switch {
	case s.DryRun:
		saved = "dry run"
	case s.Saved:
		saved = "yes"
	}
	t.AppendRow(table.Row{s.Attempted, s.Succeeded, s.Changed, saved})
	fmt.Fprintln(r.out)
	t.Render()
}
