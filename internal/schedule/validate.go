package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"courtprices/internal/venue"
)

type IssueKind string

const (
	IssueInvalidDate  IssueKind = "invalid_date"
	IssueGap          IssueKind = "gap"
	IssueOverlap      IssueKind = "overlap"
	IssueMissingPrice IssueKind = "missing_price"
)

// Issue is a problem found in the windows of one court group.
type Issue struct {
	Venue   string
	Type    string
	Surface string
	Kind    IssueKind
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s (%s %s): %s", i.Venue, i.Surface, i.Type, i.Message)
}

// hours of the day every open day must have a price for, [8, 21].
const (
	firstCheckedHour = 8
	lastCheckedHour  = 21
)

type ValidateOptions struct {
	Location *time.Location
	// Year restricts the missing price check to the days of one year, 0 checks every
	// day covered by the windows.
	Year int
}

type parsedWindow struct {
	window   venue.PriceWindow
	from, to time.Time
}

// Validate checks every court group of records.
//
// Consecutive windows must share their boundary date, otherwise there is a gap or an
// overlap between them. Every hour from 8:00 to 21:00 of every day between the first
// and the last date of a group must be priced, hours whose window has an empty schedule
// are closed and not checked.
func Validate(records []venue.Record, opts ValidateOptions) []Issue {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	var issues []Issue
	for _, r := range records {
		for _, c := range r.Courts {
			report := func(kind IssueKind, format string, args ...any) {
				issues = append(issues, Issue{
					Venue:   r.Name,
					Type:    c.Type,
					Surface: c.Surface,
					Kind:    kind,
					Message: fmt.Sprintf(format, args...),
				})
			}

			var windows []parsedWindow
			for _, w := range c.Prices {
				from, errFrom := ParseDate(w.From, loc)
				to, errTo := ParseDate(w.To, loc)
				if errFrom != nil || errTo != nil {
					report(IssueInvalidDate, "window %s-%s has an unreadable date", w.From, w.To)
					continue
				}
				windows = append(windows, parsedWindow{window: w, from: from, to: to})
			}
			if len(windows) == 0 {
				continue
			}

			checkBoundaries(windows, report)
			checkHours(c.Prices, windows, opts.Year, loc, report)
		}
	}
	return issues
}

func checkBoundaries(windows []parsedWindow, report func(IssueKind, string, ...any)) {
	sorted := append([]parsedWindow(nil), windows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].from.Before(sorted[j].from)
	})

	for i := 0; i+1 < len(sorted); i++ {
		current, next := sorted[i], sorted[i+1]
		if next.from.After(current.to) {
			report(IssueGap, "gap between %s and %s", current.window.To, next.window.From)
		}
		if next.from.Before(current.to) {
			report(
				IssueOverlap,
				"overlap between periods %s-%s and %s-%s",
				current.window.From, current.window.To,
				next.window.From, next.window.To,
			)
		}
	}
}

func checkHours(prices []venue.PriceWindow, windows []parsedWindow, year int, loc *time.Location, report func(IssueKind, string, ...any)) {
	first, last := windows[0].from, windows[0].to
	for _, w := range windows[1:] {
		if w.from.Before(first) {
			first = w.from
		}
		if w.to.After(last) {
			last = w.to
		}
	}
	if year != 0 {
		yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		yearEnd := yearStart.AddDate(1, 0, 0)
		if first.Before(yearStart) {
			first = yearStart
		}
		if last.After(yearEnd) {
			last = yearEnd
		}
	}

	for day := first; day.Before(last); day = day.AddDate(0, 0, 1) {
		var missing []string
		for hour := firstCheckedHour; hour <= lastCheckedHour; hour++ {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			active, ok := ActiveWindow(prices, start)
			if ok && len(active.Schedule) == 0 {
				// closed
				continue
			}
			_, priced := Price(prices, start, start.Add(time.Hour))
			if !priced {
				missing = append(missing, fmt.Sprintf("%02d:00", hour))
			}
		}
		if len(missing) > 0 {
			report(
				IssueMissingPrice,
				"missing price on %s (%s) at %s",
				day.Format(time.DateOnly),
				strings.ToLower(day.Weekday().String()[:2]),
				strings.Join(missing, ", "),
			)
		}
	}
}
