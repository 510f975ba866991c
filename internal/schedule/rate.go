// Package schedule answers pricing questions about the windows of a court group: which
// window is active, what an hour costs, what a booking costs.
//
// Rule keys are `<day>:<start>-<end>`. Day is `!` (applies before everything else), a
// weekday (`mo tu we th fr st su`, `sa` is accepted for saturday) or `*` (applies when
// nothing more specific does). Hours are half open and wrap past midnight when start >= end.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"courtprices/internal/venue"

	"github.com/shopspring/decimal"
)

var weekdayTokens = map[time.Weekday][]string{
	time.Monday:    {"mo"},
	time.Tuesday:   {"tu"},
	time.Wednesday: {"we"},
	time.Thursday:  {"th"},
	time.Friday:    {"fr"},
	time.Saturday:  {"st", "sa"},
	time.Sunday:    {"su"},
}

// ParseDate parses a window date as midnight in loc.
func ParseDate(d venue.Date, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, string(d), loc)
}

// ParsePrice parses a schedule price, anything after the integer part is ignored the same
// way the prices have always been read.
func ParsePrice(p venue.Price) (decimal.Decimal, bool) {
	text := strings.TrimSpace(p.Text)
	end := 0
	for end < len(text) && (text[end] >= '0' && text[end] <= '9' || end == 0 && text[end] == '-') {
		end++
	}
	n, err := strconv.ParseInt(text[:end], 10, 64)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromInt(n), true
}

func hourInRange(hour int, hours string) bool {
	startStr, endStr, ok := strings.Cut(hours, "-")
	if !ok {
		return false
	}
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return false
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func matchRule(s venue.Schedule, hour int, days ...string) (decimal.Decimal, bool) {
	for _, rule := range s {
		day, hours, ok := strings.Cut(rule.Key, ":")
		if !ok {
			continue
		}
		matched := false
		for _, d := range days {
			if day == d {
				matched = true
				break
			}
		}
		if !matched || !hourInRange(hour, hours) {
			continue
		}
		price, ok := ParsePrice(rule.Price)
		if !ok {
			continue
		}
		return price, true
	}
	return decimal.Decimal{}, false
}

// Rate returns the hourly rate at t.
func Rate(s venue.Schedule, t time.Time) (decimal.Decimal, bool) {
	hour := t.Hour()

	price, ok := matchRule(s, hour, "!")
	if ok {
		return price, true
	}
	price, ok = matchRule(s, hour, weekdayTokens[t.Weekday()]...)
	if ok {
		return price, true
	}
	return matchRule(s, hour, "*")
}

// ActiveWindow returns the first window with from <= t <= to, both at midnight in
// t's location. Windows with unreadable dates are ignored.
func ActiveWindow(prices []venue.PriceWindow, t time.Time) (venue.PriceWindow, bool) {
	for _, w := range prices {
		from, err := ParseDate(w.From, t.Location())
		if err != nil {
			continue
		}
		to, err := ParseDate(w.To, t.Location())
		if err != nil {
			continue
		}
		if !t.Before(from) && !t.After(to) {
			return w, true
		}
	}
	return venue.PriceWindow{}, false
}

// Price returns the cost of booking from start to end.
//
// The window active at start prices the whole booking. Rates are looked up in one hour
// steps from start and the last step is charged pro rata. An hour with no rate makes
// the booking unpriceable.
func Price(prices []venue.PriceWindow, start, end time.Time) (decimal.Decimal, bool) {
	window, ok := ActiveWindow(prices, start)
	if !ok {
		return decimal.Decimal{}, false
	}

	total := decimal.Zero
	hour := decimal.NewFromInt(int64(time.Hour))
	for current := start; current.Before(end); current = current.Add(time.Hour) {
		rate, ok := Rate(window.Schedule, current)
		if !ok {
			return decimal.Decimal{}, false
		}
		slotEnd := current.Add(time.Hour)
		if end.Before(slotEnd) {
			slotEnd = end
		}
		duration := decimal.NewFromInt(int64(slotEnd.Sub(current))).Div(hour)
		total = total.Add(rate.Mul(duration))
	}
	return total, true
}

// MinMax returns the lowest and highest rate of the window active on date.
func MinMax(prices []venue.PriceWindow, date time.Time) (decimal.Decimal, decimal.Decimal, bool) {
	window, ok := ActiveWindow(prices, date)
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}

	var low, high decimal.Decimal
	found := false
	for _, rule := range window.Schedule {
		price, ok := ParsePrice(rule.Price)
		if !ok {
			continue
		}
		if !found || price.LessThan(low) {
			low = price
		}
		if !found || price.GreaterThan(high) {
			high = price
		}
		found = true
	}
	return low, high, found
}
