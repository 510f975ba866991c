// Package merge reconciles extracted pricing proposals with the court groups declared for a venue.
package merge

import (
	"courtprices/internal/venue"
)

// Courts applies proposal to courts and returns the updated list and whether anything changed.
//
// Each proposed court is matched against the first court group with the same
// type and surface, proposed courts with no match are skipped, court groups are never
// created. A matching group gets the proposal's window replaced in place when a window
// with the same from/to already exists, otherwise the window is appended.
//
// courts is not modified. The proposal's from/to are used as is, defaulting them is
// the extractor's job.
func Courts(courts []venue.CourtSpec, proposal venue.Proposal) ([]venue.CourtSpec, bool) {
	updated := venue.CloneCourts(courts)
	changed := false

	for _, proposed := range proposal.Courts {
		idx := findCourt(updated, proposed.Type, proposed.Surface)
		if idx < 0 {
			continue
		}
		court := &updated[idx]

		window := venue.PriceWindow{
			From:     proposal.From,
			To:       proposal.To,
			Schedule: proposed.Schedule.Clone(),
		}
		if window.Schedule == nil {
			window.Schedule = venue.Schedule{}
		}

		existing := findWindow(court.Prices, proposal.From, proposal.To)
		if existing >= 0 {
			court.Prices[existing].Schedule = window.Schedule
		} else {
			court.Prices = append(court.Prices, window)
		}
		changed = true
	}

	return updated, changed
}

// Unmatched returns the proposed courts that have no court group to be merged into.
func Unmatched(courts []venue.CourtSpec, proposal venue.Proposal) []venue.ProposedCourt {
	var out []venue.ProposedCourt
	for _, proposed := range proposal.Courts {
		if findCourt(courts, proposed.Type, proposed.Surface) < 0 {
			out = append(out, proposed)
		}
	}
	return out
}

func findCourt(courts []venue.CourtSpec, courtType, surface string) int {
	for i, c := range courts {
		if c.Matches(courtType, surface) {
			return i
		}
	}
	return -1
}

func findWindow(prices []venue.PriceWindow, from, to venue.Date) int {
	for i, p := range prices {
		if p.From == from && p.To == to {
			return i
		}
	}
	return -1
}
