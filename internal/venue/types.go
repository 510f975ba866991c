package venue

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is a single venue entry of the courts file.
type Record struct {
	Name         string      `yaml:"name"`
	PricesSource string      `yaml:"prices_source,omitempty"`
	Courts       []CourtSpec `yaml:"courts"`

	node *yaml.Node
}

// HasSource reports whether the venue has a pricing page to visit.
func (r Record) HasSource() bool {
	return strings.TrimSpace(r.PricesSource) != ""
}

// CourtSpec is a group of physical courts sharing a type, a surface and a price list.
// (Type, Surface) identifies the group within a venue.
type CourtSpec struct {
	Type    string        `yaml:"type"`
	Surface string        `yaml:"surface"`
	Courts  []CourtID     `yaml:"courts"`
	Prices  []PriceWindow `yaml:"prices"`

	node *yaml.Node
	// prices as they were loaded, used to decide whether the prices node must be rewritten.
	loaded []PriceWindow
}

// Matches reports whether the group has the given identity.
func (c CourtSpec) Matches(courtType, surface string) bool {
	return c.Type == courtType && c.Surface == surface
}

// CourtID identifies one physical court, courts are written as plain numbers or strings.
type CourtID string

func (c *CourtID) UnmarshalYAML(value *yaml.Node) error {
	*c = CourtID(value.Value)
	return nil
}

// PriceWindow is a date range with its weekly schedule.
// From and To are compared as opaque strings.
type PriceWindow struct {
	From     Date     `yaml:"from"`
	To       Date     `yaml:"to"`
	Schedule Schedule `yaml:"schedule"`
}

// Equal compares two windows by value.
func (w PriceWindow) Equal(other PriceWindow) bool {
	return w.From == other.From && w.To == other.To && w.Schedule.Equal(other.Schedule)
}

// Clone returns a copy of the window that does not share its schedule.
func (w PriceWindow) Clone() PriceWindow {
	w.Schedule = w.Schedule.Clone()
	return w
}

// Date is a calendar date written as YYYY-MM-DD.
type Date string

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	*d = Date(value.Value)
	return nil
}

// MarshalYAML writes the date unquoted, the way it is usually hand written.
func (d Date) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: string(d)}, nil
}

// Proposal is the structured pricing extracted from a pricing page.
// It is never persisted as-is.
type Proposal struct {
	Season string          `json:"season"`
	From   Date            `json:"from"`
	To     Date            `json:"to"`
	Courts []ProposedCourt `json:"courts"`
	// Rejected are the proposed courts left out because they failed validation.
	Rejected []RejectedCourt `json:"rejected,omitempty"`
}

type RejectedCourt struct {
	Court    ProposedCourt `json:"court"`
	Problems []string      `json:"problems"`
}

// ProposedCourt is the schedule proposed for one court group.
type ProposedCourt struct {
	Type     string   `json:"type"`
	Surface  string   `json:"surface"`
	Schedule Schedule `json:"schedule"`
}

// CloneCourts returns a deep copy of a court list.
func CloneCourts(courts []CourtSpec) []CourtSpec {
	if courts == nil {
		return nil
	}
	out := make([]CourtSpec, len(courts))
	for i, c := range courts {
		out[i] = c
		out[i].Courts = append([]CourtID(nil), c.Courts...)
		out[i].Prices = clonePrices(c.Prices)
	}
	return out
}

func clonePrices(prices []PriceWindow) []PriceWindow {
	if prices == nil {
		return nil
	}
	out := make([]PriceWindow, len(prices))
	for i, p := range prices {
		out[i] = p.Clone()
	}
	return out
}

func pricesEqual(a, b []PriceWindow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
