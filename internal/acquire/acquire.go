// Package acquire loads the readable text of a venue's pricing page.
//
// Pricing is often hidden behind in-page navigation ("Cennik" menus, court type tabs),
// so acquirers follow the pricing link when there is one and collect the text behind
// every court type toggle as its own section.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtprices/internal/components/telemetry"
	"courtprices/lib/textutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("courtprices/internal/acquire")

const (
	report_browser_navigate = "browser.navigate"
	report_browser_pricing  = "browser.pricing"
	report_browser_toggles  = "browser.toggles"
	report_browser_toggle   = "browser.toggle"
	report_browser_content  = "browser.content"
	report_static_fetch     = "static.fetch"
	report_static_pricing   = "static.pricing"
)

var (
	ErrNoContent       = errors.New("page has no text content")
	ErrUnknownStrategy = errors.New("unknown acquisition strategy")
)

// Acquirer returns the text of the page at url.
//
// note: fault injection point
type Acquirer interface {
	Load(ctx context.Context, url string) (string, error)
}

// Keywords drive the navigation heuristics.
type Keywords struct {
	// Pricing matches the text of the menu entry leading to the price list.
	Pricing []string
	// PricingHref matches the href of the menu entry leading to the price list.
	PricingHref []string
	// Toggles matches the text or attributes of court type switches.
	Toggles []string
}

var DefaultKeywords = Keywords{
	Pricing:     []string{"cennik", "ceny"},
	PricingHref: []string{"cennik"},
	Toggles: []string{
		"indoor", "hala", "dome", "balon", "namiot",
		"tent", "outdoor", "odkryte", "court", "kort",
	},
}

// WithToggles returns a copy of k matching extra toggle keywords as well.
func (k Keywords) WithToggles(extra ...string) Keywords {
	toggles := make([]string, 0, len(k.Toggles)+len(extra))
	toggles = append(toggles, k.Toggles...)
	for _, e := range extra {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			toggles = append(toggles, e)
		}
	}
	k.Toggles = toggles
	return k
}

// IsPricing reports whether an element with this text and href leads to the price list.
func (k Keywords) IsPricing(text, href string) bool {
	if textutil.ContainsAny(text, k.Pricing) {
		return true
	}
	for _, h := range k.PricingHref {
		if strings.Contains(href, h) {
			return true
		}
	}
	return false
}

// IsToggle reports whether any of the given element properties (text, aria-label, name,
// id, class) names a court type.
func (k Keywords) IsToggle(properties ...string) bool {
	for _, p := range properties {
		if textutil.ContainsAny(p, k.Toggles) {
			return true
		}
	}
	return false
}

// Candidate is an element that looks like a court type toggle.
type Candidate struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// uniqueCandidates drops candidates without text and repeats of the same text and tag,
// keeping document order.
func uniqueCandidates(candidates []Candidate) []Candidate {
	seen := map[string]bool{}
	out := []Candidate{}
	for _, c := range candidates {
		c.Text = strings.TrimSpace(c.Text)
		key := c.Text + "\x00" + strings.ToUpper(c.Tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		if c.Text == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Section is the text shown while one toggle is active.
type Section struct {
	Label string
	Text  string
}

// JoinSections renders sections as "=== <label> ===" blocks.
func JoinSections(sections []Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = fmt.Sprintf("\n=== %s ===\n%s", s.Label, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

type Options struct {
	// NavigateTimeout bounds the initial page load.
	NavigateTimeout time.Duration
	// Settle is the fixed wait after every navigation or click.
	Settle time.Duration
	// PricingIdle bounds the wait for the network to go idle after following the
	// pricing link.
	PricingIdle time.Duration
	// ToggleIdle bounds the same wait after activating a toggle.
	ToggleIdle time.Duration

	ChromePath string
	UserAgent  string
	Keywords   Keywords

	// RequestsPerSecond limits the static strategy's fetches.
	RequestsPerSecond float64
	// Impersonate makes the static strategy's requests look like a desktop browser
	// to bot protection.
	Impersonate bool
}

const (
	DefaultNavigateTimeout = time.Second * 30
	DefaultSettle          = time.Second * 2
	DefaultPricingIdle     = time.Second * 5
	DefaultToggleIdle      = time.Second * 3
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

func (o Options) withDefaults() Options {
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = DefaultNavigateTimeout
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.PricingIdle <= 0 {
		o.PricingIdle = DefaultPricingIdle
	}
	if o.ToggleIdle <= 0 {
		o.ToggleIdle = DefaultToggleIdle
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if len(o.Keywords.Pricing) == 0 && len(o.Keywords.PricingHref) == 0 && len(o.Keywords.Toggles) == 0 {
		o.Keywords = DefaultKeywords
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 2
	}
	return o
}

const (
	StrategyBrowser = "browser"
	StrategyStatic  = "static"
)

// New returns the acquirer for strategy, "browser" drives headless chrome and "static"
// only fetches html.
func New(strategy string, opts Options, tel telemetry.API) (Acquirer, error) {
	switch strategy {
	case StrategyBrowser, "":
		return NewBrowser(opts, tel), nil
	case StrategyStatic:
		return NewStatic(opts, tel), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}
