package acquire

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"courtprices/internal/components/assert"
	"courtprices/internal/components/telemetry"
	"courtprices/lib/htmlutil"
	"courtprices/lib/textutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// Static fetches pages without running their scripts. Court type toggles are resolved
// to the panels they control (href="#id", aria-controls, data-target) which works for
// the usual tab widgets that ship every panel in the html.
type Static struct {
	http *resty.Client
	opts Options
	tel  telemetry.API
}

func NewStatic(opts Options, tel telemetry.API) Static {
	assert.NotNil(tel)

	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI("acquire", tel)

	client := resty.New()
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.NavigateTimeout)
	if opts.Impersonate {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, tel)

	return Static{
		http: client,
		opts: opts,
		tel:  tel,
	}
}

func (s Static) fetch(ctx context.Context, link string) (*goquery.Document, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s: status %d", link, res.StatusCode())
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}

func (s Static) Load(ctx context.Context, link string) (string, error) {
	ctx, span := tracer.Start(ctx, "Static.Load")
	defer span.End()
	span.SetAttributes(attribute.String("url", link))

	base, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	doc, err := s.fetch(ctx, link)
	if err != nil {
		s.tel.ReportBroken(report_static_fetch, err, link)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return "", fmt.Errorf("navigate to %s: %w", link, err)
	}

	pricing := s.pricingLink(ctx, doc, base)
	if pricing != nil {
		s.tel.ReportDebug("following pricing link", pricing.String())
		pricingDoc, err := s.fetch(ctx, pricing.String())
		if err != nil {
			s.tel.ReportWarning(report_static_pricing, err, pricing.String())
		} else {
			doc = pricingDoc
		}
	}

	sections := s.toggleSections(doc)
	span.SetAttributes(attribute.Int("toggles", len(sections)))
	if len(sections) > 0 {
		return JoinSections(sections), nil
	}

	content := htmlutil.MainText(doc.Selection)
	if strings.TrimSpace(content) == "" {
		return "", ErrNoContent
	}
	return content, nil
}

// pricingLink returns the page the pricing menu entry links to, nil when there is no
// such entry or it points into the current page.
func (s Static) pricingLink(ctx context.Context, doc *goquery.Document, base *url.URL) *url.URL {
	candidates := doc.Find(strings.Join(pricingSelectors, ", "))
	for _, anchor := range htmlutil.GetAnchors(ctx, candidates, base) {
		rawHref := anchor.Href
		if !s.opts.Keywords.IsPricing(anchor.Name, rawHref) {
			continue
		}
		target, err := url.Parse(rawHref)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			return nil
		}
		samePage := *target
		samePage.Fragment = ""
		current := *base
		current.Fragment = ""
		if samePage.String() == current.String() {
			return nil
		}
		return target
	}
	return nil
}

// panelOf returns the element a toggle controls.
func panelOf(doc *goquery.Document, toggle *goquery.Selection) *goquery.Selection {
	var selectors []string
	if href, ok := toggle.Attr("href"); ok && strings.HasPrefix(href, "#") && len(href) > 1 {
		selectors = append(selectors, href)
	}
	if controls, ok := toggle.Attr("aria-controls"); ok && controls != "" {
		selectors = append(selectors, "#"+controls)
	}
	for _, attr := range []string{"data-target", "data-bs-target", "data-tab"} {
		if target, ok := toggle.Attr(attr); ok && target != "" {
			selectors = append(selectors, target)
		}
	}

	for _, selector := range selectors {
		found := doc.Find(selector).First()
		if found.Length() > 0 {
			return found
		}
	}
	return nil
}

func (s Static) toggleSections(doc *goquery.Document) []Section {
	var candidates []Candidate
	elements := map[Candidate]*goquery.Selection{}
	doc.Find(strings.Join(toggleSelectors, ", ")).Each(func(_ int, el *goquery.Selection) {
		class, _ := el.Attr("class")
		label, _ := el.Attr("aria-label")
		name, _ := el.Attr("name")
		id, _ := el.Attr("id")
		text := textutil.CollapseSpace(el.Text())
		if !s.opts.Keywords.IsToggle(text, label, name, id, class) {
			return
		}
		c := Candidate{Text: text, Tag: strings.ToUpper(goquery.NodeName(el))}
		candidates = append(candidates, c)
		if _, ok := elements[c]; !ok {
			elements[c] = el
		}
	})

	var sections []Section
	for _, toggle := range uniqueCandidates(candidates) {
		panel := panelOf(doc, elements[toggle])
		if panel == nil {
			s.tel.ReportDebug("toggle controls nothing in the page", toggle.Text)
			continue
		}
		text := htmlutil.SelectionText(panel)
		if text == "" {
			continue
		}
		sections = append(sections, Section{Label: toggle.Text, Text: text})
	}
	return sections
}
