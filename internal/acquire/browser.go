package acquire

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"courtprices/internal/components/assert"
	"courtprices/internal/components/telemetry"
	"courtprices/lib/htmlutil"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// the network counts as idle once nothing was in flight for this long.
const quietPeriod = time.Millisecond * 500

type networkIdle struct {
	mu       sync.Mutex
	inflight map[network.RequestID]bool
	last     time.Time
	now      func() time.Time
}

func newNetworkIdle(now func() time.Time) *networkIdle {
	return &networkIdle{
		inflight: map[network.RequestID]bool{},
		last:     now(),
		now:      now,
	}
}

func (n *networkIdle) handle(ev any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		n.inflight[ev.RequestID] = true
	case *network.EventLoadingFinished:
		delete(n.inflight, ev.RequestID)
	case *network.EventLoadingFailed:
		delete(n.inflight, ev.RequestID)
	default:
		return
	}
	n.last = n.now()
}

func (n *networkIdle) idle() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inflight) == 0 && n.now().Sub(n.last) >= quietPeriod
}

// wait blocks until the network is idle or timeout passes, a timeout is not an error.
func (n *networkIdle) wait(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Millisecond * 100)
	defer ticker.Stop()
	for {
		if n.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Browser loads pages in headless chrome, it clicks through the pricing menu and court
// type toggles like a visitor would.
type Browser struct {
	opts Options
	tel  telemetry.API
}

func NewBrowser(opts Options, tel telemetry.API) Browser {
	assert.NotNil(tel)
	return Browser{
		opts: opts.withDefaults(),
		tel:  telemetry.NewScopedAPI("acquire", tel),
	}
}

func (b Browser) evaluate(ctx context.Context, out any, fn string, args ...any) error {
	expr, err := invoke(fn, args...)
	if err != nil {
		return err
	}
	return chromedp.Run(ctx, chromedp.Evaluate(expr, out))
}

func (b Browser) Load(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "Browser.Load")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(b.opts.UserAgent))
	if b.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ChromePath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	idle := newNetworkIdle(time.Now)
	chromedp.ListenTarget(tabCtx, idle.handle)

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.opts.NavigateTimeout)
	err := chromedp.Run(navCtx, network.Enable(), chromedp.Navigate(url))
	if err == nil {
		err = idle.wait(navCtx, b.opts.NavigateTimeout)
	}
	cancelNav()
	if err != nil {
		b.tel.ReportBroken(report_browser_navigate, err, url)
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return "", fmt.Errorf("navigate to %s: %w", url, err)
	}
	err = chromedp.Run(tabCtx, chromedp.Sleep(b.opts.Settle))
	if err != nil {
		return "", err
	}

	keywords := b.opts.Keywords
	var clicked bool
	err = b.evaluate(tabCtx, &clicked, clickPricingScript, pricingSelectors, lowered(keywords.Pricing), keywords.PricingHref)
	if err != nil {
		b.tel.ReportWarning(report_browser_pricing, err, url)
	}
	if clicked {
		b.tel.ReportDebug("followed pricing menu", url)
		err = chromedp.Run(tabCtx, chromedp.Sleep(b.opts.Settle))
		if err == nil {
			err = idle.wait(tabCtx, b.opts.PricingIdle)
		}
		if err != nil {
			return "", err
		}
	}

	var found []Candidate
	err = b.evaluate(tabCtx, &found, findTogglesScript, toggleSelectors, lowered(keywords.Toggles))
	if err != nil {
		b.tel.ReportWarning(report_browser_toggles, err, url)
	}
	toggles := uniqueCandidates(found)
	span.SetAttributes(attribute.Int("toggles", len(toggles)))

	var sections []Section
	for _, toggle := range toggles {
		text, err := b.toggleText(tabCtx, idle, toggle)
		if err != nil {
			if tabCtx.Err() != nil {
				return "", tabCtx.Err()
			}
			b.tel.ReportWarning(report_browser_toggle, err, toggle.Text)
			continue
		}
		sections = append(sections, Section{Label: toggle.Text, Text: text})
	}
	if len(sections) > 0 {
		return JoinSections(sections), nil
	}

	var content string
	err = b.evaluate(tabCtx, &content, contentScript, htmlutil.ContentSelectors)
	if err != nil {
		b.tel.ReportBroken(report_browser_content, err, url)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read content")
		return "", fmt.Errorf("read content of %s: %w", url, err)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrNoContent
	}
	return content, nil
}

func (b Browser) toggleText(ctx context.Context, idle *networkIdle, toggle Candidate) (string, error) {
	var clicked bool
	err := b.evaluate(ctx, &clicked, clickToggleScript, toggleSelectors, toggle.Text)
	if err != nil {
		return "", err
	}
	if !clicked {
		return "", fmt.Errorf("no element with text %q to click", toggle.Text)
	}

	err = chromedp.Run(ctx, chromedp.Sleep(b.opts.Settle))
	if err != nil {
		return "", err
	}
	err = idle.wait(ctx, b.opts.ToggleIdle)
	if err != nil {
		return "", err
	}

	var content string
	err = b.evaluate(ctx, &content, contentScript, htmlutil.ContentSelectors)
	if err != nil {
		return "", err
	}
	return content, nil
}
