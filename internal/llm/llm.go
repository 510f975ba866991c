// Package llm talks to the text completion backends used to structure pricing pages.
package llm

import (
	"context"
	"fmt"
	"time"

	"courtprices/internal/components/assert"
	"courtprices/internal/components/telemetry"
	"courtprices/lib/restyutil"
	libtelemetry "courtprices/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("courtprices/internal/llm")

// Completer submits a prompt and returns the trimmed text of the first completion.
//
// note: fault injection point
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options are the transport settings of a Completer, zero values pick the defaults.
type Options struct {
	// BaseURL overrides the provider's api host, tests point it at an httptest server.
	BaseURL   string
	MaxTokens int
	// Timeout bounds a single completion request, zero waits indefinitely.
	Timeout time.Duration
	// Dump receives every http exchange when set.
	Dump restyutil.Output
}

const defaultMaxTokens = 2000

func (o Options) withDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	return o
}

// New builds the Completer of the resolved provider.
func New(cfg ProviderConfig, opts Options, tel telemetry.API) (Completer, error) {
	assert.NotNil(tel)

	switch cfg.Provider {
	case Anthropic:
		return newAnthropicClient(cfg, opts, tel), nil
	case OpenAI:
		return newOpenAIClient(cfg, opts, tel), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

func newHttpClient(name string, opts Options, tel telemetry.API) *resty.Client {
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	client.SetHeader("content-type", "application/json")

	telemetry.InstrumentResty(client, tel)
	libtelemetry.TraceResty(client, "courtprices/internal/llm/"+name)
	restyutil.DumpExchanges(client, name, opts.Dump)
	return client
}
