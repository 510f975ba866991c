// Package extract turns the text of a pricing page into a validated pricing proposal
// with the help of a text completion backend.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"courtprices/internal/components/assert"
	"courtprices/internal/components/telemetry"
	"courtprices/internal/llm"
	"courtprices/internal/venue"
	"courtprices/lib/textutil"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("courtprices/internal/extract")

const (
	report_extractor_extract  = "extractor.extract"
	report_extractor_rejected = "extractor.rejected"
)

var (
	// ErrEmptyPage is returned when there is no page text to extract from.
	ErrEmptyPage = errors.New("page text is empty")
	// ErrMalformedResponse is returned when the completion is not a JSON object.
	ErrMalformedResponse = errors.New("completion is not valid json")
)

// Season is the date window a proposal falls back to when the model omits its dates.
type Season struct {
	From venue.Date
	To   venue.Date
}

// DefaultSeason is the winter season the extraction prompt asks for.
var DefaultSeason = Season{From: "2025-10-01", To: "2026-05-01"}

func (s Season) startYear() int {
	return yearOf(s.From)
}

func (s Season) endYear() int {
	return yearOf(s.To)
}

func yearOf(d venue.Date) int {
	if len(d) < 4 {
		return 0
	}
	year, err := strconv.Atoi(string(d[:4]))
	if err != nil {
		return 0
	}
	return year
}

type Options struct {
	// PromptLimit is the number of page text characters put in the prompt.
	PromptLimit int
	Season      Season
}

// Extractor asks a Completer to structure pricing pages.
type Extractor struct {
	completer llm.Completer
	limit     int
	season    Season
	validate  *validator.Validate
	tel       telemetry.API
}

func NewExtractor(completer llm.Completer, opts Options, tel telemetry.API) Extractor {
	assert.NotNil(completer)
	assert.NotNil(tel)

	if opts.PromptLimit <= 0 {
		opts.PromptLimit = DefaultPromptLimit
	}
	if opts.Season.From == "" || opts.Season.To == "" {
		opts.Season = DefaultSeason
	}

	return Extractor{
		completer: completer,
		limit:     opts.PromptLimit,
		season:    opts.Season,
		validate:  newValidator(),
		tel:       telemetry.NewScopedAPI("extract", tel),
	}
}

// Prompt returns the instruction Extract would send for the given page.
func (e Extractor) Prompt(venueName string, courts []venue.CourtSpec, pageText string) string {
	return buildPrompt(venueName, courts, textutil.Truncate(pageText, e.limit), e.season)
}

// Extract produces a pricing proposal for a venue out of its page text.
//
// The returned proposal has its dates defaulted, its court tags normalized to the
// venue's vocabulary and has passed schema validation.
func (e Extractor) Extract(ctx context.Context, venueName string, courts []venue.CourtSpec, pageText string) (venue.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(attribute.String("venue", venueName))

	proposal, err := e.extract(ctx, venueName, courts, pageText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.tel.ReportWarning(report_extractor_extract, venueName, err)
		return venue.Proposal{}, err
	}
	e.tel.ReportDebug("extracted proposal", venueName, len(proposal.Courts))
	return proposal, nil
}

func (e Extractor) extract(ctx context.Context, venueName string, courts []venue.CourtSpec, pageText string) (venue.Proposal, error) {
	if strings.TrimSpace(pageText) == "" {
		return venue.Proposal{}, ErrEmptyPage
	}

	prompt := e.Prompt(venueName, courts, pageText)
	e.tel.ReportDebug("prompt built", venueName, len(prompt))

	response, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return venue.Proposal{}, fmt.Errorf("complete: %w", err)
	}

	proposal, err := decodeProposal(StripFence(response), e.season)
	if err != nil {
		return venue.Proposal{}, err
	}

	vocabulary := newVocabulary(courts)
	proposal = vocabulary.normalize(proposal)

	proposal, err = e.check(ctx, proposal, vocabulary)
	if err != nil {
		return venue.Proposal{}, err
	}
	for _, r := range proposal.Rejected {
		e.tel.ReportWarning(report_extractor_rejected, venueName, r.Court.Type, r.Court.Surface, strings.Join(r.Problems, "; "))
	}
	return proposal, nil
}

// StripFence removes a markdown code fence (optionally tagged json) around a completion.
func StripFence(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}
	parts := strings.Split(response, "```")
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}

type wireCourt struct {
	Type     string         `json:"type"`
	Surface  string         `json:"surface"`
	Schedule venue.Schedule `json:"schedule"`
}

type wireProposal struct {
	Season string       `json:"season"`
	From   *venue.Date  `json:"from"`
	To     *venue.Date  `json:"to"`
	Courts *[]wireCourt `json:"courts"`
}

func decodeProposal(body string, season Season) (venue.Proposal, error) {
	var wire wireProposal
	err := json.Unmarshal([]byte(body), &wire)
	if err != nil {
		return venue.Proposal{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	proposal := venue.Proposal{
		Season: wire.Season,
		From:   season.From,
		To:     season.To,
	}
	if wire.From != nil && *wire.From != "" {
		proposal.From = *wire.From
	}
	if wire.To != nil && *wire.To != "" {
		proposal.To = *wire.To
	}
	if wire.Courts == nil {
		return venue.Proposal{}, ValidationError{Problems: []string{"courts: is missing"}}
	}

	proposal.Courts = make([]venue.ProposedCourt, 0, len(*wire.Courts))
	for _, c := range *wire.Courts {
		schedule := c.Schedule
		if schedule == nil {
			schedule = venue.Schedule{}
		}
		proposal.Courts = append(proposal.Courts, venue.ProposedCourt{
			Type:     c.Type,
			Surface:  c.Surface,
			Schedule: schedule,
		})
	}
	return proposal, nil
}
