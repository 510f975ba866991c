// Package updater runs the pricing update over a venue collection: acquire each pricing
// page, extract a proposal, merge it and persist the collection once at the end.
package updater

import (
	"context"
	"errors"
	"fmt"

	"courtprices/internal/acquire"
	"courtprices/internal/components/assert"
	"courtprices/internal/components/chrono"
	"courtprices/internal/components/telemetry"
	"courtprices/internal/history"
	"courtprices/internal/merge"
	"courtprices/internal/venue"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("courtprices/internal/updater")

const (
	report_run_acquire   = "run.acquire"
	report_run_extract   = "run.extract"
	report_run_panic     = "run.panic"
	report_run_journal   = "run.journal"
	report_run_attempted = "run.attempted"
	report_run_succeeded = "run.succeeded"
)

var ErrVenueNotFound = errors.New("venue not found")

// Extractor structures the text of a pricing page.
//
// note: fault injection point
type Extractor interface {
	Extract(ctx context.Context, venueName string, courts []venue.CourtSpec, pageText string) (venue.Proposal, error)
}

// Saver persists the whole collection.
type Saver interface {
	Save(records []venue.Record) error
}

// Journal records venue outcomes.
type Journal interface {
	Append(ctx context.Context, entries ...history.Entry) error
}

// Outcome is what happened to one venue.
type Outcome struct {
	Venue  string
	Status history.Status
	Err    error
	// Proposal is set once extraction succeeded.
	Proposal *venue.Proposal
	// Unmatched are the proposed courts that have no court group in the venue.
	Unmatched []venue.ProposedCourt
	// Changed is true when the proposal was merged into at least one court group, in a
	// dry run it tells whether it would have been.
	Changed bool
}

// Reporter shows progress to whoever started the run.
type Reporter interface {
	Start(venueName, source string)
	Outcome(o Outcome)
	Summary(s Summary)
}

type Summary struct {
	RunID     uuid.UUID
	DryRun    bool
	Attempted int
	Succeeded int
	Changed   int
	// Saved is true when the collection was written back.
	Saved bool
}

type Options struct {
	DryRun bool
	// Venue restricts the run to the venue with exactly this name.
	Venue string
}

type Updater struct {
	acquirer  acquire.Acquirer
	extractor Extractor
	saver     Saver
	reporter  Reporter
	journal   Journal
	time      chrono.TimeAPI
	tel       telemetry.API
}

// Deps are the collaborators of an Updater, Journal is optional.
type Deps struct {
	Acquirer  acquire.Acquirer
	Extractor Extractor
	Saver     Saver
	Reporter  Reporter
	Journal   Journal
	Time      chrono.TimeAPI
	Tel       telemetry.API
}

func New(deps Deps) Updater {
	assert.NotNil(deps.Acquirer)
	assert.NotNil(deps.Extractor)
	assert.NotNil(deps.Saver)
	assert.NotNil(deps.Reporter)
	assert.NotNil(deps.Time)
	assert.NotNil(deps.Tel)

	return Updater{
		acquirer:  deps.Acquirer,
		extractor: deps.Extractor,
		saver:     deps.Saver,
		reporter:  deps.Reporter,
		journal:   deps.Journal,
		time:      deps.Time,
		tel:       telemetry.NewScopedAPI("updater", deps.Tel),
	}
}

func selectVenues(records []venue.Record, name string) ([]int, error) {
	var selected []int
	for i, r := range records {
		if name == "" || r.Name == name {
			selected = append(selected, i)
		}
	}
	if name != "" && len(selected) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrVenueNotFound, name)
	}
	return selected, nil
}

// Run updates records in place, one venue at a time in input order. Venues without a
// pricing source are skipped. Acquisition and extraction failures only skip their
// venue. The collection is saved once at the end when the run is not a dry run, was
// not cancelled and at least one venue succeeded. A cancelled run saves nothing and
// returns the context error, records may still hold the merges done before it.
func (u Updater) Run(ctx context.Context, records []venue.Record, opts Options) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	summary := Summary{RunID: uuid.New(), DryRun: opts.DryRun}
	span.SetAttributes(
		attribute.String("run_id", summary.RunID.String()),
		attribute.Bool("dry_run", opts.DryRun),
	)

	selected, err := selectVenues(records, opts.Venue)
	if err != nil {
		return summary, err
	}

	var entries []history.Entry
	for _, i := range selected {
		if ctx.Err() != nil {
			break
		}
		record := &records[i]
		if !record.HasSource() {
			u.tel.ReportDebug("no pricing source, skipping", record.Name)
			continue
		}

		summary.Attempted++
		u.reporter.Start(record.Name, record.PricesSource)
		outcome := u.process(ctx, record, opts.DryRun)
		u.reporter.Outcome(outcome)

		if outcome.Status == history.StatusSucceeded {
			summary.Succeeded++
			if outcome.Changed {
				summary.Changed++
			}
		}
		entry := history.Entry{
			RunID:    summary.RunID,
			Time:     u.time.Now(),
			Venue:    outcome.Venue,
			Status:   outcome.Status,
			Proposal: outcome.Proposal,
			Changed:  outcome.Changed,
			DryRun:   opts.DryRun,
		}
		if outcome.Err != nil {
			entry.Detail = outcome.Err.Error()
		}
		entries = append(entries, entry)
	}

	u.tel.ReportCount(report_run_attempted, int64(summary.Attempted))
	u.tel.ReportCount(report_run_succeeded, int64(summary.Succeeded))

	// outcomes are journaled even when the run was interrupted
	if u.journal != nil && len(entries) > 0 {
		err := u.journal.Append(context.WithoutCancel(ctx), entries...)
		if err != nil {
			u.tel.ReportWarning(report_run_journal, err)
		}
	}

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		u.reporter.Summary(summary)
		return summary, err
	}

	if !opts.DryRun && summary.Succeeded > 0 {
		err := u.saver.Save(records)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "save failed")
			u.reporter.Summary(summary)
			return summary, fmt.Errorf("save venues: %w", err)
		}
		summary.Saved = true
	}

	u.reporter.Summary(summary)
	return summary, nil
}

// process never panics, a panicking collaborator fails the stage it was called from.
func (u Updater) process(ctx context.Context, record *venue.Record, dryRun bool) (outcome Outcome) {
	ctx, span := tracer.Start(ctx, "process")
	defer span.End()
	span.SetAttributes(attribute.String("venue", record.Name))

	outcome = Outcome{Venue: record.Name}
	stage := history.StatusAcquireFailed
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("panic: %v", r)
		u.tel.ReportBroken(report_run_panic, record.Name, err)
		span.RecordError(err)
		outcome = Outcome{Venue: record.Name, Status: stage, Err: err}
	}()

	text, err := u.acquirer.Load(ctx, record.PricesSource)
	if err != nil {
		u.tel.ReportWarning(report_run_acquire, record.Name, err)
		span.RecordError(err)
		outcome.Status = history.StatusAcquireFailed
		outcome.Err = err
		return outcome
	}

	stage = history.StatusExtractFailed
	proposal, err := u.extractor.Extract(ctx, record.Name, record.Courts, text)
	if err != nil {
		u.tel.ReportWarning(report_run_extract, record.Name, err)
		span.RecordError(err)
		outcome.Status = history.StatusExtractFailed
		outcome.Err = err
		return outcome
	}

	outcome.Status = history.StatusSucceeded
	outcome.Proposal = &proposal
	outcome.Unmatched = merge.Unmatched(record.Courts, proposal)

	courts, changed := merge.Courts(record.Courts, proposal)
	outcome.Changed = changed
	if !dryRun {
		record.Courts = courts
	}
	return outcome
}
