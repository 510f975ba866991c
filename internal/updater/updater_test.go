package updater

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtprices/internal/acquire"
	"courtprices/internal/components/chrono"
	"courtprices/internal/components/telemetry"
	"courtprices/internal/history"
	"courtprices/internal/venue"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var ignoreStoreState = cmpopts.IgnoreUnexported(venue.Record{}, venue.CourtSpec{})

type fakeAcquirer struct {
	pages  map[string]string
	failOn map[string]error
	loaded []string
}

func (f *fakeAcquirer) Load(ctx context.Context, url string) (string, error) {
	f.loaded = append(f.loaded, url)
	if err, ok := f.failOn[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

type fakeExtractor struct {
	proposals map[string]venue.Proposal
	failOn    map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, venueName string, courts []venue.CourtSpec, pageText string) (venue.Proposal, error) {
	if err, ok := f.failOn[venueName]; ok {
		return venue.Proposal{}, err
	}
	return f.proposals[venueName], nil
}

type fakeSaver struct {
	saves int
	saved []venue.Record
	err   error
}

func (f *fakeSaver) Save(records []venue.Record) error {
	f.saves++
	if f.err != nil {
		return f.err
	}
	f.saved = records
	return nil
}

type fakeJournal struct {
	entries []history.Entry
	err     error
}

func (f *fakeJournal) Append(ctx context.Context, entries ...history.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

type fakeReporter struct {
	started  []string
	outcomes []Outcome
	summary  *Summary
}

func (f *fakeReporter) Start(venueName, source string) {
	f.started = append(f.started, venueName)
}

func (f *fakeReporter) Outcome(o Outcome) {
	f.outcomes = append(f.outcomes, o)
}

func (f *fakeReporter) Summary(s Summary) {
	f.summary = &s
}

type fixture struct {
	acquirer  *fakeAcquirer
	extractor *fakeExtractor
	saver     *fakeSaver
	journal   *fakeJournal
	reporter  *fakeReporter
	tel       *telemetry.Recorder
	updater   Updater
}

var now = time.Date(2025, 10, 2, 9, 30, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		acquirer: &fakeAcquirer{
			pages: map[string]string{
				"https://clubx.example/cennik": "Cennik: hala 120 zł",
				"https://cluby.example/ceny":   "Ceny: balon 100 zł",
			},
			failOn: map[string]error{},
		},
		extractor: &fakeExtractor{
			proposals: map[string]venue.Proposal{
				"Club X": winterProposal(),
				"Club Y": {
					From: "2025-10-01",
					To:   "2026-05-01",
					Courts: []venue.ProposedCourt{
						{Type: "balloon", Surface: "hard", Schedule: schedule("*:6-23", "100")},
					},
				},
			},
			failOn: map[string]error{},
		},
		saver:    &fakeSaver{},
		journal:  &fakeJournal{},
		reporter: &fakeReporter{},
		tel:      &telemetry.Recorder{},
	}
	f.updater = New(Deps{
		Acquirer:  f.acquirer,
		Extractor: f.extractor,
		Saver:     f.saver,
		Reporter:  f.reporter,
		Journal:   f.journal,
		Time:      chrono.FixedTime{Instant: now},
		Tel:       f.tel,
	})
	return f
}

func schedule(pairs ...string) venue.Schedule {
	out := venue.Schedule{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, venue.Rule{Key: pairs[i], Price: venue.StringPrice(pairs[i+1])})
	}
	return out
}

func winterProposal() venue.Proposal {
	return venue.Proposal{
		Season: "winter",
		From:   "2025-10-01",
		To:     "2026-05-01",
		Courts: []venue.ProposedCourt{
			{Type: "indoor", Surface: "clay", Schedule: schedule("*:6-15", "120")},
			{Type: "outdoor", Surface: "clay", Schedule: venue.Schedule{}},
			{Type: "tent", Surface: "grass", Schedule: schedule("*:6-23", "90")},
		},
	}
}

func venues() []venue.Record {
	return []venue.Record{
		{
			Name:         "Club X",
			PricesSource: "https://clubx.example/cennik",
			Courts: []venue.CourtSpec{
				{Type: "indoor", Surface: "clay", Courts: []venue.CourtID{"1", "2"}},
				{Type: "outdoor", Surface: "clay", Courts: []venue.CourtID{"3"}, Prices: []venue.PriceWindow{
					{From: "2025-05-01", To: "2025-10-01", Schedule: schedule("*:7-22", "80")},
				}},
			},
		},
		{
			Name:   "No Website",
			Courts: []venue.CourtSpec{{Type: "indoor", Surface: "hard"}},
		},
		{
			Name:         "Club Y",
			PricesSource: "https://cluby.example/ceny",
			Courts: []venue.CourtSpec{
				{Type: "balloon", Surface: "hard", Courts: []venue.CourtID{"1"}},
			},
		},
	}
}

func TestRunClubX(t *testing.T) {
	f := newFixture()
	records := venues()

	summary, err := f.updater.Run(context.Background(), records, Options{Venue: "Club X"})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Attempted)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Changed)
	require.True(t, summary.Saved)
	require.Equal(t, []string{"https://clubx.example/cennik"}, f.acquirer.loaded)

	expected := []venue.CourtSpec{
		{Type: "indoor", Surface: "clay", Courts: []venue.CourtID{"1", "2"}, Prices: []venue.PriceWindow{
			{From: "2025-10-01", To: "2026-05-01", Schedule: schedule("*:6-15", "120")},
		}},
		{Type: "outdoor", Surface: "clay", Courts: []venue.CourtID{"3"}, Prices: []venue.PriceWindow{
			{From: "2025-05-01", To: "2025-10-01", Schedule: schedule("*:7-22", "80")},
			{From: "2025-10-01", To: "2026-05-01", Schedule: venue.Schedule{}},
		}},
	}
	diff := cmp.Diff(expected, records[0].Courts, ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Equal(t, 1, f.saver.saves)
	require.Len(t, f.reporter.outcomes, 1)
	outcome := f.reporter.outcomes[0]
	require.Equal(t, history.StatusSucceeded, outcome.Status)
	require.Equal(t, []venue.ProposedCourt{
		{Type: "tent", Surface: "grass", Schedule: schedule("*:6-23", "90")},
	}, outcome.Unmatched)

	require.Len(t, f.journal.entries, 1)
	entry := f.journal.entries[0]
	require.Equal(t, summary.RunID, entry.RunID)
	require.Equal(t, now, entry.Time)
	require.True(t, entry.Changed)
	require.NotNil(t, entry.Proposal)
	require.NotNil(t, f.reporter.summary)
}

func TestRunAll(t *testing.T) {
	f := newFixture()
	records := venues()

	summary, err := f.updater.Run(context.Background(), records, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Attempted, "venues without a source are not attempted")
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, []string{"Club X", "Club Y"}, f.reporter.started)
	require.Equal(t, 1, f.saver.saves, "everything is saved in one write")
	require.Len(t, records[2].Courts[0].Prices, 1)
}

func TestRunDryRun(t *testing.T) {
	f := newFixture()
	records := venues()
	original := venues()

	summary, err := f.updater.Run(context.Background(), records, Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.False(t, summary.Saved)
	require.Zero(t, f.saver.saves)

	diff := cmp.Diff(original, records, ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}

	// the proposal is still reported and journaled
	require.Len(t, f.reporter.outcomes, 2)
	require.NotNil(t, f.reporter.outcomes[0].Proposal)
	require.True(t, f.reporter.outcomes[0].Changed)
	for _, e := range f.journal.entries {
		require.True(t, e.DryRun)
	}
}

func TestRunVenueNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.updater.Run(context.Background(), venues(), Options{Venue: "club x"})
	require.ErrorIs(t, err, ErrVenueNotFound)
	require.Empty(t, f.acquirer.loaded)
	require.Zero(t, f.saver.saves)
	require.Empty(t, f.journal.entries)
}

func TestRunFailures(t *testing.T) {
	f := newFixture()
	f.acquirer.failOn["https://clubx.example/cennik"] = errors.New("navigation timeout")

	records := venues()
	summary, err := f.updater.Run(context.Background(), records, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Attempted)
	require.Equal(t, 1, summary.Succeeded)
	require.True(t, summary.Saved)
	require.Empty(t, records[0].Courts[0].Prices, "a failed venue is left alone")

	statuses := []history.Status{}
	for _, e := range f.journal.entries {
		statuses = append(statuses, e.Status)
	}
	require.Equal(t, []history.Status{history.StatusAcquireFailed, history.StatusSucceeded}, statuses)
	require.Equal(t, "navigation timeout", f.journal.entries[0].Detail)
	require.Len(t, f.tel.Reports("warning"), 1)
}

func TestRunNothingSucceeded(t *testing.T) {
	f := newFixture()
	f.extractor.failOn["Club X"] = errors.New("malformed")
	f.extractor.failOn["Club Y"] = errors.New("malformed")

	summary, err := f.updater.Run(context.Background(), venues(), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Attempted)
	require.Zero(t, summary.Succeeded)
	require.False(t, summary.Saved)
	require.Zero(t, f.saver.saves)
	require.Equal(t, history.StatusExtractFailed, f.reporter.outcomes[0].Status)
}

func TestRunSaveFails(t *testing.T) {
	f := newFixture()
	f.saver.err = errors.New("disk full")

	summary, err := f.updater.Run(context.Background(), venues(), Options{})
	require.ErrorIs(t, err, f.saver.err)
	require.False(t, summary.Saved)
	require.NotNil(t, f.reporter.summary)
}

func TestRunJournalFails(t *testing.T) {
	f := newFixture()
	f.journal.err = errors.New("database is locked")

	summary, err := f.updater.Run(context.Background(), venues(), Options{})
	require.NoError(t, err)
	require.True(t, summary.Saved)

	warnings := f.tel.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "updater: run.journal", warnings[0].ID)
}

func TestRunWithoutJournal(t *testing.T) {
	f := newFixture()
	u := New(Deps{
		Acquirer:  f.acquirer,
		Extractor: f.extractor,
		Saver:     f.saver,
		Reporter:  f.reporter,
		Time:      chrono.FixedTime{Instant: now},
		Tel:       f.tel,
	})

	summary, err := u.Run(context.Background(), venues(), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.updater.Run(ctx, venues(), Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, summary.Attempted)
	require.Empty(t, f.acquirer.loaded)
}

// cancellingExtractor cancels the run once the first venue is extracted.
type cancellingExtractor struct {
	*fakeExtractor
	cancel context.CancelFunc
}

func (c cancellingExtractor) Extract(ctx context.Context, venueName string, courts []venue.CourtSpec, pageText string) (venue.Proposal, error) {
	defer c.cancel()
	return c.fakeExtractor.Extract(ctx, venueName, courts, pageText)
}

func TestRunCancelledMidway(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := New(Deps{
		Acquirer:  f.acquirer,
		Extractor: cancellingExtractor{fakeExtractor: f.extractor, cancel: cancel},
		Saver:     f.saver,
		Reporter:  f.reporter,
		Journal:   f.journal,
		Time:      chrono.FixedTime{Instant: now},
		Tel:       f.tel,
	})

	summary, err := u.Run(ctx, venues(), Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, summary.Attempted)
	require.Equal(t, 1, summary.Succeeded)
	require.False(t, summary.Saved)
	require.Zero(t, f.saver.saves, "an interrupted run leaves the courts file alone")
	require.Equal(t, []string{"https://clubx.example/cennik"}, f.acquirer.loaded)

	require.Len(t, f.journal.entries, 1, "completed venues are still journaled")
	require.NotNil(t, f.reporter.summary)
}

type panickingAcquirer struct {
	*fakeAcquirer
	url string
}

func (p panickingAcquirer) Load(ctx context.Context, url string) (string, error) {
	if url == p.url {
		panic("nil page")
	}
	return p.fakeAcquirer.Load(ctx, url)
}

type panickingExtractor struct {
	*fakeExtractor
	venue string
}

func (p panickingExtractor) Extract(ctx context.Context, venueName string, courts []venue.CourtSpec, pageText string) (venue.Proposal, error) {
	if venueName == p.venue {
		panic("unexpected response shape")
	}
	return p.fakeExtractor.Extract(ctx, venueName, courts, pageText)
}

func TestRunRecoversFromPanics(t *testing.T) {
	testCases := []struct {
		name   string
		deps   func(f *fixture) (acquire.Acquirer, Extractor)
		status history.Status
	}{
		{
			name: "acquirer",
			deps: func(f *fixture) (acquire.Acquirer, Extractor) {
				return panickingAcquirer{fakeAcquirer: f.acquirer, url: "https://clubx.example/cennik"}, f.extractor
			},
			status: history.StatusAcquireFailed,
		},
		{
			name: "extractor",
			deps: func(f *fixture) (acquire.Acquirer, Extractor) {
				return f.acquirer, panickingExtractor{fakeExtractor: f.extractor, venue: "Club X"}
			},
			status: history.StatusExtractFailed,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture()
			acquirer, extractor := test.deps(f)
			u := New(Deps{
				Acquirer:  acquirer,
				Extractor: extractor,
				Saver:     f.saver,
				Reporter:  f.reporter,
				Journal:   f.journal,
				Time:      chrono.FixedTime{Instant: now},
				Tel:       f.tel,
			})

			records := venues()
			summary, err := u.Run(context.Background(), records, Options{})
			require.NoError(t, err)
			require.Equal(t, 2, summary.Attempted)
			require.Equal(t, 1, summary.Succeeded, "the next venue still runs")
			require.True(t, summary.Saved)
			require.Empty(t, records[0].Courts[0].Prices)
			require.Len(t, records[2].Courts[0].Prices, 1)

			outcome := f.reporter.outcomes[0]
			require.Equal(t, test.status, outcome.Status)
			require.ErrorContains(t, outcome.Err, "panic")
			require.True(t, f.tel.HasBroken("run.panic"))
		})
	}
}
