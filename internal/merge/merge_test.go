package merge

import (
	"testing"

	"courtprices/internal/venue"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var ignoreStoreState = cmpopts.IgnoreUnexported(venue.CourtSpec{})

func schedule(pairs ...string) venue.Schedule {
	out := venue.Schedule{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, venue.Rule{Key: pairs[i], Price: venue.StringPrice(pairs[i+1])})
	}
	return out
}

func clubX() []venue.CourtSpec {
	return []venue.CourtSpec{
		{Type: "indoor", Surface: "clay", Courts: []venue.CourtID{"1", "2"}, Prices: []venue.PriceWindow{}},
		{Type: "outdoor", Surface: "clay", Courts: []venue.CourtID{"3"}, Prices: []venue.PriceWindow{}},
	}
}

func winterProposal() venue.Proposal {
	return venue.Proposal{
		Season: "winter",
		From:   "2025-10-01",
		To:     "2026-05-01",
		Courts: []venue.ProposedCourt{
			{Type: "indoor", Surface: "clay", Schedule: schedule("*:6-15", "120")},
			{Type: "outdoor", Surface: "clay", Schedule: venue.Schedule{}},
		},
	}
}

func TestClubXScenario(t *testing.T) {
	updated, changed := Courts(clubX(), winterProposal())
	require.True(t, changed)

	expected := []venue.CourtSpec{
		{
			Type: "indoor", Surface: "clay", Courts: []venue.CourtID{"1", "2"},
			Prices: []venue.PriceWindow{{From: "2025-10-01", To: "2026-05-01", Schedule: schedule("*:6-15", "120")}},
		},
		{
			Type: "outdoor", Surface: "clay", Courts: []venue.CourtID{"3"},
			Prices: []venue.PriceWindow{{From: "2025-10-01", To: "2026-05-01", Schedule: venue.Schedule{}}},
		},
	}
	diff := cmp.Diff(expected, updated, ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestIdempotent(t *testing.T) {
	cases := [][]venue.CourtSpec{
		clubX(),
		{
			{Type: "indoor", Surface: "clay", Prices: []venue.PriceWindow{
				{From: "2025-10-01", To: "2026-05-01", Schedule: schedule("*:6-23", "99")},
			}},
		},
		nil,
	}

	for _, courts := range cases {
		once, _ := Courts(courts, winterProposal())
		twice, _ := Courts(once, winterProposal())
		diff := cmp.Diff(once, twice, ignoreStoreState)
		if diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestNonInterference(t *testing.T) {
	courts := append(clubX(), venue.CourtSpec{
		Type: "tent", Surface: "hard", Courts: []venue.CourtID{"7"},
		Prices: []venue.PriceWindow{{From: "2024-10-01", To: "2025-05-01", Schedule: schedule("*:7-22", "80")}},
	})
	before := venue.CloneCourts(courts)

	updated, _ := Courts(courts, winterProposal())
	diff := cmp.Diff(before[2], updated[2], ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}

	// the input is left as it was
	diff = cmp.Diff(before, courts, ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestUpsert(t *testing.T) {
	old := venue.PriceWindow{From: "2024-10-01", To: "2025-05-01", Schedule: schedule("*:6-23", "100")}
	current := venue.PriceWindow{From: "2025-10-01", To: "2026-05-01", Schedule: schedule("*:6-23", "110")}
	courts := []venue.CourtSpec{
		{Type: "indoor", Surface: "clay", Prices: []venue.PriceWindow{old, current}},
	}

	testCases := []struct {
		name     string
		proposal venue.Proposal
		expected []venue.PriceWindow
	}{
		{
			name: "same window is replaced in place",
			proposal: venue.Proposal{
				From: "2025-10-01", To: "2026-05-01",
				Courts: []venue.ProposedCourt{{Type: "indoor", Surface: "clay", Schedule: schedule("*:6-15", "120", "*:15-23", "150")}},
			},
			expected: []venue.PriceWindow{
				old,
				{From: "2025-10-01", To: "2026-05-01", Schedule: schedule("*:6-15", "120", "*:15-23", "150")},
			},
		},
		{
			name: "different window is appended",
			proposal: venue.Proposal{
				From: "2026-10-01", To: "2027-05-01",
				Courts: []venue.ProposedCourt{{Type: "indoor", Surface: "clay", Schedule: schedule("*:6-23", "130")}},
			},
			expected: []venue.PriceWindow{
				old,
				current,
				{From: "2026-10-01", To: "2027-05-01", Schedule: schedule("*:6-23", "130")},
			},
		},
		{
			name: "same from with a different to is a different window",
			proposal: venue.Proposal{
				From: "2025-10-01", To: "2026-04-01",
				Courts: []venue.ProposedCourt{{Type: "indoor", Surface: "clay", Schedule: schedule("*:6-23", "140")}},
			},
			expected: []venue.PriceWindow{
				old,
				current,
				{From: "2025-10-01", To: "2026-04-01", Schedule: schedule("*:6-23", "140")},
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			updated, changed := Courts(courts, test.proposal)
			require.True(t, changed)
			diff := cmp.Diff(test.expected, updated[0].Prices)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNoMatchIsSkipped(t *testing.T) {
	proposal := venue.Proposal{
		From: "2025-10-01", To: "2026-05-01",
		Courts: []venue.ProposedCourt{
			{Type: "balloon", Surface: "carpet", Schedule: schedule("*:6-23", "90")},
			{Type: "indoor", Surface: "hard", Schedule: schedule("*:6-23", "90")},
		},
	}
	updated, changed := Courts(clubX(), proposal)
	require.False(t, changed)
	require.Len(t, updated, 2)
	diff := cmp.Diff(clubX(), updated, ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Len(t, Unmatched(clubX(), proposal), 2)
	require.Len(t, Unmatched(clubX(), winterProposal()), 0)
}

func TestFirstMatchWins(t *testing.T) {
	courts := []venue.CourtSpec{
		{Type: "indoor", Surface: "clay", Courts: []venue.CourtID{"1"}},
		{Type: "indoor", Surface: "clay", Courts: []venue.CourtID{"2"}},
	}
	updated, changed := Courts(courts, winterProposal())
	require.True(t, changed)
	require.Len(t, updated[0].Prices, 1)
	require.Len(t, updated[1].Prices, 0)
}

func TestNilScheduleBecomesEmpty(t *testing.T) {
	proposal := venue.Proposal{
		From: "2025-10-01", To: "2026-05-01",
		Courts: []venue.ProposedCourt{{Type: "outdoor", Surface: "clay"}},
	}
	updated, changed := Courts(clubX(), proposal)
	require.True(t, changed)
	require.NotNil(t, updated[1].Prices[0].Schedule)
	require.Len(t, updated[1].Prices[0].Schedule, 0)
}

func TestEmptyProposal(t *testing.T) {
	updated, changed := Courts(clubX(), venue.Proposal{From: "2025-10-01", To: "2026-05-01"})
	require.False(t, changed)
	diff := cmp.Diff(clubX(), updated, ignoreStoreState)
	if diff != "" {
		t.Fatal(diff)
	}
}
