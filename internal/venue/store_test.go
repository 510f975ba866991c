package venue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const courtsFixture = `# venues of wroclaw
- id: club-x
  name: Club X
  address: ul. Testowa 1
  prices_source: https://club-x.example/cennik
  courts:
    - surface: clay
      type: indoor
      courts: [1, 2, "3a"]
      prices:
        - from: 2024-10-01
          to: 2025-05-01
          schedule:
            "*:6-15": '100'
            "*:15-23": '130'
            su:6-23: 120
    - surface: clay
      type: outdoor
      courts: [4]
      prices: []
- id: no-source
  name: Quiet Club
  courts: []
`

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courts.yaml")
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	store := NewStore(writeFixture(t, courtsFixture))
	records, err := store.Load()
	require.NoError(t, err)
	require.False(t, store.Bare())
	require.Len(t, records, 2)

	club := records[0]
	require.Equal(t, "Club X", club.Name)
	require.True(t, club.HasSource())
	require.Len(t, club.Courts, 2)
	require.Equal(t, []CourtID{"1", "2", "3a"}, club.Courts[0].Courts)

	window := club.Courts[0].Prices[0]
	require.Equal(t, Date("2024-10-01"), window.From)
	require.Equal(t, Date("2025-05-01"), window.To)
	require.Equal(t, Schedule{
		{Key: "*:6-15", Price: Price{Text: "100"}},
		{Key: "*:15-23", Price: Price{Text: "130"}},
		{Key: "su:6-23", Price: Price{Text: "120", Number: true}},
	}, window.Schedule)

	require.False(t, records[1].HasSource())
}

func TestLoadBareVenue(t *testing.T) {
	store := NewStore(writeFixture(t, `name: Solo
prices_source: https://solo.example
courts:
  - type: tent
    surface: hard
    courts: [1]
`))
	records, err := store.Load()
	require.NoError(t, err)
	require.True(t, store.Bare())
	require.Len(t, records, 1)
	require.Equal(t, "Solo", records[0].Name)
	require.Nil(t, records[0].Courts[0].Prices)
}

func TestLoadRejectsScalarDocument(t *testing.T) {
	_, err := NewStore(writeFixture(t, "just a string\n")).Load()
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeFixture(t, courtsFixture)
	store := NewStore(path)
	records, err := store.Load()
	require.NoError(t, err)

	records[0].Courts[1].Prices = append(records[0].Courts[1].Prices, PriceWindow{
		From:     "2025-10-01",
		To:       "2026-05-01",
		Schedule: Schedule{},
	})
	err = store.Save(records)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	// keys this program does not model and the comment are kept
	require.Contains(t, text, "# venues of wroclaw")
	require.Contains(t, text, "address: ul. Testowa 1")
	require.Contains(t, text, "id: no-source")
	// key order of an untouched mapping is kept
	require.Less(t, strings.Index(text, "id: club-x"), strings.Index(text, "name: Club X"))
	require.Contains(t, text, "from: 2025-10-01")

	reloaded, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, reloaded[0].Courts[1].Prices, 1)
	require.Equal(t, Date("2026-05-01"), reloaded[0].Courts[1].Prices[0].To)
	require.True(t, reloaded[0].Courts[0].Prices[0].Equal(records[0].Courts[0].Prices[0]))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file should not be left behind")
}

func TestSaveAddsMissingPricesKey(t *testing.T) {
	path := writeFixture(t, `name: Solo
courts:
  - type: tent
    surface: hard
    courts: [1]
`)
	store := NewStore(path)
	records, err := store.Load()
	require.NoError(t, err)

	records[0].Courts[0].Prices = []PriceWindow{{
		From:     "2025-10-01",
		To:       "2026-05-01",
		Schedule: Schedule{{Key: "*:6-23", Price: StringPrice("90")}},
	}}
	require.NoError(t, store.Save(records))

	reloaded, err := NewStore(path).Load()
	require.NoError(t, err)
	price, ok := reloaded[0].Courts[0].Prices[0].Schedule.Get("*:6-23")
	require.True(t, ok)
	require.Equal(t, "90", price.Text)
	require.False(t, price.Number)
}

func TestSaveBeforeLoad(t *testing.T) {
	err := NewStore(filepath.Join(t.TempDir(), "courts.yaml")).Save(nil)
	require.Error(t, err)
}

func TestScheduleJSONKeepsOrder(t *testing.T) {
	var s Schedule
	err := json.Unmarshal([]byte(`{"su:6-23": "130", "*:6-15": 120, "*:15-23": "150"}`), &s)
	require.NoError(t, err)
	require.Equal(t, Schedule{
		{Key: "su:6-23", Price: Price{Text: "130"}},
		{Key: "*:6-15", Price: Price{Text: "120", Number: true}},
		{Key: "*:15-23", Price: Price{Text: "150"}},
	}, s)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	require.Equal(t, `{"su:6-23":"130","*:6-15":120,"*:15-23":"150"}`, string(out))
}

func TestScheduleJSONRejectsNestedValues(t *testing.T) {
	var s Schedule
	require.Error(t, json.Unmarshal([]byte(`{"*:6-15": {"pln": 120}}`), &s))
	require.Error(t, json.Unmarshal([]byte(`["*:6-15"]`), &s))
}

func TestScheduleJSONNull(t *testing.T) {
	var s Schedule
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	require.NotNil(t, s)
	require.Len(t, s, 0)
}
