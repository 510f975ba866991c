package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "Kort Główny", expected: "kort glowny"},
		{input: "CENNIK", expected: "cennik"},
		{input: "Ścieżka Żółta", expected: "sciezka zolta"},
		{input: "ŁÓDŹ", expected: "lodz"},
		{input: "", expected: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, Fold(test.input), test.input)
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "halaglowna", NormalizeName("  Hala \n Główna\t"))
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Korty Odkryte", []string{"odkryte"}))
	require.False(t, MatchName("Hala", []string{"namiot", "balon"}))
}

func TestContainsAny(t *testing.T) {
	require.True(t, ContainsAny("Zobacz CENY kortów", []string{"cennik", "ceny"}))
	require.True(t, ContainsAny("Korty w hali", []string{"KORT"}))
	require.False(t, ContainsAny("kontakt", []string{"cennik", ""}))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "zaż", Truncate("zażółć", 3))
	require.Equal(t, "abc", Truncate("abc", 10))
	require.Equal(t, "", Truncate("abc", 0))
}

func TestCollapseSpace(t *testing.T) {
	require.Equal(t, "a b c", CollapseSpace("  a \n\n b\tc "))
}
