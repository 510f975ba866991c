package extract

import (
	"fmt"
	"strings"

	"courtprices/internal/venue"
)

// DefaultPromptLimit is how many characters of page text are sent to the model.
const DefaultPromptLimit = 6000

const promptTemplate = `You are extracting tennis court pricing information for: %s

VENUE STRUCTURE:
%s

PRICING PAGE CONTENT:
%s

CONTENT FORMAT NOTES:
- The content may have sections marked with "===" headers for different court types (e.g., "=== Indoor ===" or "=== Dome ===")
- Each section contains pricing for that specific court type
- Parse pricing from the appropriate section matching each court type

YOUR TASK:
Extract the current WINTER season pricing (typically Oct/Nov %[4]d - Apr/May %[5]d).

IMPORTANT RULES:
1. **OUTDOOR courts are CLOSED in winter** - return empty schedule for outdoor courts
2. Only extract prices for INDOOR/TENT/BALLOON courts during winter
3. Prices are typically in PLN per hour
4. Common time slots: 6-15 (daytime), 15-23 (evening)
5. Common days: weekdays (mo-fr), weekends (sa, su), holidays (hl)
6. **If content has section headers (===), match pricing from the correct section to the court type**
7. Map court type names: "hala" = indoor, "namiot" = tent, "balon" = balloon, "odkryte" = outdoor

Return ONLY a JSON object with this structure:
{
  "season": "winter",
  "from": "%[6]s",
  "to": "%[7]s",
  "courts": [
    {
      "type": "indoor/tent/balloon/outdoor",
      "surface": "clay/hard/carpet/grass",
      "schedule": {
        "*:6-15": "120",
        "*:15-23": "150",
        "su:6-23": "130"
      }
    }
  ]
}

If outdoor courts exist, include them with empty schedule: {"schedule": {}}

RETURN ONLY VALID JSON, NO MARKDOWN, NO EXPLANATIONS.`

// describeCourts summarizes the declared court groups, one line per group.
func describeCourts(courts []venue.CourtSpec) string {
	lines := make([]string, 0, len(courts))
	for _, c := range courts {
		courtType := c.Type
		if courtType == "" {
			courtType = "unknown"
		}
		surface := c.Surface
		if surface == "" {
			surface = "unknown"
		}
		lines = append(lines, fmt.Sprintf("- %dx %s courts, surface: %s", len(c.Courts), courtType, surface))
	}
	return strings.Join(lines, "\n")
}

// buildPrompt renders the instruction for a venue, pageText must already be truncated.
func buildPrompt(venueName string, courts []venue.CourtSpec, pageText string, season Season) string {
	return fmt.Sprintf(
		promptTemplate,
		venueName,
		describeCourts(courts),
		pageText,
		season.startYear(),
		season.endYear(),
		season.From,
		season.To,
	)
}
