package recognizers

import (
	"strings"
	"time"
)

// DateTimeResolution is one way of reading a date or time out of an
// utterance. Timex is the normalized form, Value the concrete reading.
type DateTimeResolution struct {
	Timex string
	Value string
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
}

var timeLayouts = []string{
	"15:04",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

// RecognizeDateTime extracts date or time resolutions from the utterance.
// Returns false when nothing parses.
func RecognizeDateTime(utterance string) ([]DateTimeResolution, bool) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil, false
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		if parsed.Hour() == 0 && parsed.Minute() == 0 && parsed.Second() == 0 && !strings.ContainsAny(text, ":T") {
			value := parsed.Format("2006-01-02")
			return []DateTimeResolution{{Timex: value, Value: value}}, true
		}
		return []DateTimeResolution{{
			Timex: parsed.Format("2006-01-02T15:04"),
			Value: parsed.Format("2006-01-02 15:04:05"),
		}}, true
	}

	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, strings.ToUpper(text))
		if err != nil {
			continue
		}
		value := parsed.Format("15:04:05")
		return []DateTimeResolution{{Timex: "T" + parsed.Format("15:04"), Value: value}}, true
	}

	return nil, false
}
