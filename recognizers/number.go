// Package recognizers extracts typed values (numbers, booleans, choices,
// dates) from free-form user utterances. Prompts use these to turn message
// text into results.
package recognizers

import (
	"strconv"
	"strings"
)

var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]float64{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// RecognizeNumber extracts the first number found in the utterance, either
// as digits ("64", "3.14", "1,250") or as common English words
// ("sixty-four"). Returns false when no number is present.
func RecognizeNumber(utterance string) (float64, bool) {
	for _, token := range Tokenize(utterance) {
		if n, ok := parseNumericToken(token); ok {
			return n, true
		}
		if n, ok := parseWordNumber(token); ok {
			return n, true
		}
	}
	return 0, false
}

func parseNumericToken(token string) (float64, bool) {
	cleaned := strings.TrimFunc(token, func(r rune) bool {
		return r == '$' || r == '%' || r == '.' || r == ','
	})
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseWordNumber handles single word numbers and hyphenated tens like
// "sixty-four".
func parseWordNumber(token string) (float64, bool) {
	word := strings.ToLower(token)
	if n, ok := numberWords[word]; ok {
		return n, true
	}
	if n, ok := tensWords[word]; ok {
		return n, true
	}
	tens, units, found := strings.Cut(word, "-")
	if !found {
		return 0, false
	}
	t, okTens := tensWords[tens]
	u, okUnits := numberWords[units]
	if !okTens || !okUnits || u >= 10 {
		return 0, false
	}
	return t + u, true
}

// Tokenize splits an utterance into words, stripping surrounding
// punctuation but keeping characters meaningful inside numbers.
func Tokenize(utterance string) []string {
	fields := strings.Fields(utterance)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.TrimFunc(f, func(r rune) bool {
			switch r {
			case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '[', ']':
				return true
			}
			return false
		})
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
