package recognizers

import (
	"sort"
	"strings"
)

// Choice is one selectable option with optional synonyms that also count
// as a match.
type Choice struct {
	Value    string
	Synonyms []string
}

// FoundChoice is one recognized choice with its position in the choice
// list and a confidence score in (0, 1].
type FoundChoice struct {
	Value   string
	Index   int
	Score   float64
	Synonym string
}

// FindChoices matches an utterance against a list of choices by value or
// synonym. Results are sorted by descending score with at most one result
// per choice.
func FindChoices(utterance string, choices []Choice) []FoundChoice {
	utteranceTokens := foldTokens(utterance)
	if len(utteranceTokens) == 0 {
		return nil
	}

	best := map[int]FoundChoice{}
	for index, choice := range choices {
		labels := append([]string{choice.Value}, choice.Synonyms...)
		for _, label := range labels {
			score := matchScore(utteranceTokens, foldTokens(label))
			if score <= 0 {
				continue
			}
			found := FoundChoice{Value: choice.Value, Index: index, Score: score}
			if label != choice.Value {
				found.Synonym = label
			}
			if prev, ok := best[index]; !ok || score > prev.Score {
				best[index] = found
			}
		}
	}

	results := make([]FoundChoice, 0, len(best))
	for _, f := range best {
		results = append(results, f)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})
	return results
}

// RecognizeChoice returns the single best choice for the utterance. It
// also accepts a one-based position ("1", "2") as a selection.
func RecognizeChoice(utterance string, choices []Choice) (FoundChoice, bool) {
	if n, ok := RecognizeNumber(utterance); ok {
		index := int(n) - 1
		if float64(index+1) == n && index >= 0 && index < len(choices) {
			return FoundChoice{Value: choices[index].Value, Index: index, Score: 1}, true
		}
	}
	found := FindChoices(utterance, choices)
	if len(found) == 0 {
		return FoundChoice{}, false
	}
	return found[0], true
}

// matchScore scores how well a label matches the utterance: 1.0 for an
// exact token-for-token match, otherwise coverage-weighted containment of
// the label's tokens in the utterance.
func matchScore(utteranceTokens, labelTokens []string) float64 {
	if len(labelTokens) == 0 {
		return 0
	}
	if equalTokens(utteranceTokens, labelTokens) {
		return 1
	}
	if !containsTokens(utteranceTokens, labelTokens) {
		return 0
	}
	coverage := float64(len(labelTokens)) / float64(len(utteranceTokens))
	return 0.5 + 0.4*coverage
}

func foldTokens(s string) []string {
	tokens := Tokenize(s)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// containsTokens reports whether needle appears as a contiguous run inside
// haystack.
func containsTokens(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		if equalTokens(haystack[start:start+len(needle)], needle) {
			return true
		}
	}
	return false
}
