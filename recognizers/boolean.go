package recognizers

import "strings"

var affirmative = map[string]bool{
	"yes": true, "y": true, "yep": true, "yeah": true, "sure": true,
	"ok": true, "okay": true, "true": true, "confirm": true, "please": true,
	"absolutely": true, "certainly": true,
}

var negative = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true, "false": true,
	"never": true, "cancel": true, "negative": true,
}

// RecognizeBoolean extracts a yes/no answer from the utterance. Returns
// false in the second result when the utterance is neither.
func RecognizeBoolean(utterance string) (bool, bool) {
	for _, token := range Tokenize(utterance) {
		word := strings.ToLower(token)
		if affirmative[word] {
			return true, true
		}
		if negative[word] {
			return false, true
		}
	}
	return false, false
}
