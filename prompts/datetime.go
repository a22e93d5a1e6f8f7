package prompts

import (
	"context"

	"github.com/convoflow/convoflow/recognizers"
	"github.com/convoflow/convoflow/types"
)

// DateTimeResolution is one reading of the user's date or time answer.
type DateTimeResolution = recognizers.DateTimeResolution

// DateTimePrompt asks for a date or time and completes with the parsed
// resolutions.
type DateTimePrompt struct {
	*Prompt[[]DateTimeResolution]
}

// NewDateTimePrompt creates a datetime prompt. validator may be nil.
func NewDateTimePrompt(id string, validator Validator[[]DateTimeResolution]) (*DateTimePrompt, error) {
	base, err := NewPrompt(id, recognizeDateTime, nil, validator)
	if err != nil {
		return nil, err
	}
	return &DateTimePrompt{Prompt: base}, nil
}

func recognizeDateTime(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[[]DateTimeResolution], error) {
	resolutions, ok := recognizers.RecognizeDateTime(tc.Activity().Text)
	if !ok {
		return Recognized[[]DateTimeResolution]{}, nil
	}
	return Recognized[[]DateTimeResolution]{Value: resolutions, Succeeded: true}, nil
}
