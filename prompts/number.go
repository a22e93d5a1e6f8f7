package prompts

import (
	"context"

	"github.com/convoflow/convoflow/recognizers"
	"github.com/convoflow/convoflow/types"
)

// NumberPrompt asks for a number, accepting digits or written numbers.
type NumberPrompt struct {
	*Prompt[float64]
}

// NewNumberPrompt creates a number prompt. validator may be nil.
func NewNumberPrompt(id string, validator Validator[float64]) (*NumberPrompt, error) {
	base, err := NewPrompt(id, recognizeNumber, nil, validator)
	if err != nil {
		return nil, err
	}
	return &NumberPrompt{Prompt: base}, nil
}

func recognizeNumber(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[float64], error) {
	n, ok := recognizers.RecognizeNumber(tc.Activity().Text)
	if !ok {
		return Recognized[float64]{}, nil
	}
	return Recognized[float64]{Value: n, Succeeded: true}, nil
}
