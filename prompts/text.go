package prompts

import (
	"context"
	"strings"

	"github.com/convoflow/convoflow/types"
)

// TextPrompt asks for free-form text and succeeds on any non-empty reply.
type TextPrompt struct {
	*Prompt[string]
}

// NewTextPrompt creates a text prompt. validator may be nil.
func NewTextPrompt(id string, validator Validator[string]) (*TextPrompt, error) {
	base, err := NewPrompt(id, recognizeText, nil, validator)
	if err != nil {
		return nil, err
	}
	return &TextPrompt{Prompt: base}, nil
}

func recognizeText(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[string], error) {
	text := tc.Activity().Text
	if strings.TrimSpace(text) == "" {
		return Recognized[string]{}, nil
	}
	return Recognized[string]{Value: text, Succeeded: true}, nil
}
