package prompts

import (
	"context"

	"github.com/convoflow/convoflow/recognizers"
	"github.com/convoflow/convoflow/types"
)

// FoundChoice is the result a choice prompt completes with.
type FoundChoice = recognizers.FoundChoice

// ChoicePrompt asks the user to pick from a list of choices, accepting the
// choice value, a synonym or its one-based position.
type ChoicePrompt struct {
	*Prompt[FoundChoice]
	style ListStyle
}

// NewChoicePrompt creates a choice prompt. validator may be nil. Choices
// are supplied per invocation through PromptOptions.Choices.
func NewChoicePrompt(id string, validator Validator[FoundChoice]) (*ChoicePrompt, error) {
	cp := &ChoicePrompt{style: ListStyleAuto}
	base, err := NewPrompt(id, recognizeListChoice, cp.renderChoices, validator)
	if err != nil {
		return nil, err
	}
	cp.Prompt = base
	return cp, nil
}

// SetStyle overrides the default auto rendering.
func (p *ChoicePrompt) SetStyle(style ListStyle) { p.style = style }

func (p *ChoicePrompt) renderChoices(ctx context.Context, tc *types.TurnContext, options Options, isRetry bool) error {
	po, err := promptOptionsFrom(options)
	if err != nil {
		return err
	}
	base := po.Prompt
	if isRetry && po.RetryPrompt != nil {
		base = po.RetryPrompt
	}
	style := p.style
	if po.Style != "" {
		style = po.Style
	}
	msg := composeChoices(base, po.Choices, style)
	_, err = tc.SendActivity(ctx, msg)
	return err
}

func recognizeListChoice(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[FoundChoice], error) {
	po, err := promptOptionsFrom(options)
	if err != nil {
		return Recognized[FoundChoice]{}, err
	}
	found, ok := recognizers.RecognizeChoice(tc.Activity().Text, recognizerChoices(po.Choices))
	if !ok {
		return Recognized[FoundChoice]{}, nil
	}
	return Recognized[FoundChoice]{Value: found, Succeeded: true}, nil
}
