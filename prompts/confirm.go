package prompts

import (
	"context"

	"github.com/convoflow/convoflow/recognizers"
	"github.com/convoflow/convoflow/types"
)

// ConfirmPrompt asks a yes/no question, rendering Yes and No choices and
// accepting either the words or a choice selection.
type ConfirmPrompt struct {
	*Prompt[bool]
	style ListStyle
}

var confirmChoices = []Choice{{Value: "Yes"}, {Value: "No"}}

// NewConfirmPrompt creates a confirm prompt. validator may be nil.
func NewConfirmPrompt(id string, validator Validator[bool]) (*ConfirmPrompt, error) {
	cp := &ConfirmPrompt{style: ListStyleInline}
	base, err := NewPrompt(id, recognizeConfirm, cp.renderConfirm, validator)
	if err != nil {
		return nil, err
	}
	cp.Prompt = base
	return cp, nil
}

// SetStyle overrides the default inline rendering of the Yes/No choices.
func (p *ConfirmPrompt) SetStyle(style ListStyle) { p.style = style }

func (p *ConfirmPrompt) renderConfirm(ctx context.Context, tc *types.TurnContext, options Options, isRetry bool) error {
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
	msg := composeChoices(base, confirmChoices, style)
	_, err = tc.SendActivity(ctx, msg)
	return err
}

func recognizeConfirm(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[bool], error) {
	text := tc.Activity().Text
	if b, ok := recognizers.RecognizeBoolean(text); ok {
		return Recognized[bool]{Value: b, Succeeded: true}, nil
	}
	if found, ok := recognizers.RecognizeChoice(text, recognizerChoices(confirmChoices)); ok {
		return Recognized[bool]{Value: found.Index == 0, Succeeded: true}, nil
	}
	return Recognized[bool]{}, nil
}
