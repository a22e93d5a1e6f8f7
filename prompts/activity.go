package prompts

import (
	"context"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/types"
)

// ActivityPrompt waits for any inbound activity, message or not, and lets
// its validator decide when to complete. The validator is mandatory since
// every activity "recognizes".
type ActivityPrompt struct {
	dialog.BaseDialog
	validator Validator[*types.Activity]
}

// NewActivityPrompt creates an activity prompt with the required
// validator.
func NewActivityPrompt(id string, validator Validator[*types.Activity]) (*ActivityPrompt, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "prompt id must not be empty")
	}
	if validator == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "activity prompt requires a validator")
	}
	return &ActivityPrompt{BaseDialog: dialog.NewBaseDialog(id), validator: validator}, nil
}

func (p *ActivityPrompt) BeginDialog(ctx context.Context, dc *dialog.Context, options any) (dialog.TurnResult, error) {
	if options == nil {
		return dialog.TurnResult{}, types.NewErrorf(types.ErrInvalidArgument, "prompt %q requires options", p.ID())
	}
	opts, ok := options.(Options)
	if !ok {
		return dialog.TurnResult{}, types.NewErrorf(types.ErrOptionsType, "prompt %q options must implement Options, got %T", p.ID(), options)
	}
	bag, hasBag := dc.ActiveDialogState()
	if !hasBag {
		return dialog.TurnResult{}, types.NewError(types.ErrStateNotLoaded, "prompt begun without an active instance")
	}
	bag[persistedOptionsKey] = encodeOptions(opts)
	bag[persistedStateKey] = map[string]any{attemptCountKey: 0}

	if err := renderDefault(ctx, dc.Turn(), opts, false); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *ActivityPrompt) ContinueDialog(ctx context.Context, dc *dialog.Context) (dialog.TurnResult, error) {
	bag, _ := dc.ActiveDialogState()
	opts, err := DecodeOptions(bag[persistedOptionsKey])
	if err != nil {
		return dialog.TurnResult{}, err
	}
	bag[persistedOptionsKey] = encodeOptions(opts)
	state, ok := bag[persistedStateKey].(map[string]any)
	if !ok {
		state = map[string]any{attemptCountKey: 0}
		bag[persistedStateKey] = state
	}
	attempt := intFromState(state, attemptCountKey) + 1
	state[attemptCountKey] = attempt

	valid, err := p.validator(ctx, &ValidatorContext[*types.Activity]{
		Turn:         dc.Turn(),
		Recognized:   Recognized[*types.Activity]{Value: dc.Turn().Activity(), Succeeded: true},
		State:        state,
		Options:      opts,
		AttemptCount: attempt,
	})
	if err != nil {
		return dialog.TurnResult{}, err
	}
	if valid {
		return dc.EndDialog(ctx, dc.Turn().Activity())
	}
	// Unlike typed prompts, the activity prompt re-prompts on every turn.
	if err := renderDefault(ctx, dc.Turn(), opts, true); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *ActivityPrompt) ResumeDialog(ctx context.Context, dc *dialog.Context, reason dialog.Reason, result any) (dialog.TurnResult, error) {
	if err := p.RepromptDialog(ctx, dc.Turn(), dc.ActiveDialog()); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *ActivityPrompt) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *dialog.Instance) error {
	if instance == nil {
		return nil
	}
	opts, err := DecodeOptions(instance.State[persistedOptionsKey])
	if err != nil {
		return err
	}
	return renderDefault(ctx, tc, opts, false)
}
