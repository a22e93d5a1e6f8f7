package prompts

import (
	"context"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/types"
)

// Keys inside a prompt's instance state bag.
const (
	persistedOptionsKey = "options"
	persistedStateKey   = "state"
	attemptCountKey     = "attemptCount"
)

// Recognized carries the outcome of one recognition attempt.
type Recognized[T any] struct {
	Value     T
	Succeeded bool
}

// ValidatorContext is what a validator sees: the turn, the recognition
// outcome, the persisted prompt state and how many attempts the user has
// made so far (including this one).
type ValidatorContext[T any] struct {
	Turn         *types.TurnContext
	Recognized   Recognized[T]
	State        map[string]any
	Options      Options
	AttemptCount int
}

// Validator decides whether a recognition outcome is acceptable. It runs
// even when recognition failed, so it can end the prompt on other grounds.
type Validator[T any] func(ctx context.Context, vc *ValidatorContext[T]) (bool, error)

// recognizeFunc extracts a typed value from the turn's activity.
type recognizeFunc[T any] func(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[T], error)

// renderFunc sends the prompt (or retry prompt) to the user.
type renderFunc func(ctx context.Context, tc *types.TurnContext, options Options, isRetry bool) error

// Prompt is the shared engine behind the typed prompts: persist options,
// show the prompt, recognize and validate each reply, retry until valid.
type Prompt[T any] struct {
	dialog.BaseDialog
	validator Validator[T]
	recognize recognizeFunc[T]
	render    renderFunc
	collector *metrics.Collector
}

// NewPrompt wires a typed prompt engine. Concrete prompts supply the
// recognize and render behavior; the validator may be nil, in which case
// recognition success decides.
func NewPrompt[T any](id string, recognize recognizeFunc[T], render renderFunc, validator Validator[T]) (*Prompt[T], error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "prompt id must not be empty")
	}
	if recognize == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "prompt recognizer must not be nil")
	}
	p := &Prompt[T]{
		BaseDialog: dialog.NewBaseDialog(id),
		validator:  validator,
		recognize:  recognize,
		render:     render,
		collector:  metrics.Default(),
	}
	if p.render == nil {
		p.render = renderDefault
	}
	return p, nil
}

// renderDefault sends options.Prompt, or the retry prompt when retrying.
func renderDefault(ctx context.Context, tc *types.TurnContext, options Options, isRetry bool) error {
	po, err := promptOptionsFrom(options)
	if err != nil {
		return err
	}
	activity := po.Prompt
	if isRetry && po.RetryPrompt != nil {
		activity = po.RetryPrompt
	}
	if activity == nil {
		return nil
	}
	_, err = tc.SendActivity(ctx, activity)
	return err
}

func (p *Prompt[T]) BeginDialog(ctx context.Context, dc *dialog.Context, options any) (dialog.TurnResult, error) {
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

	if err := p.render(ctx, dc.Turn(), opts, false); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *Prompt[T]) ContinueDialog(ctx context.Context, dc *dialog.Context) (dialog.TurnResult, error) {
	activity := dc.Turn().Activity()
	if activity == nil || activity.Type != types.ActivityMessage {
		return dialog.EndOfTurn, nil
	}

	bag, _ := dc.ActiveDialogState()
	opts, state, err := p.loadPersisted(bag)
	if err != nil {
		return dialog.TurnResult{}, err
	}

	attempt := intFromState(state, attemptCountKey) + 1
	state[attemptCountKey] = attempt

	recognized, err := p.recognize(ctx, dc.Turn(), state, opts)
	if err != nil {
		return dialog.TurnResult{}, err
	}

	valid := recognized.Succeeded
	if p.validator != nil {
		valid, err = p.validator(ctx, &ValidatorContext[T]{
			Turn:         dc.Turn(),
			Recognized:   recognized,
			State:        state,
			Options:      opts,
			AttemptCount: attempt,
		})
		if err != nil {
			return dialog.TurnResult{}, err
		}
	}
	p.collector.RecordPromptAttempt(p.ID(), valid)

	if valid {
		return dc.EndDialog(ctx, recognized.Value)
	}
	if !dc.Turn().Responded() {
		if err := p.render(ctx, dc.Turn(), opts, true); err != nil {
			return dialog.TurnResult{}, err
		}
	}
	return dialog.EndOfTurn, nil
}

// ResumeDialog re-shows the initial prompt after an interrupting dialog
// completes. This is not a retry, so the retry prompt is not used.
func (p *Prompt[T]) ResumeDialog(ctx context.Context, dc *dialog.Context, reason dialog.Reason, result any) (dialog.TurnResult, error) {
	if err := p.RepromptDialog(ctx, dc.Turn(), dc.ActiveDialog()); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

// RepromptDialog re-sends the initial prompt without touching the attempt
// count.
func (p *Prompt[T]) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *dialog.Instance) error {
	if instance == nil {
		return nil
	}
	opts, _, err := p.loadPersisted(instance.State)
	if err != nil {
		return err
	}
	return p.render(ctx, tc, opts, false)
}

// loadPersisted rehydrates the options and prompt state out of the
// instance bag, writing the decoded forms back.
func (p *Prompt[T]) loadPersisted(bag map[string]any) (Options, map[string]any, error) {
	opts, err := DecodeOptions(bag[persistedOptionsKey])
	if err != nil {
		return nil, nil, err
	}
	bag[persistedOptionsKey] = encodeOptions(opts)

	state, ok := bag[persistedStateKey].(map[string]any)
	if !ok {
		state = map[string]any{attemptCountKey: 0}
	}
	bag[persistedStateKey] = state
	return opts, state, nil
}

func intFromState(state map[string]any, key string) int {
	switch v := state[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
