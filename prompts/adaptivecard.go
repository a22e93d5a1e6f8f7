package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/types"
)

// AdaptiveCardError classifies why an adaptive card submission was not
// accepted.
type AdaptiveCardError string

const (
	// AdaptiveCardErrorUserUsedTextInput means the user typed a message
	// instead of submitting the card.
	AdaptiveCardErrorUserUsedTextInput AdaptiveCardError = "userUsedTextInput"
	// AdaptiveCardErrorWrongCardID means the submission came from a
	// different card than the one this prompt sent.
	AdaptiveCardErrorWrongCardID AdaptiveCardError = "userInputDoesNotMatchCardId"
	// AdaptiveCardErrorMissingRequiredIDs means required card inputs were
	// left empty.
	AdaptiveCardErrorMissingRequiredIDs AdaptiveCardError = "missingRequiredIds"
)

// AdaptiveCardOptions configures an adaptive card prompt: the card to
// show and which of its input ids must be filled.
type AdaptiveCardOptions struct {
	Card        *types.Attachment `json:"card,omitempty"`
	RequiredIDs []string          `json:"requiredIds,omitempty"`
	RetryText   string            `json:"retryText,omitempty"`
	MaxAttempts int               `json:"maxAttempts,omitempty"`
	PromptText  string            `json:"promptText,omitempty"`
}

func (*AdaptiveCardOptions) Kind() string { return "adaptiveCard" }

// AdaptiveCardResult is what an adaptive card prompt completes with.
type AdaptiveCardResult struct {
	Succeeded  bool
	Value      map[string]any
	Error      AdaptiveCardError
	MissingIDs []string
}

const promptIDKey = "promptId"

// AdaptiveCardPrompt shows an adaptive card and accepts only a submission
// from that exact card, with all required inputs filled.
type AdaptiveCardPrompt struct {
	dialog.BaseDialog
	validator Validator[AdaptiveCardResult]
}

// NewAdaptiveCardPrompt creates an adaptive card prompt. validator may be
// nil.
func NewAdaptiveCardPrompt(id string, validator Validator[AdaptiveCardResult]) (*AdaptiveCardPrompt, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "prompt id must not be empty")
	}
	return &AdaptiveCardPrompt{BaseDialog: dialog.NewBaseDialog(id), validator: validator}, nil
}

func (p *AdaptiveCardPrompt) BeginDialog(ctx context.Context, dc *dialog.Context, options any) (dialog.TurnResult, error) {
	opts, ok := options.(*AdaptiveCardOptions)
	if !ok {
		return dialog.TurnResult{}, types.NewErrorf(types.ErrOptionsType, "prompt %q requires *AdaptiveCardOptions, got %T", p.ID(), options)
	}
	if opts.Card == nil || opts.Card.ContentType != types.ContentTypeAdaptiveCard {
		return dialog.TurnResult{}, types.NewErrorf(types.ErrInvalidArgument, "prompt %q requires an adaptive card attachment", p.ID())
	}
	bag, hasBag := dc.ActiveDialogState()
	if !hasBag {
		return dialog.TurnResult{}, types.NewError(types.ErrStateNotLoaded, "prompt begun without an active instance")
	}

	promptID := uuid.NewString()
	bag[persistedOptionsKey] = encodeOptions(opts)
	bag[persistedStateKey] = map[string]any{attemptCountKey: 0, promptIDKey: promptID}

	return dialog.EndOfTurn, p.sendCard(ctx, dc.Turn(), opts, promptID)
}

func (p *AdaptiveCardPrompt) ContinueDialog(ctx context.Context, dc *dialog.Context) (dialog.TurnResult, error) {
	bag, _ := dc.ActiveDialogState()
	decoded, err := DecodeOptions(bag[persistedOptionsKey])
	if err != nil {
		return dialog.TurnResult{}, err
	}
	bag[persistedOptionsKey] = encodeOptions(decoded)
	opts, ok := decoded.(*AdaptiveCardOptions)
	if !ok {
		return dialog.TurnResult{}, types.NewErrorf(types.ErrOptionsType, "prompt %q persisted options have type %T", p.ID(), decoded)
	}
	state, ok := bag[persistedStateKey].(map[string]any)
	if !ok {
		return dialog.TurnResult{}, types.NewError(types.ErrStateNotLoaded, "adaptive card prompt state missing")
	}
	attempt := intFromState(state, attemptCountKey) + 1
	state[attemptCountKey] = attempt
	promptID, _ := state[promptIDKey].(string)

	result := p.recognizeSubmission(dc.Turn().Activity(), opts, promptID)

	valid := result.Succeeded
	if p.validator != nil {
		valid, err = p.validator(ctx, &ValidatorContext[AdaptiveCardResult]{
			Turn:         dc.Turn(),
			Recognized:   Recognized[AdaptiveCardResult]{Value: result, Succeeded: result.Succeeded},
			State:        state,
			Options:      opts,
			AttemptCount: attempt,
		})
		if err != nil {
			return dialog.TurnResult{}, err
		}
	}
	if valid {
		return dc.EndDialog(ctx, result)
	}
	if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
		return dc.EndDialog(ctx, result)
	}
	if opts.RetryText != "" && !dc.Turn().Responded() {
		if _, err := dc.Turn().SendText(ctx, opts.RetryText); err != nil {
			return dialog.TurnResult{}, err
		}
	}
	return dialog.EndOfTurn, nil
}

func (p *AdaptiveCardPrompt) ResumeDialog(ctx context.Context, dc *dialog.Context, reason dialog.Reason, result any) (dialog.TurnResult, error) {
	if err := p.RepromptDialog(ctx, dc.Turn(), dc.ActiveDialog()); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *AdaptiveCardPrompt) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *dialog.Instance) error {
	if instance == nil {
		return nil
	}
	decoded, err := DecodeOptions(instance.State[persistedOptionsKey])
	if err != nil {
		return err
	}
	opts, ok := decoded.(*AdaptiveCardOptions)
	if !ok {
		return types.NewErrorf(types.ErrOptionsType, "prompt %q persisted options have type %T", p.ID(), decoded)
	}
	promptID := ""
	if state, ok := instance.State[persistedStateKey].(map[string]any); ok {
		promptID, _ = state[promptIDKey].(string)
	}
	return p.sendCard(ctx, tc, opts, promptID)
}

// recognizeSubmission classifies the turn's activity as a card submission
// or one of the failure kinds.
func (p *AdaptiveCardPrompt) recognizeSubmission(activity *types.Activity, opts *AdaptiveCardOptions, promptID string) AdaptiveCardResult {
	if activity == nil {
		return AdaptiveCardResult{Error: AdaptiveCardErrorUserUsedTextInput}
	}
	value, hasValue := activity.Value.(map[string]any)
	if !hasValue {
		return AdaptiveCardResult{Error: AdaptiveCardErrorUserUsedTextInput}
	}
	if submitted, _ := value[promptIDKey].(string); submitted != promptID {
		return AdaptiveCardResult{Value: value, Error: AdaptiveCardErrorWrongCardID}
	}

	var missing []string
	for _, id := range opts.RequiredIDs {
		v, present := value[id]
		if !present || v == nil || v == "" {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return AdaptiveCardResult{Value: value, Error: AdaptiveCardErrorMissingRequiredIDs, MissingIDs: missing}
	}
	return AdaptiveCardResult{Succeeded: true, Value: value}
}

// sendCard stamps the prompt id into the card's submit action data and
// sends it, so submissions can be matched back to this prompt instance.
func (p *AdaptiveCardPrompt) sendCard(ctx context.Context, tc *types.TurnContext, opts *AdaptiveCardOptions, promptID string) error {
	content, err := memory.Coerce[map[string]any](opts.Card.Content)
	if err != nil {
		return types.NewErrorf(types.ErrInvalidArgument, "adaptive card content must be an object: %v", err)
	}
	stampPromptID(content, promptID)

	msg := types.MessageActivity(opts.PromptText)
	msg.Attachments = []types.Attachment{{
		ContentType: types.ContentTypeAdaptiveCard,
		Content:     content,
	}}
	_, err = tc.SendActivity(ctx, msg)
	return err
}

// stampPromptID adds the prompt id to the data of every submit action in
// the card, including actions nested in sub-elements.
func stampPromptID(node map[string]any, promptID string) {
	if t, _ := node["type"].(string); t == "Action.Submit" {
		data, _ := node["data"].(map[string]any)
		if data == nil {
			data = map[string]any{}
		}
		data[promptIDKey] = promptID
		node["data"] = data
	}
	for _, v := range node {
		switch child := v.(type) {
		case map[string]any:
			stampPromptID(child, promptID)
		case []any:
			for _, item := range child {
				if m, ok := item.(map[string]any); ok {
					stampPromptID(m, promptID)
				}
			}
		}
	}
}
