// Package prompts implements dialogs that ask the user for a typed value
// and re-ask until it validates: text, number, confirm, choice, datetime,
// attachment, arbitrary activity, adaptive card and OAuth sign-in prompts.
package prompts

import (
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/types"
)

// Options is implemented by every prompt options type. Kind tags the
// concrete type so options survive the JSON round trip through storage and
// rehydrate as the right type.
type Options interface {
	Kind() string
}

// PromptOptions configures a standard prompt: the activity shown when the
// prompt starts and the one shown after invalid input.
type PromptOptions struct {
	Prompt      *types.Activity `json:"prompt,omitempty"`
	RetryPrompt *types.Activity `json:"retryPrompt,omitempty"`
	Choices     []Choice        `json:"choices,omitempty"`
	Style       ListStyle       `json:"style,omitempty"`
	Validations any             `json:"validations,omitempty"`
}

func (*PromptOptions) Kind() string { return "prompt" }

// kindedEnvelope wraps persisted options so the concrete type is
// recoverable after deserialization.
type kindedEnvelope struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

type optionsDecoder func(data any) (Options, error)

var optionsRegistry = map[string]optionsDecoder{}

// RegisterOptions makes an options type persistable under its kind tag.
// Built-in types are registered at init; custom prompts register their own.
func RegisterOptions[T Options](kind string) {
	optionsRegistry[kind] = func(data any) (Options, error) {
		return memory.Coerce[T](data)
	}
}

func init() {
	RegisterOptions[*PromptOptions]("prompt")
	RegisterOptions[*AdaptiveCardOptions]("adaptiveCard")
}

// encodeOptions wraps options in their kind envelope for persistence.
func encodeOptions(o Options) map[string]any {
	return map[string]any{"kind": o.Kind(), "data": o}
}

// DecodeOptions recovers typed options from whatever persistence left
// behind: the live value on the writing turn, a generic map afterwards.
func DecodeOptions(v any) (Options, error) {
	switch t := v.(type) {
	case nil:
		return &PromptOptions{}, nil
	case Options:
		return t, nil
	case map[string]any:
		kind, _ := t["kind"].(string)
		decoder, ok := optionsRegistry[kind]
		if !ok {
			return nil, types.NewErrorf(types.ErrOptionsType, "no options type registered for kind %q", kind)
		}
		return decoder(t["data"])
	default:
		return nil, types.NewErrorf(types.ErrOptionsType, "cannot decode prompt options from %T", v)
	}
}

// promptOptionsFrom asserts that options are the standard PromptOptions
// used by the built-in prompts.
func promptOptionsFrom(o Options) (*PromptOptions, error) {
	po, ok := o.(*PromptOptions)
	if !ok {
		return nil, types.NewErrorf(types.ErrOptionsType, "expected *PromptOptions, got %T", o)
	}
	return po, nil
}
