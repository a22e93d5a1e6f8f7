package prompts

import (
	"context"

	"github.com/convoflow/convoflow/types"
)

// AttachmentPrompt asks the user to upload one or more attachments.
type AttachmentPrompt struct {
	*Prompt[[]types.Attachment]
}

// NewAttachmentPrompt creates an attachment prompt. validator may be nil.
func NewAttachmentPrompt(id string, validator Validator[[]types.Attachment]) (*AttachmentPrompt, error) {
	base, err := NewPrompt(id, recognizeAttachments, nil, validator)
	if err != nil {
		return nil, err
	}
	return &AttachmentPrompt{Prompt: base}, nil
}

func recognizeAttachments(ctx context.Context, tc *types.TurnContext, state map[string]any, options Options) (Recognized[[]types.Attachment], error) {
	attachments := tc.Activity().Attachments
	if len(attachments) == 0 {
		return Recognized[[]types.Attachment]{}, nil
	}
	return Recognized[[]types.Attachment]{Value: attachments, Succeeded: true}, nil
}
