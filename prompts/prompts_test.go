package prompts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/prompts"
	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/testutil"
	"github.com/convoflow/convoflow/types"
)

// promptFlow wires a waterfall that runs the given prompt and echoes its
// result through format.
func promptFlow(t *testing.T, p dialog.Dialog, options prompts.Options, format func(result any) string) *testutil.Flow {
	t.Helper()
	root, err := dialog.NewWaterfallDialog("root",
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			return step.Context.Prompt(ctx, p.ID(), options)
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			if _, err := step.Turn().SendText(ctx, format(step.Result())); err != nil {
				return dialog.TurnResult{}, err
			}
			return step.Context.EndDialog(ctx, nil)
		},
	)
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	mgr, err := dialog.NewManager(root, state.NewConversationState(store))
	require.NoError(t, err)
	require.NoError(t, mgr.Dialogs().Add(p))

	adapter := testutil.NewTestAdapter()
	return testutil.NewFlow(t, adapter, func(ctx context.Context, tc *types.TurnContext) error {
		_, err := mgr.OnTurn(ctx, tc)
		return err
	})
}

func TestTextPromptRetriesUntilNonEmpty(t *testing.T) {
	p, err := prompts.NewTextPrompt("textPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("Enter some text."),
		RetryPrompt: types.MessageActivity("Make sure the text is not empty."),
	}
	flow := promptFlow(t, p, options, func(result any) string {
		return "You said " + result.(string)
	})

	flow.Send("hello").
		AssertReply("Enter some text.").
		Send("   ").
		AssertReply("Make sure the text is not empty.").
		Send("some text").
		AssertReply("You said some text")
}

func TestNumberPromptRetriesOnNonNumber(t *testing.T) {
	p, err := prompts.NewNumberPrompt("numberPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("Enter a number."),
		RetryPrompt: types.MessageActivity("You must enter a number."),
	}
	flow := promptFlow(t, p, options, func(result any) string {
		if result.(float64) == 64 {
			return "Bot received the number '64'."
		}
		return "unexpected"
	})

	flow.Send("hello").
		AssertReply("Enter a number.").
		Send("hello").
		AssertReply("You must enter a number.").
		Send("64").
		AssertReply("Bot received the number '64'.")
}

func TestNumberPromptValidatorGatesRange(t *testing.T) {
	validator := func(ctx context.Context, vc *prompts.ValidatorContext[float64]) (bool, error) {
		return vc.Recognized.Succeeded && vc.Recognized.Value > 0 && vc.Recognized.Value < 100, nil
	}
	p, err := prompts.NewNumberPrompt("range", validator)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("Enter a number between 1 and 99."),
		RetryPrompt: types.MessageActivity("Out of range, try again."),
	}
	flow := promptFlow(t, p, options, func(result any) string { return "accepted" })

	flow.Send("hi").
		AssertReply("Enter a number between 1 and 99.").
		Send("150").
		AssertReply("Out of range, try again.").
		Send("42").
		AssertReply("accepted")
}

func TestConfirmPromptRendersInlineChoices(t *testing.T) {
	p, err := prompts.NewConfirmPrompt("confirmPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{Prompt: types.MessageActivity("Please confirm.")}
	flow := promptFlow(t, p, options, func(result any) string {
		if result.(bool) {
			return "Confirmed."
		}
		return "Not confirmed."
	})

	flow.Send("hello").
		AssertReply("Please confirm. (1) Yes or (2) No").
		Send("yes").
		AssertReply("Confirmed.")
}

func TestConfirmPromptAcceptsPositionAndNo(t *testing.T) {
	p, err := prompts.NewConfirmPrompt("confirmPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{Prompt: types.MessageActivity("Please confirm.")}
	flow := promptFlow(t, p, options, func(result any) string {
		if result.(bool) {
			return "Confirmed."
		}
		return "Not confirmed."
	})

	flow.Send("hello").
		AssertReply("Please confirm. (1) Yes or (2) No").
		Send("2").
		AssertReply("Not confirmed.")
}

func TestChoicePromptFlow(t *testing.T) {
	p, err := prompts.NewChoicePrompt("colorPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("Pick a color."),
		RetryPrompt: types.MessageActivity("I don't know that color."),
		Choices:     prompts.ChoicesFromStrings("red", "green", "blue"),
		Style:       prompts.ListStyleInline,
	}
	flow := promptFlow(t, p, options, func(result any) string {
		return "You picked " + result.(prompts.FoundChoice).Value
	})

	flow.Send("hi").
		AssertReply("Pick a color. (1) red, (2) green, or (3) blue").
		Send("purple").
		AssertReply("I don't know that color. (1) red, (2) green, or (3) blue").
		Send("green").
		AssertReply("You picked green")
}

func TestChoicePromptListStyle(t *testing.T) {
	p, err := prompts.NewChoicePrompt("listPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:  types.MessageActivity("Pick one."),
		Choices: prompts.ChoicesFromStrings("alpha", "beta"),
		Style:   prompts.ListStyleList,
	}
	flow := promptFlow(t, p, options, func(result any) string { return "ok" })

	flow.Send("hi").AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		assert.Equal(t, "Pick one.\n\n   1. alpha\n   2. beta", reply.Text)
	})
}

func TestChoicePromptSuggestedActions(t *testing.T) {
	p, err := prompts.NewChoicePrompt("saPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:  types.MessageActivity("Pick one."),
		Choices: prompts.ChoicesFromStrings("alpha", "beta"),
		Style:   prompts.ListStyleSuggestedActions,
	}
	flow := promptFlow(t, p, options, func(result any) string { return "ok" })

	flow.Send("hi").AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		assert.Equal(t, "Pick one.", reply.Text)
		require.NotNil(t, reply.SuggestedActions)
		require.Len(t, reply.SuggestedActions.Actions, 2)
		assert.Equal(t, "alpha", reply.SuggestedActions.Actions[0].Title)
	})
}

func TestDateTimePromptFlow(t *testing.T) {
	p, err := prompts.NewDateTimePrompt("whenPrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("When?"),
		RetryPrompt: types.MessageActivity("Give me a date."),
	}
	flow := promptFlow(t, p, options, func(result any) string {
		resolutions := result.([]prompts.DateTimeResolution)
		return "Got " + resolutions[0].Value
	})

	flow.Send("hi").
		AssertReply("When?").
		Send("not a date at all zzz").
		AssertReply("Give me a date.").
		Send("2026-08-31").
		AssertReply("Got 2026-08-31")
}

func TestAttachmentPromptFlow(t *testing.T) {
	p, err := prompts.NewAttachmentPrompt("filePrompt", nil)
	require.NoError(t, err)

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("Send me a file."),
		RetryPrompt: types.MessageActivity("That has no attachment."),
	}
	flow := promptFlow(t, p, options, func(result any) string {
		attachments := result.([]types.Attachment)
		return "Received " + attachments[0].Name
	})

	flow.Send("hi").AssertReply("Send me a file.")
	flow.Send("just words").AssertReply("That has no attachment.")

	upload := types.MessageActivity("")
	upload.Attachments = []types.Attachment{{Name: "report.pdf", ContentType: "application/pdf"}}
	flow.SendActivity(upload).AssertReply("Received report.pdf")
}

func TestPromptResumeReshowsInitialPrompt(t *testing.T) {
	// An interrupting dialog completing over a waiting prompt must re-show
	// the original prompt, not the retry prompt.
	text, err := prompts.NewTextPrompt("namePrompt", nil)
	require.NoError(t, err)

	set := dialog.NewSet()
	require.NoError(t, set.Add(text))

	adapter := testutil.NewTestAdapter()
	tc := adapter.NewTurn(adapter.MakeActivity("hi"))
	dc := dialog.NewContext(set, tc, &dialog.State{})

	options := &prompts.PromptOptions{
		Prompt:      types.MessageActivity("What is your name?"),
		RetryPrompt: types.MessageActivity("Try again."),
	}
	_, err = dc.Prompt(context.Background(), "namePrompt", options)
	require.NoError(t, err)
	assert.Equal(t, "What is your name?", adapter.NextReply().Text)

	result, err := text.ResumeDialog(context.Background(), dc, dialog.ReasonEndCalled, nil)
	require.NoError(t, err)
	assert.Equal(t, dialog.StatusWaiting, result.Status)
	assert.Equal(t, "What is your name?", adapter.NextReply().Text)
}

func TestPromptRepromptDoesNotCountAsRetry(t *testing.T) {
	attempts := -1
	validator := func(ctx context.Context, vc *prompts.ValidatorContext[string]) (bool, error) {
		attempts = vc.AttemptCount
		return vc.Recognized.Succeeded, nil
	}
	p, err := prompts.NewTextPrompt("tracked", validator)
	require.NoError(t, err)

	set := dialog.NewSet()
	require.NoError(t, set.Add(p))

	adapter := testutil.NewTestAdapter()
	tc := adapter.NewTurn(adapter.MakeActivity("hi"))
	dc := dialog.NewContext(set, tc, &dialog.State{})

	options := &prompts.PromptOptions{Prompt: types.MessageActivity("Speak.")}
	_, err = dc.Prompt(context.Background(), "tracked", options)
	require.NoError(t, err)
	adapter.Replies()

	require.NoError(t, dc.RepromptDialog(context.Background()))
	assert.Equal(t, "Speak.", adapter.NextReply().Text)

	tc2 := adapter.NewTurn(adapter.MakeActivity("words"))
	dc2 := dialog.NewContext(set, tc2, dialogStateOf(dc))
	_, err = dc2.ContinueDialog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

// dialogStateOf rebuilds a State sharing the live stack, standing in for a
// save/load cycle within one process.
func dialogStateOf(dc *dialog.Context) *dialog.State {
	return &dialog.State{Stack: dc.Stack()}
}

func TestPromptOptionsNilRejected(t *testing.T) {
	p, err := prompts.NewTextPrompt("strict", nil)
	require.NoError(t, err)

	set := dialog.NewSet()
	require.NoError(t, set.Add(p))
	adapter := testutil.NewTestAdapter()
	dc := dialog.NewContext(set, adapter.NewTurn(adapter.MakeActivity("hi")), &dialog.State{})

	_, err = dc.BeginDialog(context.Background(), "strict", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))
}

func TestActivityPromptValidatorDriven(t *testing.T) {
	validator := func(ctx context.Context, vc *prompts.ValidatorContext[*types.Activity]) (bool, error) {
		return vc.Recognized.Value.Type == types.ActivityEvent, nil
	}
	p, err := prompts.NewActivityPrompt("eventPrompt", validator)
	require.NoError(t, err)

	options := &prompts.PromptOptions{Prompt: types.MessageActivity("Send the event.")}
	flow := promptFlow(t, p, options, func(result any) string {
		return "Got event " + result.(*types.Activity).Name
	})

	flow.Send("hi").AssertReply("Send the event.")
	// A message is rejected and the prompt is re-shown every turn.
	flow.Send("still a message").AssertReply("Send the event.")
	flow.SendActivity(flow.Adapter().MakeEvent("ready", nil)).AssertReply("Got event ready")
}

func TestActivityPromptRequiresValidator(t *testing.T) {
	_, err := prompts.NewActivityPrompt("bad", nil)
	require.Error(t, err)
}
