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

func testCard() *types.Attachment {
	return &types.Attachment{
		ContentType: types.ContentTypeAdaptiveCard,
		Content: map[string]any{
			"type":    "AdaptiveCard",
			"version": "1.3",
			"body": []any{
				map[string]any{"type": "Input.Text", "id": "name"},
			},
			"actions": []any{
				map[string]any{"type": "Action.Submit", "title": "OK"},
			},
		},
	}
}

func cardFlow(t *testing.T, opts *prompts.AdaptiveCardOptions) (*testutil.Flow, func() any) {
	t.Helper()
	p, err := prompts.NewAdaptiveCardPrompt("cardPrompt", nil)
	require.NoError(t, err)

	var lastResult any
	root, err := dialog.NewWaterfallDialog("root",
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			return step.Context.BeginDialog(ctx, "cardPrompt", opts)
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			lastResult = step.Result()
			if _, err := step.Turn().SendText(ctx, "card done"); err != nil {
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
	flow := testutil.NewFlow(t, adapter, func(ctx context.Context, tc *types.TurnContext) error {
		_, err := mgr.OnTurn(ctx, tc)
		return err
	})
	return flow, func() any { return lastResult }
}

// promptIDFromCard digs the stamped prompt id back out of the sent card.
func promptIDFromCard(t *testing.T, reply *types.Activity) string {
	t.Helper()
	require.Len(t, reply.Attachments, 1)
	content, ok := reply.Attachments[0].Content.(map[string]any)
	require.True(t, ok)
	actions, ok := content["actions"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, actions)
	action := actions[0].(map[string]any)
	data, ok := action["data"].(map[string]any)
	require.True(t, ok)
	id, _ := data["promptId"].(string)
	require.NotEmpty(t, id)
	return id
}

func submission(promptID string, fields map[string]any) *types.Activity {
	value := map[string]any{"promptId": promptID}
	for k, v := range fields {
		value[k] = v
	}
	return &types.Activity{Type: types.ActivityMessage, Value: value}
}

func TestAdaptiveCardPromptAcceptsMatchingSubmission(t *testing.T) {
	flow, result := cardFlow(t, &prompts.AdaptiveCardOptions{
		Card:        testCard(),
		RequiredIDs: []string{"name"},
	})

	var promptID string
	flow.Send("hi").AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		promptID = promptIDFromCard(t, reply)
	})

	flow.SendActivity(submission(promptID, map[string]any{"name": "Ada"})).
		AssertReply("card done")

	cardResult, ok := result().(prompts.AdaptiveCardResult)
	require.True(t, ok)
	assert.True(t, cardResult.Succeeded)
	assert.Equal(t, "Ada", cardResult.Value["name"])
}

func TestAdaptiveCardPromptRejectsTextInput(t *testing.T) {
	flow, _ := cardFlow(t, &prompts.AdaptiveCardOptions{
		Card:      testCard(),
		RetryText: "Please use the card.",
	})

	flow.Send("hi").AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		promptIDFromCard(t, reply)
	})
	flow.Send("typed instead").AssertReply("Please use the card.")
}

func TestAdaptiveCardPromptRejectsWrongCardID(t *testing.T) {
	flow, _ := cardFlow(t, &prompts.AdaptiveCardOptions{
		Card:      testCard(),
		RetryText: "That came from a different card.",
	})

	flow.Send("hi").AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		promptIDFromCard(t, reply)
	})
	flow.SendActivity(submission("not-the-right-id", map[string]any{"name": "Ada"})).
		AssertReply("That came from a different card.")
}

func TestAdaptiveCardPromptRequiredIDs(t *testing.T) {
	flow, result := cardFlow(t, &prompts.AdaptiveCardOptions{
		Card:        testCard(),
		RequiredIDs: []string{"name", "email"},
		MaxAttempts: 1,
	})

	var promptID string
	flow.Send("hi").AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		promptID = promptIDFromCard(t, reply)
	})

	// MaxAttempts 1 ends the prompt with the failed result instead of
	// retrying.
	flow.SendActivity(submission(promptID, map[string]any{"name": "Ada"})).
		AssertReply("card done")

	cardResult, ok := result().(prompts.AdaptiveCardResult)
	require.True(t, ok)
	assert.False(t, cardResult.Succeeded)
	assert.Equal(t, prompts.AdaptiveCardErrorMissingRequiredIDs, cardResult.Error)
	assert.Equal(t, []string{"email"}, cardResult.MissingIDs)
}

func TestAdaptiveCardPromptRequiresCard(t *testing.T) {
	p, err := prompts.NewAdaptiveCardPrompt("bad", nil)
	require.NoError(t, err)

	set := dialog.NewSet()
	require.NoError(t, set.Add(p))
	adapter := testutil.NewTestAdapter()
	dc := dialog.NewContext(set, adapter.NewTurn(adapter.MakeActivity("hi")), &dialog.State{})

	_, err = dc.BeginDialog(context.Background(), "bad", &prompts.AdaptiveCardOptions{})
	require.Error(t, err)
}
