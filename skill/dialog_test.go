package skill_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/skill"
	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/testutil"
	"github.com/convoflow/convoflow/types"
)

// mockClient records posted activities and answers with a canned status.
type mockClient struct {
	posted []postedActivity
	status int
}

type postedActivity struct {
	conversationID string
	activity       *types.Activity
}

func (m *mockClient) PostActivity(ctx context.Context, fromBotID, toBotID, endpoint, serviceURL, conversationID string, activity *types.Activity) (*types.InvokeResponse, error) {
	m.posted = append(m.posted, postedActivity{conversationID: conversationID, activity: activity})
	status := m.status
	if status == 0 {
		status = 200
	}
	return &types.InvokeResponse{Status: status}, nil
}

func newSkillDialog(t *testing.T, client skill.Client) *skill.Dialog {
	t.Helper()
	d, err := skill.NewDialog("bookingSkill", skill.DialogOptions{
		BotID:     "host-bot",
		Skill:     skill.Info{ID: "booking", AppID: "skill-app", Endpoint: "https://skill.test/api/messages"},
		Client:    client,
		IDFactory: skill.NewMemoryIDFactory(),
	})
	require.NoError(t, err)
	return d
}

func skillTestContext(t *testing.T, d *skill.Dialog, text string) (*dialog.Context, *testutil.TestAdapter) {
	t.Helper()
	set := dialog.NewSet()
	require.NoError(t, set.Add(d))
	adapter := testutil.NewTestAdapter()
	tc := adapter.NewTurn(adapter.MakeActivity(text))
	return dialog.NewContext(set, tc, &dialog.State{}), adapter
}

func TestSkillDialogBeginPostsActivity(t *testing.T) {
	client := &mockClient{}
	d := newSkillDialog(t, client)
	dc, _ := skillTestContext(t, d, "book a flight")

	result, err := dc.BeginDialog(context.Background(), "bookingSkill", &skill.BeginOptions{
		Activity: types.MessageActivity("book a flight"),
	})
	require.NoError(t, err)
	assert.Equal(t, dialog.StatusWaiting, result.Status)

	require.Len(t, client.posted, 1)
	assert.Equal(t, "book a flight", client.posted[0].activity.Text)
	assert.NotEmpty(t, client.posted[0].conversationID)
}

func TestSkillDialogValidatesBeginOptions(t *testing.T) {
	client := &mockClient{}
	d := newSkillDialog(t, client)

	tests := []struct {
		name    string
		options any
	}{
		{"nil options", nil},
		{"wrong type", "not options"},
		{"no activity", &skill.BeginOptions{}},
		{"invoke activity", &skill.BeginOptions{Activity: &types.Activity{Type: types.ActivityInvoke}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, _ := skillTestContext(t, d, "hi")
			_, err := dc.BeginDialog(context.Background(), "bookingSkill", tt.options)
			require.Error(t, err)
		})
	}
	assert.Empty(t, client.posted)
}

func TestSkillDialogForwardsTurnsUntilEndOfConversation(t *testing.T) {
	client := &mockClient{}
	d := newSkillDialog(t, client)

	root, err := dialog.NewWaterfallDialog("root",
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			return step.Context.BeginDialog(ctx, "bookingSkill", &skill.BeginOptions{
				Activity: step.Turn().Activity(),
			})
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			booking, _ := step.Result().(string)
			if _, err := step.Turn().SendText(ctx, "skill booked "+booking); err != nil {
				return dialog.TurnResult{}, err
			}
			return step.Context.EndDialog(ctx, nil)
		},
	)
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	mgr, err := dialog.NewManager(root, state.NewConversationState(store))
	require.NoError(t, err)
	require.NoError(t, mgr.Dialogs().Add(d))

	adapter := testutil.NewTestAdapter()
	flow := testutil.NewFlow(t, adapter, func(ctx context.Context, tc *types.TurnContext) error {
		_, err := mgr.OnTurn(ctx, tc)
		return err
	})

	flow.Send("book a flight").AssertNoReply()
	require.Len(t, client.posted, 1)

	// Mid-conversation messages are relayed to the skill verbatim.
	flow.Send("to Paris").AssertNoReply()
	require.Len(t, client.posted, 2)
	assert.Equal(t, "to Paris", client.posted[1].activity.Text)
	assert.Equal(t, client.posted[0].conversationID, client.posted[1].conversationID)

	// The skill's endOfConversation carries the result back to the host.
	eoc := &types.Activity{Type: types.ActivityEndOfConversation, Value: "flight BA-123"}
	flow.SendActivity(eoc).AssertReply("skill booked flight BA-123")
	require.Len(t, client.posted, 2, "completion must not be forwarded back to the skill")
}

func TestSkillDialogCancelSendsSingleEndOfConversation(t *testing.T) {
	client := &mockClient{}
	d := newSkillDialog(t, client)
	dc, _ := skillTestContext(t, d, "book it")

	_, err := dc.BeginDialog(context.Background(), "bookingSkill", &skill.BeginOptions{
		Activity: types.MessageActivity("book it"),
	})
	require.NoError(t, err)
	require.Len(t, client.posted, 1)

	_, err = dc.CancelAllDialogs(context.Background())
	require.NoError(t, err)

	require.Len(t, client.posted, 2)
	cancelActivity := client.posted[1].activity
	assert.Equal(t, types.ActivityEndOfConversation, cancelActivity.Type)
	assert.Equal(t, "userCancelled", cancelActivity.Code)
}

func TestSkillDialogReplaceAlsoNotifiesSkill(t *testing.T) {
	client := &mockClient{}
	d := newSkillDialog(t, client)

	other, err := dialog.NewWaterfallDialog("other", func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
		return dialog.EndOfTurn, nil
	})
	require.NoError(t, err)

	set := dialog.NewSet()
	require.NoError(t, set.Add(d))
	require.NoError(t, set.Add(other))
	adapter := testutil.NewTestAdapter()
	dc := dialog.NewContext(set, adapter.NewTurn(adapter.MakeActivity("hi")), &dialog.State{})

	_, err = dc.BeginDialog(context.Background(), "bookingSkill", &skill.BeginOptions{
		Activity: types.MessageActivity("hi"),
	})
	require.NoError(t, err)

	_, err = dc.ReplaceDialog(context.Background(), "other", nil)
	require.NoError(t, err)

	require.Len(t, client.posted, 2)
	assert.Equal(t, types.ActivityEndOfConversation, client.posted[1].activity.Type)
}

func TestSkillDialogRepromptForwardsEvent(t *testing.T) {
	client := &mockClient{}
	d := newSkillDialog(t, client)
	dc, _ := skillTestContext(t, d, "hi")

	_, err := dc.BeginDialog(context.Background(), "bookingSkill", &skill.BeginOptions{
		Activity: types.MessageActivity("hi"),
	})
	require.NoError(t, err)

	require.NoError(t, dc.RepromptDialog(context.Background()))
	require.Len(t, client.posted, 2)
	assert.Equal(t, types.ActivityEvent, client.posted[1].activity.Type)
	assert.Equal(t, dialog.EventReprompt, client.posted[1].activity.Name)
}

func TestSkillDialogSurfacesSkillErrors(t *testing.T) {
	client := &mockClient{status: 502}
	d := newSkillDialog(t, client)
	dc, _ := skillTestContext(t, d, "hi")

	_, err := dc.BeginDialog(context.Background(), "bookingSkill", &skill.BeginOptions{
		Activity: types.MessageActivity("hi"),
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrSkillRequest, types.GetErrorCode(err))
}

func TestMemoryIDFactoryRoundTrip(t *testing.T) {
	factory := skill.NewMemoryIDFactory()
	ref := &types.SkillConversationReference{
		ConversationReference: &types.ConversationReference{ChannelID: "test"},
		OAuthScope:            "scope",
	}

	id, err := factory.CreateConversationID(context.Background(), ref)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := factory.GetConversationReference(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	require.NoError(t, factory.DeleteConversationReference(context.Background(), id))
	_, err = factory.GetConversationReference(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, types.ErrConversationID, types.GetErrorCode(err))

	_, err = factory.CreateConversationID(context.Background(), nil)
	require.Error(t, err)
}
