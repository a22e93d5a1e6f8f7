package prompts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/prompts"
	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/testutil"
	"github.com/convoflow/convoflow/types"
)

const testConnection = "github-connection"

func oauthFlow(t *testing.T, provider *testutil.TokenProvider, timeout time.Duration) (*testutil.Flow, *prompts.OAuthPrompt) {
	t.Helper()
	p, err := prompts.NewOAuthPrompt("loginPrompt", prompts.OAuthSettings{
		ConnectionName: testConnection,
		Title:          "Sign in",
		Text:           "Please sign in",
		Timeout:        timeout,
		Provider:       provider,
	}, nil)
	require.NoError(t, err)

	root, err := dialog.NewWaterfallDialog("root",
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			return step.Context.BeginDialog(ctx, "loginPrompt", &prompts.PromptOptions{})
		},
		func(ctx context.Context, step *dialog.WaterfallStepContext) (dialog.TurnResult, error) {
			token, _ := step.Result().(*types.TokenResponse)
			text := "Failed"
			if token != nil {
				text = "Logged in as " + token.Token
			}
			if _, err := step.Turn().SendText(ctx, text); err != nil {
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
	return flow, p
}

func assertOAuthCard(t *testing.T, reply *types.Activity) {
	t.Helper()
	require.NotNil(t, reply)
	require.Len(t, reply.Attachments, 1)
	assert.Equal(t, types.ContentTypeOAuthCard, reply.Attachments[0].ContentType)
}

func TestOAuthPromptCachedTokenShortCircuits(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddToken(testConnection, "user1", "cached-token")

	flow, _ := oauthFlow(t, provider, time.Minute)
	flow.Send("login").AssertReply("Logged in as cached-token")
}

func TestOAuthPromptMagicCodeMessage(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddTokenWithMagicCode(testConnection, "user1", "magic-token", "123456")

	flow, _ := oauthFlow(t, provider, time.Minute)
	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) }).
		Send("123456").
		AssertReply("Logged in as magic-token")
}

func TestOAuthPromptWrongMagicCodeRetries(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddTokenWithMagicCode(testConnection, "user1", "magic-token", "123456")

	flow, _ := oauthFlow(t, provider, time.Minute)
	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) }).
		Send("654321").
		AssertNoReply().
		Send("123456").
		AssertReply("Logged in as magic-token")
}

func TestOAuthPromptTokenResponseEvent(t *testing.T) {
	provider := testutil.NewTokenProvider()
	flow, _ := oauthFlow(t, provider, time.Minute)

	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) })

	event := flow.Adapter().MakeEvent("tokens/response", map[string]any{
		"connectionName": testConnection,
		"token":          "event-token",
	})
	flow.SendActivity(event).AssertReply("Logged in as event-token")
}

func TestOAuthPromptVerifyStateInvoke(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddTokenWithMagicCode(testConnection, "user1", "verified-token", "888999")

	flow, _ := oauthFlow(t, provider, time.Minute)
	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) })

	invoke := &types.Activity{
		Type:  types.ActivityInvoke,
		Name:  "signin/verifyState",
		Value: map[string]any{"state": "888999"},
	}
	flow.SendActivity(invoke).
		AssertReplyWith(func(t *testing.T, reply *types.Activity) {
			assert.Equal(t, types.ActivityInvokeResponse, reply.Type)
			response, ok := reply.Value.(*types.InvokeResponse)
			require.True(t, ok)
			assert.Equal(t, 200, response.Status)
		}).
		AssertReply("Logged in as verified-token")
}

func TestOAuthPromptTokenExchangeInvoke(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddExchangeableToken(testConnection, "user1", "exchange-me", "exchanged-token")

	flow, _ := oauthFlow(t, provider, time.Minute)
	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) })

	invoke := &types.Activity{
		Type: types.ActivityInvoke,
		Name: "signin/tokenExchange",
		Value: map[string]any{
			"id":             "exchange-1",
			"connectionName": testConnection,
			"token":          "exchange-me",
		},
	}
	flow.SendActivity(invoke).
		AssertReplyWith(func(t *testing.T, reply *types.Activity) {
			assert.Equal(t, types.ActivityInvokeResponse, reply.Type)
			response, ok := reply.Value.(*types.InvokeResponse)
			require.True(t, ok)
			assert.Equal(t, 200, response.Status)
		}).
		AssertReply("Logged in as exchanged-token")
}

func TestOAuthPromptTokenExchangeWrongConnectionRejected(t *testing.T) {
	provider := testutil.NewTokenProvider()
	flow, _ := oauthFlow(t, provider, time.Minute)

	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) })

	invoke := &types.Activity{
		Type: types.ActivityInvoke,
		Name: "signin/tokenExchange",
		Value: map[string]any{
			"id":             "exchange-2",
			"connectionName": "some-other-connection",
			"token":          "whatever",
		},
	}
	flow.SendActivity(invoke).AssertReplyWith(func(t *testing.T, reply *types.Activity) {
		assert.Equal(t, types.ActivityInvokeResponse, reply.Type)
		response, ok := reply.Value.(*types.InvokeResponse)
		require.True(t, ok)
		assert.Equal(t, 400, response.Status)
	})
}

func TestOAuthPromptTimesOutBeforeRecognition(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddTokenWithMagicCode(testConnection, "user1", "late-token", "123456")

	// A negative timeout puts the deadline in the past as soon as the
	// prompt begins, so even a valid code on the next turn is too late.
	flow, _ := oauthFlow(t, provider, -time.Second)
	flow.Send("login").
		AssertReplyWith(func(t *testing.T, reply *types.Activity) { assertOAuthCard(t, reply) }).
		Send("123456").
		AssertReply("Failed")
}

func TestOAuthPromptSignOut(t *testing.T) {
	provider := testutil.NewTokenProvider()
	provider.AddToken(testConnection, "user1", "tok")

	p, err := prompts.NewOAuthPrompt("loginPrompt", prompts.OAuthSettings{
		ConnectionName: testConnection,
		Provider:       provider,
	}, nil)
	require.NoError(t, err)

	adapter := testutil.NewTestAdapter()
	tc := adapter.NewTurn(adapter.MakeActivity("bye"))
	require.NoError(t, p.SignOut(context.Background(), tc))
	assert.Equal(t, 1, provider.SignOutCount())

	token, err := provider.GetUserToken(context.Background(), tc, testConnection, "")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestOAuthPromptRequiresSettings(t *testing.T) {
	provider := testutil.NewTokenProvider()

	_, err := prompts.NewOAuthPrompt("p", prompts.OAuthSettings{Provider: provider}, nil)
	require.Error(t, err)

	_, err = prompts.NewOAuthPrompt("p", prompts.OAuthSettings{ConnectionName: "c"}, nil)
	require.Error(t, err)

	_, err = prompts.NewOAuthPrompt("", prompts.OAuthSettings{ConnectionName: "c", Provider: provider}, nil)
	require.Error(t, err)
}
