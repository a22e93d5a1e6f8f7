package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/types"
)

type nopSender struct{}

func (nopSender) SendActivities(ctx context.Context, activities []*types.Activity) ([]types.ResourceResponse, error) {
	responses := make([]types.ResourceResponse, len(activities))
	return responses, nil
}

func turnContext(conversationID, userID string) *types.TurnContext {
	return types.NewTurnContext(nopSender{}, &types.Activity{
		Type:         types.ActivityMessage,
		ChannelID:    "test",
		Conversation: &types.ConversationAccount{ID: conversationID},
		From:         &types.ChannelAccount{ID: userID},
	})
}

func TestBotState_LoadAndSave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	convState := NewConversationState(store)

	tc := turnContext("conv1", "user1")
	bag, err := convState.Load(ctx, tc, false)
	require.NoError(t, err)
	bag["greeted"] = true

	require.NoError(t, convState.SaveChanges(ctx, tc, false))

	// A fresh turn in the same conversation sees the saved value.
	tc2 := turnContext("conv1", "user1")
	bag2, err := convState.Load(ctx, tc2, false)
	require.NoError(t, err)
	assert.Equal(t, true, bag2["greeted"])

	// A different conversation does not.
	tc3 := turnContext("conv2", "user1")
	bag3, err := convState.Load(ctx, tc3, false)
	require.NoError(t, err)
	assert.Empty(t, bag3)
}

func TestBotState_SaveSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	convState := NewConversationState(store)

	tc := turnContext("conv1", "user1")
	_, err := convState.Load(ctx, tc, false)
	require.NoError(t, err)

	// No mutation, so nothing reaches storage.
	require.NoError(t, convState.SaveChanges(ctx, tc, false))
	items, err := store.Read(ctx, []string{"test/conversations/conv1"})
	require.NoError(t, err)
	assert.Empty(t, items)

	// Force writes regardless.
	require.NoError(t, convState.SaveChanges(ctx, tc, true))
	items, err = store.Read(ctx, []string{"test/conversations/conv1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestProperty_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	userState := NewUserState(storage.NewMemoryStorage())
	prop := userState.CreateProperty("profile")

	tc := turnContext("conv1", "user1")

	v, err := prop.Get(ctx, tc, func() any { return map[string]any{"name": "carol"} })
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "carol"}, v)

	require.NoError(t, prop.Set(ctx, tc, "replaced"))
	v, err = prop.Get(ctx, tc, nil)
	require.NoError(t, err)
	assert.Equal(t, "replaced", v)

	require.NoError(t, prop.Delete(ctx, tc))
	v, err = prop.Get(ctx, tc, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBotState_MissingConversationID(t *testing.T) {
	ctx := context.Background()
	convState := NewConversationState(storage.NewMemoryStorage())
	tc := types.NewTurnContext(nopSender{}, &types.Activity{Type: types.ActivityMessage})

	_, err := convState.Load(ctx, tc, false)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidArgument, types.GetErrorCode(err))
}

func TestSaveAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	convState := NewConversationState(store)
	userState := NewUserState(store)

	tc := turnContext("conv1", "user1")
	convBag, err := convState.Load(ctx, tc, false)
	require.NoError(t, err)
	convBag["a"] = 1
	userBag, err := userState.Load(ctx, tc, false)
	require.NoError(t, err)
	userBag["b"] = 2

	require.NoError(t, SaveAll(ctx, tc, false, convState, userState))

	items, err := store.Read(ctx, []string{"test/conversations/conv1", "test/users/user1"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestBotState_ClearState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	convState := NewConversationState(store)

	tc := turnContext("conv1", "user1")
	bag, err := convState.Load(ctx, tc, false)
	require.NoError(t, err)
	bag["x"] = 1
	require.NoError(t, convState.SaveChanges(ctx, tc, false))

	require.NoError(t, convState.ClearState(ctx, tc))
	require.NoError(t, convState.SaveChanges(ctx, tc, false))

	tc2 := turnContext("conv1", "user1")
	bag2, err := convState.Load(ctx, tc2, false)
	require.NoError(t, err)
	assert.Empty(t, bag2)
}
