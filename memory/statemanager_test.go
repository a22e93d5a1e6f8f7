package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/storage"
	"github.com/convoflow/convoflow/types"
)

type nopSender struct{}

func (nopSender) SendActivities(ctx context.Context, activities []*types.Activity) ([]types.ResourceResponse, error) {
	return make([]types.ResourceResponse, len(activities)), nil
}

// fakeDialogContext is a minimal DialogContext for exercising scopes without
// the dialog package.
type fakeDialogContext struct {
	tc     *types.TurnContext
	stack  []map[string]any
	id     string
	parent *fakeDialogContext
}

func (f *fakeDialogContext) TurnContext() *types.TurnContext { return f.tc }
func (f *fakeDialogContext) ActiveDialogID() string          { return f.id }

func (f *fakeDialogContext) ActiveDialogState() (map[string]any, bool) {
	if len(f.stack) == 0 {
		return nil, false
	}
	return f.stack[len(f.stack)-1], true
}

func (f *fakeDialogContext) ParentContext() DialogContext {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func testManager(t *testing.T) (*Manager, *fakeDialogContext) {
	t.Helper()
	store := storage.NewMemoryStorage()
	cfg := NewConfiguration(
		WithConversationState(state.NewConversationState(store)),
		WithUserState(state.NewUserState(store)),
		WithSettings(map[string]any{"greeting": "hello"}),
	)
	tc := types.NewTurnContext(nopSender{}, &types.Activity{
		Type:         types.ActivityMessage,
		ChannelID:    "test",
		Conversation: &types.ConversationAccount{ID: "conv1"},
		From:         &types.ChannelAccount{ID: "user1"},
	})
	dc := &fakeDialogContext{tc: tc, stack: []map[string]any{{}}, id: "root"}
	return NewManager(dc, cfg), dc
}

func TestManager_ScopeRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	for _, path := range []string{
		"user.name",
		"conversation.topic",
		"turn.count",
		"dialog.options",
		"this.attempts",
	} {
		require.NoError(t, m.SetValue(ctx, path, "v-"+path), path)
		v, ok, err := m.GetValue(ctx, path)
		require.NoError(t, err, path)
		require.True(t, ok, path)
		assert.Equal(t, "v-"+path, v, path)
	}
}

func TestManager_AliasesEqualCanonical(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	// Writing through an alias is observable at the canonical path and
	// vice versa, for all four alias forms.
	require.NoError(t, m.SetValue(ctx, "$foo", "dialog-value"))
	v, ok, err := m.GetValue(ctx, "dialog.foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dialog-value", v)

	require.NoError(t, m.SetValue(ctx, "turn.recognized.intents.greet", "intent-value"))
	v, ok, err = m.GetValue(ctx, "#greet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "intent-value", v)

	entities := []any{"first-entity", "second-entity"}
	require.NoError(t, m.SetValue(ctx, "@@color", entities))
	v, ok, err = m.GetValue(ctx, "turn.recognized.entities.color")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entities, v)

	v, ok, err = m.GetValue(ctx, "@color")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first-entity", v)

	// Removal through an alias clears the canonical path.
	require.NoError(t, m.RemoveValue(ctx, "$foo"))
	_, ok, err = m.GetValue(ctx, "dialog.foo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_AtAliasDigsNestedEntityGroups(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	require.NoError(t, m.SetValue(ctx, "@@color", []any{[]any{"red", "blue"}}))
	v, ok, err := m.GetValue(ctx, "@color")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "red", v)
}

func TestManager_NestedPathsAndIndexes(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	require.NoError(t, m.SetValue(ctx, "conversation.order.items[0]", "coffee"))
	require.NoError(t, m.SetValue(ctx, "conversation.order.items[2]", "tea"))

	v, ok, err := m.GetValue(ctx, "conversation.order.items[2]")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tea", v)

	v, ok, err = m.GetValue(ctx, "conversation.order.items")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"coffee", nil, "tea"}, v)
}

func TestManager_ComputedIndex(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	require.NoError(t, m.SetValue(ctx, "conversation.items[1]", "picked"))
	require.NoError(t, m.SetValue(ctx, "turn.index", 1))

	v, ok, err := m.GetValue(ctx, "conversation.items[turn.index]")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "picked", v)
}

func TestManager_UnknownScopeIsError(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	err := m.SetValue(ctx, "nosuchscope.value", 1)
	require.Error(t, err)
	assert.Equal(t, types.ErrScopeNotFound, types.GetErrorCode(err))

	_, _, err = m.GetValue(ctx, "nosuchscope.value")
	require.Error(t, err)

	err = m.RemoveValue(ctx, "nosuchscope.value")
	require.Error(t, err)
}

func TestManager_MissingValueIsNotError(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	v, ok, err := m.GetValue(ctx, "conversation.never.set")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestManager_SettingsAreReadOnly(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	v, ok, err := m.GetValue(ctx, "settings.greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	assert.Error(t, m.SetValue(ctx, "settings", map[string]any{}))
}

func TestManager_GetReturnsClones(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	require.NoError(t, m.SetValue(ctx, "conversation.profile", map[string]any{"name": "carol"}))
	v, _, err := m.GetValue(ctx, "conversation.profile")
	require.NoError(t, err)
	v.(map[string]any)["name"] = "mutated"

	again, _, err := m.GetValue(ctx, "conversation.profile")
	require.NoError(t, err)
	assert.Equal(t, "carol", again.(map[string]any)["name"])
}

func TestManager_Snapshot(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	require.NoError(t, m.SetValue(ctx, "conversation.topic", "order"))
	snapshot, err := m.GetSnapshot(ctx)
	require.NoError(t, err)

	for _, scope := range m.Configuration().Scopes() {
		if scope.IncludeInSnapshot() {
			assert.Contains(t, snapshot, scope.Name())
		} else {
			assert.NotContains(t, snapshot, scope.Name())
		}
	}
}

func TestManager_DialogScopeWalksParents(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	cfg := NewConfiguration(WithConversationState(state.NewConversationState(store)))
	tc := types.NewTurnContext(nopSender{}, &types.Activity{
		Type:         types.ActivityMessage,
		ChannelID:    "test",
		Conversation: &types.ConversationAccount{ID: "conv1"},
	})

	parent := &fakeDialogContext{tc: tc, stack: []map[string]any{{"fromParent": true}}, id: "outer"}
	child := &fakeDialogContext{tc: tc, stack: nil, id: "", parent: parent}
	m := NewManager(child, cfg)

	v, ok, err := m.GetValue(ctx, "dialog.fromParent")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestGetValueAs(t *testing.T) {
	ctx := context.Background()
	m, _ := testManager(t)

	require.NoError(t, m.SetValue(ctx, "conversation.count", 42))
	n, ok, err := GetValueAs[int](ctx, m, "conversation.count")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, n)

	type profile struct {
		Name string `json:"name"`
	}
	require.NoError(t, m.SetValue(ctx, "user.profile", profile{Name: "carol"}))
	p, ok, err := GetValueAs[profile](ctx, m, "user.profile")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "carol", p.Name)
}

// Set-then-get returns the written value for arbitrary leaf names and
// scalar values, across every writable scope.
func TestManager_SetGetProperty(t *testing.T) {
	scopes := []string{"user", "conversation", "turn", "dialog", "this"}
	ident := rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,11}`)

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m, _ := testManager(t)

		scope := rapid.SampledFrom(scopes).Draw(rt, "scope")
		name := ident.Draw(rt, "name")
		value := rapid.OneOf(
			rapid.String().AsAny(),
			rapid.Float64Range(-1e6, 1e6).AsAny(),
			rapid.Bool().AsAny(),
		).Draw(rt, "value")

		path := scope + "." + name
		require.NoError(rt, m.SetValue(ctx, path, value))
		got, ok, err := m.GetValue(ctx, path)
		require.NoError(rt, err)
		require.True(rt, ok)

		want, err := Coerce[any](value)
		require.NoError(rt, err)
		assert.Equal(rt, want, got)
	})
}
