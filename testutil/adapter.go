// Package testutil provides the in-memory channel adapter and conversation
// flow helpers the package tests are written against.
package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/convoflow/convoflow/types"
)

// TestAdapter is an in-memory types.Sender. It captures every activity the
// bot sends and stamps inbound activities with a stable test conversation.
type TestAdapter struct {
	mu      sync.Mutex
	replies []*types.Activity

	ChannelID    string
	Conversation types.ConversationAccount
	User         types.ChannelAccount
	Bot          types.ChannelAccount
	Locale       string
}

// NewTestAdapter creates an adapter with a fresh conversation id.
func NewTestAdapter() *TestAdapter {
	return &TestAdapter{
		ChannelID:    "test",
		Conversation: types.ConversationAccount{ID: uuid.NewString()},
		User:         types.ChannelAccount{ID: "user1", Name: "User1"},
		Bot:          types.ChannelAccount{ID: "bot", Name: "Bot"},
		Locale:       "en-us",
	}
}

// SendActivities implements types.Sender, recording everything the bot
// sends.
func (a *TestAdapter) SendActivities(ctx context.Context, activities []*types.Activity) ([]types.ResourceResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	responses := make([]types.ResourceResponse, 0, len(activities))
	for _, activity := range activities {
		a.replies = append(a.replies, activity)
		responses = append(responses, types.ResourceResponse{ID: activity.ID})
	}
	return responses, nil
}

// NextReply pops the oldest captured activity, or nil when the queue is
// empty.
func (a *TestAdapter) NextReply() *types.Activity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.replies) == 0 {
		return nil
	}
	reply := a.replies[0]
	a.replies = a.replies[1:]
	return reply
}

// Replies drains and returns every captured activity.
func (a *TestAdapter) Replies() []*types.Activity {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.replies
	a.replies = nil
	return out
}

// MakeActivity builds an inbound message activity addressed to the bot.
func (a *TestAdapter) MakeActivity(text string) *types.Activity {
	activity := types.MessageActivity(text)
	a.address(activity)
	return activity
}

// MakeEvent builds an inbound event activity addressed to the bot.
func (a *TestAdapter) MakeEvent(name string, value any) *types.Activity {
	activity := types.EventActivity(name, value)
	a.address(activity)
	return activity
}

// NewTurn wraps an inbound activity in a TurnContext bound to this
// adapter. Activities built elsewhere get the test addressing applied.
func (a *TestAdapter) NewTurn(activity *types.Activity) *types.TurnContext {
	if activity.Conversation == nil {
		a.address(activity)
	}
	return types.NewTurnContext(a, activity)
}

func (a *TestAdapter) address(activity *types.Activity) {
	activity.ChannelID = a.ChannelID
	activity.Conversation = &types.ConversationAccount{ID: a.Conversation.ID}
	activity.From = &types.ChannelAccount{ID: a.User.ID, Name: a.User.Name}
	activity.Recipient = &types.ChannelAccount{ID: a.Bot.ID, Name: a.Bot.Name}
	if activity.Locale == "" {
		activity.Locale = a.Locale
	}
}
