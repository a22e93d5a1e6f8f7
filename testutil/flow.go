package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convoflow/convoflow/types"
)

// TurnHandler processes one inbound activity, the way a bot's message loop
// would.
type TurnHandler func(ctx context.Context, tc *types.TurnContext) error

// Flow scripts a conversation against a TurnHandler: send an activity,
// assert on the bot's replies, repeat. Every method fails the test on
// error so scripts stay linear.
type Flow struct {
	t       *testing.T
	adapter *TestAdapter
	handler TurnHandler
}

// NewFlow creates a conversation script over the adapter and handler.
func NewFlow(t *testing.T, adapter *TestAdapter, handler TurnHandler) *Flow {
	t.Helper()
	return &Flow{t: t, adapter: adapter, handler: handler}
}

// Adapter returns the underlying test adapter.
func (f *Flow) Adapter() *TestAdapter { return f.adapter }

// Send delivers a user message to the handler.
func (f *Flow) Send(text string) *Flow {
	f.t.Helper()
	return f.SendActivity(f.adapter.MakeActivity(text))
}

// SendActivity delivers an arbitrary inbound activity to the handler.
func (f *Flow) SendActivity(activity *types.Activity) *Flow {
	f.t.Helper()
	tc := f.adapter.NewTurn(activity)
	require.NoError(f.t, f.handler(context.Background(), tc))
	return f
}

// AssertReply pops the next bot reply and requires its text to match.
func (f *Flow) AssertReply(expected string) *Flow {
	f.t.Helper()
	reply := f.adapter.NextReply()
	require.NotNil(f.t, reply, "expected a reply %q but none was sent", expected)
	require.Equal(f.t, expected, reply.Text)
	return f
}

// AssertReplyWith pops the next bot reply and runs a custom assertion on
// it.
func (f *Flow) AssertReplyWith(assert func(t *testing.T, reply *types.Activity)) *Flow {
	f.t.Helper()
	reply := f.adapter.NextReply()
	require.NotNil(f.t, reply, "expected a reply but none was sent")
	assert(f.t, reply)
	return f
}

// AssertNoReply requires that the bot sent nothing since the last
// assertion.
func (f *Flow) AssertNoReply() *Flow {
	f.t.Helper()
	reply := f.adapter.NextReply()
	require.Nil(f.t, reply, "expected no reply but got one")
	return f
}
