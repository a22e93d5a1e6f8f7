package types

import (
	"context"
	"strings"
	"sync"
)

// Sender delivers outgoing activities to the channel. Adapters implement it;
// the core treats delivery as fire-and-observe.
type Sender interface {
	SendActivities(ctx context.Context, activities []*Activity) ([]ResourceResponse, error)
}

// TurnContext carries everything about one inbound-activity/outbound-activities
// cycle: the inbound activity, a turn-scoped state bag, and the channel sender.
// A TurnContext is built per turn and never shared across turns.
type TurnContext struct {
	sender    Sender
	activity  *Activity
	mu        sync.RWMutex
	turnState map[string]any
	responded bool
}

// NewTurnContext creates a turn context for one inbound activity.
func NewTurnContext(sender Sender, activity *Activity) *TurnContext {
	return &TurnContext{
		sender:    sender,
		activity:  activity,
		turnState: make(map[string]any),
	}
}

// Activity returns the inbound activity for this turn.
func (tc *TurnContext) Activity() *Activity {
	return tc.activity
}

// Responded reports whether any activity has been sent during this turn.
func (tc *TurnContext) Responded() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.responded
}

// SetState stores a turn-scoped value under key.
func (tc *TurnContext) SetState(key string, value any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.turnState[key] = value
}

// GetState fetches a turn-scoped value.
func (tc *TurnContext) GetState(key string) (any, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	v, ok := tc.turnState[key]
	return v, ok
}

// DeleteState removes a turn-scoped value.
func (tc *TurnContext) DeleteState(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.turnState, key)
}

// SendActivity sends a single activity as a reply within the current
// conversation and returns the channel receipt.
func (tc *TurnContext) SendActivity(ctx context.Context, activity *Activity) (*ResourceResponse, error) {
	responses, err := tc.SendActivities(ctx, []*Activity{activity})
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return &responses[0], nil
}

// SendText sends a plain message activity with the given text.
func (tc *TurnContext) SendText(ctx context.Context, text string) (*ResourceResponse, error) {
	return tc.SendActivity(ctx, MessageActivity(text))
}

// SendActivities addresses and delivers the activities through the sender.
func (tc *TurnContext) SendActivities(ctx context.Context, activities []*Activity) ([]ResourceResponse, error) {
	ref := tc.activity.GetReference()
	for _, a := range activities {
		a.ApplyReference(ref)
		if a.Type == "" {
			a.Type = ActivityMessage
		}
	}
	responses, err := tc.sender.SendActivities(ctx, activities)
	if err != nil {
		return nil, err
	}
	tc.mu.Lock()
	tc.responded = true
	tc.mu.Unlock()
	return responses, nil
}

// SendInvokeResponse replies to an invoke activity with a structured body.
func (tc *TurnContext) SendInvokeResponse(ctx context.Context, response *InvokeResponse) error {
	_, err := tc.SendActivity(ctx, &Activity{
		Type:  ActivityInvokeResponse,
		Value: response,
	})
	return err
}

// IsMagicCodeFormat reports whether text looks like a six digit sign-in
// correlation code.
func IsMagicCodeFormat(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) != 6 {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
