package dialog

import (
	"context"

	"github.com/convoflow/convoflow/telemetry"
	"github.com/convoflow/convoflow/types"
)

// Key inside the component's instance state bag holding the inner stack.
const persistedDialogState = "dialogs"

// ComponentDialog packages a set of inner dialogs behind a single dialog
// id. The inner stack is persisted inside the component's own instance
// state, so from the outside the component looks like one dialog.
type ComponentDialog struct {
	BaseDialog
	dialogs         *Set
	initialDialogID string
}

// NewComponentDialog creates a component. The first dialog added becomes
// the initial dialog unless SetInitialDialogID is called.
func NewComponentDialog(id string) (*ComponentDialog, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "component dialog id must not be empty")
	}
	return &ComponentDialog{
		BaseDialog: NewBaseDialog(id),
		dialogs:    NewSet(),
	}, nil
}

// AddDialog registers an inner dialog.
func (c *ComponentDialog) AddDialog(d Dialog) error {
	if err := c.dialogs.Add(d); err != nil {
		return err
	}
	if c.initialDialogID == "" {
		c.initialDialogID = d.ID()
	}
	return nil
}

// InitialDialogID returns the id of the dialog begun when the component
// starts.
func (c *ComponentDialog) InitialDialogID() string { return c.initialDialogID }

// SetInitialDialogID overrides which inner dialog the component begins
// with.
func (c *ComponentDialog) SetInitialDialogID(id string) { c.initialDialogID = id }

// FindDialog looks up an inner dialog by id.
func (c *ComponentDialog) FindDialog(id string) Dialog { return c.dialogs.Find(id) }

// SetTelemetryClient cascades the client to every inner dialog.
func (c *ComponentDialog) SetTelemetryClient(client telemetry.Client) {
	c.BaseDialog.SetTelemetryClient(client)
	c.dialogs.SetTelemetryClient(client)
}

func (c *ComponentDialog) BeginDialog(ctx context.Context, dc *Context, options any) (TurnResult, error) {
	if c.initialDialogID == "" {
		return TurnResult{}, types.NewErrorf(types.ErrInvalidArgument, "component %q has no initial dialog", c.ID())
	}
	inner, err := c.innerContext(dc)
	if err != nil {
		return TurnResult{}, err
	}
	c.TelemetryClient().TrackDialogView(c.ID(), nil)
	result, err := inner.BeginDialog(ctx, c.initialDialogID, options)
	if err != nil {
		return TurnResult{}, err
	}
	if result.Status != StatusWaiting {
		return c.endComponent(ctx, dc, result.Result)
	}
	return EndOfTurn, nil
}

func (c *ComponentDialog) ContinueDialog(ctx context.Context, dc *Context) (TurnResult, error) {
	inner, err := c.innerContext(dc)
	if err != nil {
		return TurnResult{}, err
	}
	result, err := inner.ContinueDialog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	if result.Status == StatusComplete {
		return c.endComponent(ctx, dc, result.Result)
	}
	if result.Status == StatusCancelled {
		return result, nil
	}
	return EndOfTurn, nil
}

// ResumeDialog is called when a dialog the component itself pushed on the
// outer stack completes. Containers only hold the outermost frame, so the
// component just redisplays its inner prompt and keeps waiting.
func (c *ComponentDialog) ResumeDialog(ctx context.Context, dc *Context, reason Reason, result any) (TurnResult, error) {
	if err := c.RepromptDialog(ctx, dc.Turn(), dc.ActiveDialog()); err != nil {
		return TurnResult{}, err
	}
	return EndOfTurn, nil
}

func (c *ComponentDialog) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *Instance) error {
	if instance == nil {
		return nil
	}
	innerState, err := innerStateFrom(instance.State)
	if err != nil {
		return err
	}
	inner := NewContext(c.dialogs, tc, innerState)
	return inner.RepromptDialog(ctx)
}

// EndDialog cancels the inner stack when the component itself is being
// cancelled, so inner dialogs see their cleanup hooks fire.
func (c *ComponentDialog) EndDialog(ctx context.Context, tc *types.TurnContext, instance *Instance, reason Reason) error {
	if reason != ReasonCancelCalled || instance == nil {
		return nil
	}
	innerState, err := innerStateFrom(instance.State)
	if err != nil {
		return err
	}
	inner := NewContext(c.dialogs, tc, innerState)
	_, err = inner.CancelAllDialogs(ctx)
	return err
}

// endComponent pops the component off the outer stack, forwarding the
// inner stack's final result.
func (c *ComponentDialog) endComponent(ctx context.Context, dc *Context, result any) (TurnResult, error) {
	return dc.EndDialog(ctx, result)
}

// innerContext builds a child dialog context over the inner stack stored
// in the component's instance state.
func (c *ComponentDialog) innerContext(dc *Context) (*Context, error) {
	bag, ok := dc.ActiveDialogState()
	if !ok {
		return nil, types.NewErrorf(types.ErrStateNotLoaded, "component %q has no active instance", c.ID())
	}
	innerState, err := innerStateFrom(bag)
	if err != nil {
		return nil, err
	}
	return dc.newChild(c.dialogs, innerState), nil
}

// innerStateFrom rehydrates the inner stack from the instance state bag and
// writes the live *State back so mutations survive until the next save.
func innerStateFrom(bag map[string]any) (*State, error) {
	st, err := StateFrom(bag[persistedDialogState])
	if err != nil {
		return nil, err
	}
	bag[persistedDialogState] = st
	return st, nil
}
