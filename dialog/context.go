package dialog

import (
	"context"

	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/types"
)

// Context drives the dialog stack for one turn. It wraps the TurnContext,
// the persisted stack, an optional parent (for component dialogs) and the
// memory state manager.
type Context struct {
	dialogs   *Set
	turn      *types.TurnContext
	state     *State
	parent    *Context
	memoryCfg *memory.Configuration
	stateMgr  *memory.Manager
	collector *metrics.Collector
}

// ContextOption customizes a dialog Context.
type ContextOption func(*Context)

// WithMemoryConfiguration sets the scope configuration backing State().
func WithMemoryConfiguration(cfg *memory.Configuration) ContextOption {
	return func(dc *Context) { dc.memoryCfg = cfg }
}

// WithMetrics overrides the metrics collector, mainly for tests.
func WithMetrics(c *metrics.Collector) ContextOption {
	return func(dc *Context) { dc.collector = c }
}

// NewContext creates a dialog context over the given set, turn and persisted
// stack state.
func NewContext(dialogs *Set, tc *types.TurnContext, dialogState *State, opts ...ContextOption) *Context {
	if dialogState == nil {
		dialogState = &State{}
	}
	dc := &Context{
		dialogs:   dialogs,
		turn:      tc,
		state:     dialogState,
		collector: metrics.Default(),
	}
	for _, opt := range opts {
		opt(dc)
	}
	if dc.memoryCfg == nil {
		dc.memoryCfg = memory.NewConfiguration()
	}
	memory.SetClassMemoryResolver(tc, classMemoryLookup)
	return dc
}

// classMemoryLookup resolves %-scope reads by finding the dialog the active
// instance belongs to and asking it for its class memory.
func classMemoryLookup(mdc memory.DialogContext, dialogID string) map[string]any {
	dc, ok := mdc.(*Context)
	if !ok {
		return nil
	}
	d := dc.FindDialog(dialogID)
	if d == nil {
		return nil
	}
	if provider, ok := d.(memory.ClassMemoryProvider); ok {
		return provider.ClassMemory()
	}
	return nil
}

func (dc *Context) newChild(dialogs *Set, childState *State) *Context {
	child := NewContext(dialogs, dc.turn, childState, WithMemoryConfiguration(dc.memoryCfg), WithMetrics(dc.collector))
	child.parent = dc
	return child
}

// Turn returns the turn context.
func (dc *Context) Turn() *types.TurnContext { return dc.turn }

// TurnContext implements memory.DialogContext.
func (dc *Context) TurnContext() *types.TurnContext { return dc.turn }

// Stack returns the live dialog stack, innermost last.
func (dc *Context) Stack() []*Instance { return dc.state.Stack }

// ActiveDialog returns the innermost instance, or nil.
func (dc *Context) ActiveDialog() *Instance { return dc.state.ActiveDialog() }

// ActiveDialogState implements memory.DialogContext.
func (dc *Context) ActiveDialogState() (map[string]any, bool) {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil, false
	}
	if inst.State == nil {
		inst.State = map[string]any{}
	}
	return inst.State, true
}

// ActiveDialogID implements memory.DialogContext.
func (dc *Context) ActiveDialogID() string {
	if inst := dc.ActiveDialog(); inst != nil {
		return inst.ID
	}
	return ""
}

// Parent returns the enclosing dialog context, or nil at the root.
func (dc *Context) Parent() *Context { return dc.parent }

// ParentContext implements memory.DialogContext.
func (dc *Context) ParentContext() memory.DialogContext {
	if dc.parent == nil {
		return nil
	}
	return dc.parent
}

// Dialogs returns the set this context resolves dialog ids against.
func (dc *Context) Dialogs() *Set { return dc.dialogs }

// State returns the memory state manager bound to this context, created on
// first use.
func (dc *Context) State() *memory.Manager {
	if dc.stateMgr == nil {
		dc.stateMgr = memory.NewManager(dc, dc.memoryCfg)
	}
	return dc.stateMgr
}

// FindDialog looks up a dialog id in this context's set, then walks up
// through parent contexts.
func (dc *Context) FindDialog(id string) Dialog {
	for cursor := dc; cursor != nil; cursor = cursor.parent {
		if cursor.dialogs == nil {
			continue
		}
		if d := cursor.dialogs.Find(id); d != nil {
			return d
		}
	}
	return nil
}

// BeginDialog pushes a new instance of the named dialog onto the stack and
// starts it.
func (dc *Context) BeginDialog(ctx context.Context, dialogID string, options any) (TurnResult, error) {
	if dialogID == "" {
		return TurnResult{}, types.NewError(types.ErrInvalidArgument, "dialog id must not be empty")
	}
	d := dc.FindDialog(dialogID)
	if d == nil {
		return TurnResult{}, types.NewErrorf(types.ErrDialogNotFound, "dialog %q not found", dialogID)
	}
	dc.state.Stack = append(dc.state.Stack, &Instance{ID: dialogID, State: map[string]any{}})
	dc.collector.RecordDialogBegin(dialogID)
	dc.recordDepth()
	return d.BeginDialog(ctx, dc, options)
}

// Prompt is a convenience wrapper over BeginDialog for prompt dialogs.
// Options are mandatory for prompts.
func (dc *Context) Prompt(ctx context.Context, dialogID string, options any) (TurnResult, error) {
	if options == nil {
		return TurnResult{}, types.NewError(types.ErrInvalidArgument, "prompt options must not be nil")
	}
	return dc.BeginDialog(ctx, dialogID, options)
}

// ContinueDialog routes the turn's activity to the active dialog. With an
// empty stack it returns StatusEmpty.
func (dc *Context) ContinueDialog(ctx context.Context) (TurnResult, error) {
	inst := dc.ActiveDialog()
	if inst == nil {
		return TurnResult{Status: StatusEmpty}, nil
	}
	d := dc.FindDialog(inst.ID)
	if d == nil {
		return TurnResult{}, types.NewErrorf(types.ErrDialogNotFound, "active dialog %q not found", inst.ID)
	}
	return d.ContinueDialog(ctx, dc)
}

// EndDialog pops the active dialog and resumes its parent with the result.
// With nothing left on the stack the turn completes with the result.
func (dc *Context) EndDialog(ctx context.Context, result any) (TurnResult, error) {
	if err := dc.endActiveDialog(ctx, ReasonEndCalled); err != nil {
		return TurnResult{}, err
	}
	if inst := dc.ActiveDialog(); inst != nil {
		d := dc.FindDialog(inst.ID)
		if d == nil {
			return TurnResult{}, types.NewErrorf(types.ErrDialogNotFound, "dialog %q not found", inst.ID)
		}
		return d.ResumeDialog(ctx, dc, ReasonEndCalled, result)
	}
	return TurnResult{Status: StatusComplete, Result: result}, nil
}

// ReplaceDialog ends the active dialog without resuming its parent and
// begins the named dialog in its place.
func (dc *Context) ReplaceDialog(ctx context.Context, dialogID string, options any) (TurnResult, error) {
	if len(dc.state.Stack) > 0 {
		if err := dc.endActiveDialog(ctx, ReasonReplaceCalled); err != nil {
			return TurnResult{}, err
		}
	}
	return dc.BeginDialog(ctx, dialogID, options)
}

// CancelAllDialogs unwinds every instance on this stack and on every parent
// stack, firing each dialog's end hook with ReasonCancelCalled. Returns
// StatusCancelled if anything was cancelled, StatusEmpty otherwise.
func (dc *Context) CancelAllDialogs(ctx context.Context) (TurnResult, error) {
	cancelled := false
	for cursor := dc; cursor != nil; {
		if len(cursor.state.Stack) > 0 {
			if err := cursor.endActiveDialog(ctx, ReasonCancelCalled); err != nil {
				return TurnResult{}, err
			}
			cancelled = true
			continue
		}
		cursor = cursor.parent
	}
	if cancelled {
		return TurnResult{Status: StatusCancelled}, nil
	}
	return TurnResult{Status: StatusEmpty}, nil
}

// RepromptDialog asks the active dialog to redisplay its prompt. No-op on
// an empty stack.
func (dc *Context) RepromptDialog(ctx context.Context) error {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil
	}
	d := dc.FindDialog(inst.ID)
	if d == nil {
		return types.NewErrorf(types.ErrDialogNotFound, "active dialog %q not found", inst.ID)
	}
	return d.RepromptDialog(ctx, dc.turn, inst)
}

// endActiveDialog fires the popped dialog's end hook and removes it from
// the stack.
func (dc *Context) endActiveDialog(ctx context.Context, reason Reason) error {
	inst := dc.ActiveDialog()
	if inst == nil {
		return nil
	}
	if d := dc.FindDialog(inst.ID); d != nil {
		if err := d.EndDialog(ctx, dc.turn, inst, reason); err != nil {
			return err
		}
	}
	dc.state.Stack = dc.state.Stack[:len(dc.state.Stack)-1]
	dc.collector.RecordDialogEnd(inst.ID, string(reason))
	dc.recordDepth()
	return nil
}

func (dc *Context) recordDepth() {
	channelID := ""
	if a := dc.turn.Activity(); a != nil {
		channelID = a.ChannelID
	}
	dc.collector.RecordStackDepth(channelID, len(dc.state.Stack))
}
