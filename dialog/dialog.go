// Package dialog implements the turn-based dialog orchestration core: a
// persisted stack of nested dialogs driven through begin/continue/resume/end
// lifecycle callbacks, with waterfall and component composition and a
// top-level turn manager.
package dialog

import (
	"context"

	"github.com/convoflow/convoflow/telemetry"
	"github.com/convoflow/convoflow/types"
)

// Dialog is one unit of conversation with a begin/continue/resume/end
// lifecycle. Implementations embed BaseDialog for the default behavior.
type Dialog interface {
	// ID returns the registered dialog id.
	ID() string

	// BeginDialog starts the dialog. It runs until the dialog completes or
	// suspends waiting for input.
	BeginDialog(ctx context.Context, dc *Context, options any) (TurnResult, error)

	// ContinueDialog resumes the suspended dialog with the turn's inbound
	// activity.
	ContinueDialog(ctx context.Context, dc *Context) (TurnResult, error)

	// ResumeDialog is called when a child dialog this dialog started has
	// completed, carrying the child's result.
	ResumeDialog(ctx context.Context, dc *Context, reason Reason, result any) (TurnResult, error)

	// RepromptDialog asks the dialog to redisplay its prompt without
	// altering any state.
	RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *Instance) error

	// EndDialog is the cleanup hook invoked when the instance is popped,
	// whatever the reason.
	EndDialog(ctx context.Context, tc *types.TurnContext, instance *Instance, reason Reason) error

	// TelemetryClient returns the dialog's telemetry sink.
	TelemetryClient() telemetry.Client

	// SetTelemetryClient replaces the dialog's telemetry sink.
	SetTelemetryClient(client telemetry.Client)
}

// BaseDialog carries the id and telemetry plumbing shared by every dialog,
// plus the default lifecycle behavior: continue suspends, resume ends the
// dialog with the child's result, reprompt and end are no-ops.
type BaseDialog struct {
	id              string
	telemetryClient telemetry.Client
}

// NewBaseDialog creates the embedded base for a dialog with the given id.
func NewBaseDialog(id string) BaseDialog {
	return BaseDialog{id: id, telemetryClient: telemetry.NoopClient{}}
}

func (b *BaseDialog) ID() string { return b.id }

func (b *BaseDialog) TelemetryClient() telemetry.Client {
	if b.telemetryClient == nil {
		return telemetry.NoopClient{}
	}
	return b.telemetryClient
}

func (b *BaseDialog) SetTelemetryClient(client telemetry.Client) {
	if client == nil {
		client = telemetry.NoopClient{}
	}
	b.telemetryClient = client
}

func (b *BaseDialog) ContinueDialog(ctx context.Context, dc *Context) (TurnResult, error) {
	return EndOfTurn, nil
}

// ResumeDialog by default ends this dialog too, cascading the child's
// result up the stack.
func (b *BaseDialog) ResumeDialog(ctx context.Context, dc *Context, reason Reason, result any) (TurnResult, error) {
	return dc.EndDialog(ctx, result)
}

func (b *BaseDialog) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *Instance) error {
	return nil
}

func (b *BaseDialog) EndDialog(ctx context.Context, tc *types.TurnContext, instance *Instance, reason Reason) error {
	return nil
}
