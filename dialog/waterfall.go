package dialog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/convoflow/convoflow/types"
)

// WaterfallStep is one step of a waterfall. Returning EndOfTurn suspends
// the waterfall; calling step.Next advances to the following step within
// the same turn.
type WaterfallStep func(ctx context.Context, step *WaterfallStepContext) (TurnResult, error)

// Keys inside the waterfall's instance state bag.
const (
	waterfallStepIndexKey  = "stepIndex"
	waterfallValuesKey     = "values"
	waterfallOptionsKey    = "options"
	waterfallInstanceIDKey = "instanceId"
)

// WaterfallDialog executes a fixed sequence of steps, suspending between
// turns and passing each step the previous dialog's result.
type WaterfallDialog struct {
	BaseDialog
	steps []WaterfallStep
}

// NewWaterfallDialog creates a waterfall with the given steps. Steps can
// also be appended later with AddStep.
func NewWaterfallDialog(id string, steps ...WaterfallStep) (*WaterfallDialog, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "waterfall dialog id must not be empty")
	}
	w := &WaterfallDialog{BaseDialog: NewBaseDialog(id)}
	for _, s := range steps {
		if err := w.AddStep(s); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// AddStep appends a step to the waterfall.
func (w *WaterfallDialog) AddStep(step WaterfallStep) error {
	if step == nil {
		return types.NewError(types.ErrInvalidArgument, "waterfall step must not be nil")
	}
	w.steps = append(w.steps, step)
	return nil
}

func (w *WaterfallDialog) BeginDialog(ctx context.Context, dc *Context, options any) (TurnResult, error) {
	bag, ok := dc.ActiveDialogState()
	if !ok {
		return TurnResult{}, types.NewError(types.ErrStateNotLoaded, "waterfall begun without an active instance")
	}
	instanceID := uuid.NewString()
	bag[waterfallOptionsKey] = options
	bag[waterfallValuesKey] = map[string]any{}
	bag[waterfallInstanceIDKey] = instanceID
	w.TelemetryClient().TrackEvent("WaterfallStart", map[string]string{
		"DialogId":   w.ID(),
		"InstanceId": instanceID,
	})
	return w.runStep(ctx, dc, 0, ReasonBeginCalled, nil)
}

func (w *WaterfallDialog) ContinueDialog(ctx context.Context, dc *Context) (TurnResult, error) {
	activity := dc.Turn().Activity()
	if activity == nil || activity.Type != types.ActivityMessage {
		return EndOfTurn, nil
	}
	return w.ResumeDialog(ctx, dc, ReasonContinueCalled, activity.Text)
}

func (w *WaterfallDialog) ResumeDialog(ctx context.Context, dc *Context, reason Reason, result any) (TurnResult, error) {
	bag, ok := dc.ActiveDialogState()
	if !ok {
		return TurnResult{}, types.NewError(types.ErrStateNotLoaded, "waterfall resumed without an active instance")
	}
	index := intFromBag(bag, waterfallStepIndexKey)
	return w.runStep(ctx, dc, index+1, reason, result)
}

func (w *WaterfallDialog) EndDialog(ctx context.Context, tc *types.TurnContext, instance *Instance, reason Reason) error {
	if reason == ReasonCancelCalled {
		props := map[string]string{"DialogId": w.ID()}
		if instance != nil {
			props["InstanceId"] = stringFromBag(instance.State, waterfallInstanceIDKey)
			props["StepName"] = w.stepName(intFromBag(instance.State, waterfallStepIndexKey))
		}
		w.TelemetryClient().TrackEvent("WaterfallCancel", props)
	}
	return nil
}

// runStep executes the step at index, or ends the waterfall with a nil
// result once the steps are exhausted.
func (w *WaterfallDialog) runStep(ctx context.Context, dc *Context, index int, reason Reason, result any) (TurnResult, error) {
	if index >= len(w.steps) {
		w.TelemetryClient().TrackEvent("WaterfallComplete", map[string]string{"DialogId": w.ID()})
		return dc.EndDialog(ctx, result)
	}
	bag, _ := dc.ActiveDialogState()
	bag[waterfallStepIndexKey] = index
	values, err := valuesFromBag(bag)
	if err != nil {
		return TurnResult{}, err
	}
	step := &WaterfallStepContext{
		Context: dc,
		dialog:  w,
		index:   index,
		reason:  reason,
		result:  result,
		values:  values,
		options: bag[waterfallOptionsKey],
	}
	w.TelemetryClient().TrackEvent("WaterfallStep", map[string]string{
		"DialogId":   w.ID(),
		"InstanceId": stringFromBag(bag, waterfallInstanceIDKey),
		"StepName":   w.stepName(index),
	})
	return w.steps[index](ctx, step)
}

func (w *WaterfallDialog) stepName(index int) string {
	return fmt.Sprintf("Step%dof%d", index+1, len(w.steps))
}

// WaterfallStepContext is the dialog context a waterfall step runs in,
// extended with the step's position, the previous result and the persisted
// values bag.
type WaterfallStepContext struct {
	*Context
	dialog     *WaterfallDialog
	index      int
	reason     Reason
	result     any
	values     map[string]any
	options    any
	nextCalled bool
}

// Index returns the zero-based position of this step.
func (s *WaterfallStepContext) Index() int { return s.index }

// Reason returns why the step was invoked.
func (s *WaterfallStepContext) Reason() Reason { return s.reason }

// Result returns the result of the dialog or prompt the previous step
// started, if any.
func (s *WaterfallStepContext) Result() any { return s.result }

// Values is the bag persisted across the waterfall's steps.
func (s *WaterfallStepContext) Values() map[string]any { return s.values }

// Options returns the options the waterfall was begun with.
func (s *WaterfallStepContext) Options() any { return s.options }

// Next skips to the following step within the same turn, passing result
// forward. Calling it twice from one step is an error.
func (s *WaterfallStepContext) Next(ctx context.Context, result any) (TurnResult, error) {
	if s.nextCalled {
		return TurnResult{}, types.NewErrorf(types.ErrInvalidArgument,
			"WaterfallStepContext.Next already called for step %d of dialog %q", s.index, s.dialog.ID())
	}
	s.nextCalled = true
	return s.dialog.ResumeDialog(ctx, s.Context, ReasonNextCalled, result)
}

// valuesFromBag returns the persisted values map, rehydrating and writing
// back whatever JSON round-tripping left behind.
func valuesFromBag(bag map[string]any) (map[string]any, error) {
	switch v := bag[waterfallValuesKey].(type) {
	case nil:
		values := map[string]any{}
		bag[waterfallValuesKey] = values
		return values, nil
	case map[string]any:
		return v, nil
	default:
		return nil, types.NewErrorf(types.ErrStateNotLoaded, "waterfall values bag has type %T", v)
	}
}

func intFromBag(bag map[string]any, key string) int {
	switch v := bag[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringFromBag(bag map[string]any, key string) string {
	s, _ := bag[key].(string)
	return s
}
