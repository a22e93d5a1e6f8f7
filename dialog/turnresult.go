package dialog

// TurnStatus describes where the dialog stack stands after processing a turn.
type TurnStatus string

const (
	// StatusEmpty means no dialog was active for the turn.
	StatusEmpty TurnStatus = "empty"

	// StatusWaiting means the active dialog suspended and is waiting for
	// the next inbound activity.
	StatusWaiting TurnStatus = "waiting"

	// StatusComplete means the last dialog on the stack finished and
	// produced a result.
	StatusComplete TurnStatus = "complete"

	// StatusCancelled means the stack was cancelled before completing.
	StatusCancelled TurnStatus = "cancelled"
)

// Reason tells a dialog why its lifecycle callback is being invoked.
type Reason string

const (
	ReasonBeginCalled    Reason = "beginCalled"
	ReasonContinueCalled Reason = "continueCalled"
	ReasonEndCalled      Reason = "endCalled"
	ReasonReplaceCalled  Reason = "replaceCalled"
	ReasonCancelCalled   Reason = "cancelCalled"
	ReasonNextCalled     Reason = "nextCalled"
)

// TurnResult is the outcome of driving the dialog stack for one turn.
// Result is only meaningful when Status is StatusComplete.
type TurnResult struct {
	Status TurnStatus
	Result any
}

// EndOfTurn is the result a dialog returns when it suspends to wait for
// the user's next activity.
var EndOfTurn = TurnResult{Status: StatusWaiting}
