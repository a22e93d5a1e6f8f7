package dialog

import (
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/types"
)

// Instance is one persisted frame on the dialog stack: the id of the dialog
// it belongs to and that dialog's private state bag.
type Instance struct {
	ID    string         `json:"id"`
	State map[string]any `json:"state"`
}

// State is the serialized dialog stack for one conversation. The innermost
// (active) dialog is the last element.
type State struct {
	Stack []*Instance `json:"dialogStack"`
}

// ActiveDialog returns the innermost instance, or nil when the stack is
// empty.
func (s *State) ActiveDialog() *Instance {
	if s == nil || len(s.Stack) == 0 {
		return nil
	}
	return s.Stack[len(s.Stack)-1]
}

// StateFrom rehydrates a dialog State from a value loaded out of storage.
// Round-tripping through JSON turns the stack into generic maps, so anything
// that is not already a *State is coerced back.
func StateFrom(v any) (*State, error) {
	switch t := v.(type) {
	case nil:
		return &State{}, nil
	case *State:
		return t, nil
	case State:
		return &t, nil
	}
	st, err := memory.Coerce[*State](v)
	if err != nil {
		return nil, types.NewErrorf(types.ErrStateNotLoaded, "rehydrate dialog state: %v", err)
	}
	if st == nil {
		st = &State{}
	}
	for _, inst := range st.Stack {
		if inst.State == nil {
			inst.State = map[string]any{}
		}
	}
	return st, nil
}
