package dialog

import (
	"github.com/convoflow/convoflow/telemetry"
	"github.com/convoflow/convoflow/types"
)

// Set is a registry of dialogs addressable by id. Adding a dialog also
// cascades the set's telemetry client to it.
type Set struct {
	dialogs         map[string]Dialog
	telemetryClient telemetry.Client
}

// NewSet creates an empty dialog set.
func NewSet() *Set {
	return &Set{
		dialogs:         map[string]Dialog{},
		telemetryClient: telemetry.NoopClient{},
	}
}

// Add registers a dialog. Registering a second dialog under the same id or
// re-registering the same dialog is an error.
func (s *Set) Add(d Dialog) error {
	if d == nil {
		return types.NewError(types.ErrInvalidArgument, "dialog must not be nil")
	}
	if d.ID() == "" {
		return types.NewError(types.ErrInvalidArgument, "dialog id must not be empty")
	}
	if _, exists := s.dialogs[d.ID()]; exists {
		return types.NewErrorf(types.ErrInvalidArgument, "dialog %q already registered", d.ID())
	}
	if telemetry.IsNoop(d.TelemetryClient()) {
		d.SetTelemetryClient(s.telemetryClient)
	}
	s.dialogs[d.ID()] = d
	return nil
}

// Find returns the dialog registered under id, or nil.
func (s *Set) Find(id string) Dialog {
	return s.dialogs[id]
}

// TelemetryClient returns the set's telemetry sink.
func (s *Set) TelemetryClient() telemetry.Client {
	if s.telemetryClient == nil {
		return telemetry.NoopClient{}
	}
	return s.telemetryClient
}

// SetTelemetryClient replaces the set's telemetry sink and pushes it down
// into every registered dialog.
func (s *Set) SetTelemetryClient(client telemetry.Client) {
	if client == nil {
		client = telemetry.NoopClient{}
	}
	s.telemetryClient = client
	for _, d := range s.dialogs {
		d.SetTelemetryClient(client)
	}
}
