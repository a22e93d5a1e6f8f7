package memory

import (
	"context"
	"strings"

	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/types"
)

// DialogContext is the narrow view of a dialog execution context the memory
// scopes need. The dialog package implements it; keeping it an interface
// here avoids a package cycle.
type DialogContext interface {
	// TurnContext returns the turn this context is executing in.
	TurnContext() *types.TurnContext

	// ActiveDialogState returns the state bag of the dialog on top of the
	// stack, or false when the stack is empty.
	ActiveDialogState() (map[string]any, bool)

	// ActiveDialogID returns the registered id of the top dialog, or "".
	ActiveDialogID() string

	// ParentContext returns the enclosing dialog context, or nil.
	ParentContext() DialogContext
}

// ClassMemoryProvider is implemented by dialogs that expose read-only
// properties through the class scope.
type ClassMemoryProvider interface {
	ClassMemory() map[string]any
}

// Scope is one named addressable region of conversation-related memory.
type Scope interface {
	// Name is the path prefix this scope answers to.
	Name() string

	// IncludeInSnapshot reports whether GetSnapshot should include this scope.
	IncludeInSnapshot() bool

	// GetMemory returns the scope's backing object graph for this context.
	GetMemory(ctx context.Context, dc DialogContext) (any, error)

	// SetMemory replaces the scope's backing object graph. Scopes that are
	// computed views reject this.
	SetMemory(ctx context.Context, dc DialogContext, memory any) error
}

// Configuration is the explicitly constructed, process-wide registry of
// memory scopes and path resolvers. Build it once at startup and share it
// read-only across turns.
type Configuration struct {
	scopes    []Scope
	resolvers []PathResolver
}

// ConfigurationOption customizes a Configuration.
type ConfigurationOption func(*Configuration)

// WithScope registers an additional scope.
func WithScope(s Scope) ConfigurationOption {
	return func(c *Configuration) { c.scopes = append(c.scopes, s) }
}

// WithConversationState backs the conversation scope with a bot state bag.
func WithConversationState(bs *state.BotState) ConfigurationOption {
	return WithScope(&botStateScope{name: ScopeConversation, state: bs, snapshot: true})
}

// WithUserState backs the user scope with a bot state bag.
func WithUserState(bs *state.BotState) ConfigurationOption {
	return WithScope(&botStateScope{name: ScopeUser, state: bs, snapshot: true})
}

// WithSettings registers the read-only settings scope.
func WithSettings(settings map[string]any) ConfigurationOption {
	return WithScope(&settingsScope{settings: settings})
}

// WithPathResolver registers an additional path resolver.
func WithPathResolver(r PathResolver) ConfigurationOption {
	return func(c *Configuration) { c.resolvers = append(c.resolvers, r) }
}

// Scope name constants.
const (
	ScopeUser         = "user"
	ScopeConversation = "conversation"
	ScopeTurn         = "turn"
	ScopeDialog       = "dialog"
	ScopeThis         = "this"
	ScopeClass        = "class"
	ScopeSettings     = "settings"
)

// NewConfiguration builds the scope registry with the built-in turn, dialog,
// this, and class scopes plus whatever the options add.
func NewConfiguration(opts ...ConfigurationOption) *Configuration {
	c := &Configuration{
		scopes: []Scope{
			&turnScope{},
			&dialogScope{},
			&thisScope{},
			&classScope{},
		},
		resolvers: DefaultPathResolvers(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scopes returns the registered scopes.
func (c *Configuration) Scopes() []Scope { return c.scopes }

// ResolveScope finds the scope whose name prefixes the canonical path and
// returns the remaining path within that scope.
func (c *Configuration) ResolveScope(path string) (Scope, string, error) {
	name := path
	rest := ""
	for i := 0; i < len(path); i++ {
		if path[i] == '.' || path[i] == '[' {
			name = path[:i]
			rest = path[i:]
			if path[i] == '.' {
				rest = path[i+1:]
			}
			break
		}
	}
	for _, s := range c.scopes {
		if strings.EqualFold(s.Name(), name) {
			return s, rest, nil
		}
	}
	return nil, "", types.NewErrorf(types.ErrScopeNotFound, "no memory scope named %q", name)
}

// turnScope exposes a per-turn dictionary stored in the turn context.
type turnScope struct{}

const turnScopeStateKey = "convoflow.turnScope"

func (turnScope) Name() string            { return ScopeTurn }
func (turnScope) IncludeInSnapshot() bool { return true }

func (turnScope) GetMemory(ctx context.Context, dc DialogContext) (any, error) {
	tc := dc.TurnContext()
	if v, ok := tc.GetState(turnScopeStateKey); ok {
		return v, nil
	}
	bag := make(map[string]any)
	tc.SetState(turnScopeStateKey, bag)
	return bag, nil
}

func (turnScope) SetMemory(ctx context.Context, dc DialogContext, memory any) error {
	bag, ok := memory.(map[string]any)
	if !ok {
		return types.NewError(types.ErrInvalidArgument, "turn memory must be an object")
	}
	dc.TurnContext().SetState(turnScopeStateKey, bag)
	return nil
}

// dialogScope exposes the active dialog's private state bag, walking up
// through parent contexts when the local stack is empty.
type dialogScope struct{}

func (dialogScope) Name() string            { return ScopeDialog }
func (dialogScope) IncludeInSnapshot() bool { return true }

func (dialogScope) GetMemory(ctx context.Context, dc DialogContext) (any, error) {
	for cursor := dc; cursor != nil; cursor = cursor.ParentContext() {
		if bag, ok := cursor.ActiveDialogState(); ok {
			return bag, nil
		}
	}
	return nil, types.NewError(types.ErrInvalidPath, "no active dialog to bind dialog memory to")
}

func (dialogScope) SetMemory(ctx context.Context, dc DialogContext, memory any) error {
	bag, ok := memory.(map[string]any)
	if !ok {
		return types.NewError(types.ErrInvalidArgument, "dialog memory must be an object")
	}
	for cursor := dc; cursor != nil; cursor = cursor.ParentContext() {
		if existing, ok := cursor.ActiveDialogState(); ok {
			for k := range existing {
				delete(existing, k)
			}
			for k, v := range bag {
				existing[k] = v
			}
			return nil
		}
	}
	return types.NewError(types.ErrInvalidPath, "no active dialog to bind dialog memory to")
}

// thisScope exposes the local active dialog's state bag without walking
// parents, so a prompt addresses its own options and not its container's.
type thisScope struct{}

func (thisScope) Name() string            { return ScopeThis }
func (thisScope) IncludeInSnapshot() bool { return true }

func (thisScope) GetMemory(ctx context.Context, dc DialogContext) (any, error) {
	if bag, ok := dc.ActiveDialogState(); ok {
		return bag, nil
	}
	return nil, types.NewError(types.ErrInvalidPath, "no active dialog to bind this memory to")
}

func (thisScope) SetMemory(ctx context.Context, dc DialogContext, memory any) error {
	bag, ok := memory.(map[string]any)
	if !ok {
		return types.NewError(types.ErrInvalidArgument, "this memory must be an object")
	}
	existing, ok := dc.ActiveDialogState()
	if !ok {
		return types.NewError(types.ErrInvalidPath, "no active dialog to bind this memory to")
	}
	for k := range existing {
		delete(existing, k)
	}
	for k, v := range bag {
		existing[k] = v
	}
	return nil
}

// classScope exposes read-only properties of the active dialog.
type classScope struct{}

// ClassMemoryResolver lets the dialog package plug in a lookup from dialog
// id to its class memory without this package importing dialogs.
type ClassMemoryResolver func(dc DialogContext, dialogID string) map[string]any

const classResolverStateKey = "convoflow.classResolver"

// SetClassMemoryResolver installs the lookup for this turn.
func SetClassMemoryResolver(tc *types.TurnContext, resolver ClassMemoryResolver) {
	tc.SetState(classResolverStateKey, resolver)
}

func (classScope) Name() string            { return ScopeClass }
func (classScope) IncludeInSnapshot() bool { return false }

func (classScope) GetMemory(ctx context.Context, dc DialogContext) (any, error) {
	id := dc.ActiveDialogID()
	if id == "" {
		return map[string]any{}, nil
	}
	if v, ok := dc.TurnContext().GetState(classResolverStateKey); ok {
		if resolver, ok := v.(ClassMemoryResolver); ok {
			if mem := resolver(dc, id); mem != nil {
				return mem, nil
			}
		}
	}
	return map[string]any{}, nil
}

func (classScope) SetMemory(ctx context.Context, dc DialogContext, memory any) error {
	return types.NewError(types.ErrInvalidArgument, "class memory is read-only")
}

// settingsScope exposes application settings read-only.
type settingsScope struct {
	settings map[string]any
}

func (settingsScope) Name() string            { return ScopeSettings }
func (settingsScope) IncludeInSnapshot() bool { return false }

func (s *settingsScope) GetMemory(ctx context.Context, dc DialogContext) (any, error) {
	if s.settings == nil {
		return map[string]any{}, nil
	}
	return s.settings, nil
}

func (s *settingsScope) SetMemory(ctx context.Context, dc DialogContext, memory any) error {
	return types.NewError(types.ErrInvalidArgument, "settings memory is read-only")
}

// botStateScope adapts a persisted BotState bag into a memory scope.
type botStateScope struct {
	name     string
	state    *state.BotState
	snapshot bool
}

func (s *botStateScope) Name() string            { return s.name }
func (s *botStateScope) IncludeInSnapshot() bool { return s.snapshot }

func (s *botStateScope) GetMemory(ctx context.Context, dc DialogContext) (any, error) {
	return s.state.Load(ctx, dc.TurnContext(), false)
}

func (s *botStateScope) SetMemory(ctx context.Context, dc DialogContext, memory any) error {
	bag, ok := memory.(map[string]any)
	if !ok {
		return types.NewErrorf(types.ErrInvalidArgument, "%s memory must be an object", s.name)
	}
	existing, err := s.state.Load(ctx, dc.TurnContext(), false)
	if err != nil {
		return err
	}
	for k := range existing {
		delete(existing, k)
	}
	for k, v := range bag {
		existing[k] = v
	}
	return nil
}
