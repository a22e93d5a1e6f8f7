package dialog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/state"
	"github.com/convoflow/convoflow/telemetry"
	"github.com/convoflow/convoflow/types"
)

// EventReprompt is the event activity name that asks the active dialog to
// redisplay its prompt.
const EventReprompt = "repromptDialog"

const skillTurnStateKey = "convoflow.skillTurn"

// MarkSkillTurn flags the turn as one where the bot is running as a skill
// on behalf of a host bot.
func MarkSkillTurn(tc *types.TurnContext) {
	tc.SetState(skillTurnStateKey, true)
}

// IsSkillTurn reports whether the turn was flagged by MarkSkillTurn.
func IsSkillTurn(tc *types.TurnContext) bool {
	v, ok := tc.GetState(skillTurnStateKey)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Manager drives a root dialog for every turn: it loads the persisted
// stack, continues or begins the root dialog, handles skill control
// activities and saves state when the turn is done.
type Manager struct {
	root              Dialog
	dialogs           *Set
	conversationState *state.BotState
	userState         *state.BotState
	property          *state.Property
	settings          map[string]any
	logger            *zap.Logger
	collector         *metrics.Collector
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithUserState attaches user state, saved alongside conversation state at
// the end of each turn and exposed through the user memory scope.
func WithUserState(bs *state.BotState) ManagerOption {
	return func(m *Manager) { m.userState = bs }
}

// WithStateProperty overrides the conversation state property the stack is
// persisted under. The default is "dialogState".
func WithStateProperty(name string) ManagerOption {
	return func(m *Manager) { m.property = m.conversationState.CreateProperty(name) }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithTelemetryClient cascades a telemetry client to the root dialog and
// everything registered after it.
func WithTelemetryClient(client telemetry.Client) ManagerOption {
	return func(m *Manager) { m.dialogs.SetTelemetryClient(client) }
}

// WithSettings exposes a read-only settings bag through the settings
// memory scope.
func WithSettings(settings map[string]any) ManagerOption {
	return func(m *Manager) { m.settings = settings }
}

// NewManager creates a turn manager around a root dialog.
func NewManager(root Dialog, conversationState *state.BotState, opts ...ManagerOption) (*Manager, error) {
	if root == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "root dialog must not be nil")
	}
	if conversationState == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "conversation state must not be nil")
	}
	m := &Manager{
		root:              root,
		dialogs:           NewSet(),
		conversationState: conversationState,
		logger:            zap.NewNop(),
		collector:         metrics.Default(),
	}
	m.property = conversationState.CreateProperty("dialogState")
	if err := m.dialogs.Add(root); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dialogs returns the manager's dialog set, for registering dialogs the
// root dialog begins by id.
func (m *Manager) Dialogs() *Set { return m.dialogs }

// OnTurn processes one inbound activity through the dialog stack. State is
// saved whether or not the dialog logic errored, and both errors are
// reported together.
func (m *Manager) OnTurn(ctx context.Context, tc *types.TurnContext) (TurnResult, error) {
	start := time.Now()
	result, runErr := m.runTurn(ctx, tc)
	saveErr := state.SaveAll(ctx, tc, false, m.saveTargets()...)
	err := errors.Join(runErr, saveErr)

	status := string(result.Status)
	if err != nil {
		status = "error"
	}
	m.collector.RecordTurn(status, time.Since(start).Seconds())
	return result, err
}

func (m *Manager) runTurn(ctx context.Context, tc *types.TurnContext) (TurnResult, error) {
	dc, err := m.createContext(ctx, tc)
	if err != nil {
		return TurnResult{}, err
	}
	activity := tc.Activity()

	if IsSkillTurn(tc) && activity != nil && activity.Type == types.ActivityEndOfConversation {
		m.logger.Debug("cancelling stack on end of conversation",
			zap.String("conversation", conversationID(activity)))
		return dc.CancelAllDialogs(ctx)
	}

	if activity != nil && activity.Type == types.ActivityEvent && activity.Name == EventReprompt {
		if err := dc.RepromptDialog(ctx); err != nil {
			return TurnResult{}, err
		}
		return EndOfTurn, nil
	}

	result, err := dc.ContinueDialog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	if result.Status == StatusEmpty {
		m.logger.Debug("beginning root dialog",
			zap.String("dialog", m.root.ID()),
			zap.String("conversation", conversationID(activity)))
		result, err = dc.BeginDialog(ctx, m.root.ID(), nil)
		if err != nil {
			return TurnResult{}, err
		}
	}

	if IsSkillTurn(tc) && (result.Status == StatusComplete || result.Status == StatusCancelled) {
		if err := m.sendEndOfConversation(ctx, tc, result); err != nil {
			return TurnResult{}, err
		}
	}
	return result, nil
}

// createContext loads the persisted stack out of conversation state and
// builds the turn's dialog context over it.
func (m *Manager) createContext(ctx context.Context, tc *types.TurnContext) (*Context, error) {
	raw, err := m.property.Get(ctx, tc, func() any { return &State{} })
	if err != nil {
		return nil, err
	}
	dialogState, err := StateFrom(raw)
	if err != nil {
		return nil, err
	}
	if err := m.property.Set(ctx, tc, dialogState); err != nil {
		return nil, err
	}

	cfgOpts := []memory.ConfigurationOption{memory.WithConversationState(m.conversationState)}
	if m.userState != nil {
		cfgOpts = append(cfgOpts, memory.WithUserState(m.userState))
	}
	if m.settings != nil {
		cfgOpts = append(cfgOpts, memory.WithSettings(m.settings))
	}
	return NewContext(m.dialogs, tc, dialogState, WithMemoryConfiguration(memory.NewConfiguration(cfgOpts...))), nil
}

// sendEndOfConversation tells the host bot the skill is done, carrying the
// stack's result.
func (m *Manager) sendEndOfConversation(ctx context.Context, tc *types.TurnContext, result TurnResult) error {
	code := "completedSuccessfully"
	if result.Status == StatusCancelled {
		code = "userCancelled"
	}
	locale := ""
	if a := tc.Activity(); a != nil {
		locale = a.Locale
	}
	eoc := types.EndOfConversationActivity(result.Result, locale)
	eoc.Code = code
	_, err := tc.SendActivity(ctx, eoc)
	return err
}

func (m *Manager) saveTargets() []*state.BotState {
	targets := []*state.BotState{m.conversationState}
	if m.userState != nil {
		targets = append(targets, m.userState)
	}
	return targets
}

func conversationID(a *types.Activity) string {
	if a == nil || a.Conversation == nil {
		return ""
	}
	return a.Conversation.ID
}
