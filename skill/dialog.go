package skill

import (
	"context"

	"go.uber.org/zap"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/types"
)

// Keys inside the skill dialog's instance state bag.
const (
	skillConversationIDKey = "skillConversationId"
	eocSentKey             = "eocSent"
)

// Info identifies a remote skill bot.
type Info struct {
	// ID is the skill's manifest id, used for logging and metrics.
	ID string `yaml:"id" json:"id"`
	// AppID is the skill's bot application id.
	AppID string `yaml:"app_id" json:"app_id"`
	// Endpoint is the skill's messaging endpoint.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// DialogOptions wires a SkillDialog to its skill and infrastructure.
type DialogOptions struct {
	// BotID is the host bot's application id.
	BotID string
	// Skill is the target skill.
	Skill Info
	// Client posts activities to the skill.
	Client Client
	// IDFactory issues skill conversation ids.
	IDFactory IDFactory
	// OAuthScope is attached to the conversation reference for token
	// forwarding.
	OAuthScope string
	Logger     *zap.Logger
}

// BeginOptions are the per-invocation arguments: the activity to hand to
// the skill.
type BeginOptions struct {
	Activity *types.Activity `json:"activity"`
}

// Dialog forwards a conversation to a remote skill. It stays on the stack
// relaying every turn to the skill until the skill sends an
// endOfConversation activity, whose value becomes the dialog result.
type Dialog struct {
	dialog.BaseDialog
	opts DialogOptions
}

// NewDialog creates a skill dialog.
func NewDialog(id string, opts DialogOptions) (*Dialog, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "skill dialog id must not be empty")
	}
	if opts.Client == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "skill dialog requires a client")
	}
	if opts.IDFactory == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "skill dialog requires a conversation id factory")
	}
	if opts.Skill.Endpoint == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "skill dialog requires the skill endpoint")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dialog{BaseDialog: dialog.NewBaseDialog(id), opts: opts}, nil
}

func (d *Dialog) BeginDialog(ctx context.Context, dc *dialog.Context, options any) (dialog.TurnResult, error) {
	args, err := beginOptionsFrom(options)
	if err != nil {
		return dialog.TurnResult{}, err
	}

	ref := &types.SkillConversationReference{
		ConversationReference: dc.Turn().Activity().GetReference(),
		OAuthScope:            d.opts.OAuthScope,
	}
	conversationID, err := d.opts.IDFactory.CreateConversationID(ctx, ref)
	if err != nil {
		return dialog.TurnResult{}, err
	}

	bag, ok := dc.ActiveDialogState()
	if !ok {
		return dialog.TurnResult{}, types.NewError(types.ErrStateNotLoaded, "skill dialog begun without an active instance")
	}
	bag[skillConversationIDKey] = conversationID
	bag[eocSentKey] = false

	d.opts.Logger.Info("starting skill conversation",
		zap.String("skill", d.opts.Skill.ID),
		zap.String("skillConversation", conversationID))

	if err := d.post(ctx, dc.Turn(), conversationID, args.Activity); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (d *Dialog) ContinueDialog(ctx context.Context, dc *dialog.Context) (dialog.TurnResult, error) {
	activity := dc.Turn().Activity()
	bag, _ := dc.ActiveDialogState()
	conversationID, _ := bag[skillConversationIDKey].(string)

	// The skill finishing the conversation ends this dialog with the
	// skill's result.
	if activity != nil && activity.Type == types.ActivityEndOfConversation {
		bag[eocSentKey] = true
		if err := d.opts.IDFactory.DeleteConversationReference(ctx, conversationID); err != nil {
			return dialog.TurnResult{}, err
		}
		d.opts.Logger.Info("skill conversation completed",
			zap.String("skill", d.opts.Skill.ID),
			zap.String("skillConversation", conversationID))
		return dc.EndDialog(ctx, activity.Value)
	}

	if err := d.post(ctx, dc.Turn(), conversationID, activity); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

// RepromptDialog forwards a reprompt event to the skill.
func (d *Dialog) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *dialog.Instance) error {
	if instance == nil {
		return nil
	}
	conversationID, _ := instance.State[skillConversationIDKey].(string)
	return d.post(ctx, tc, conversationID, types.EventActivity(dialog.EventReprompt, nil))
}

// EndDialog tells the skill the conversation is over when the host cancels
// or replaces this dialog. The skill receives exactly one
// endOfConversation.
func (d *Dialog) EndDialog(ctx context.Context, tc *types.TurnContext, instance *dialog.Instance, reason dialog.Reason) error {
	if reason != dialog.ReasonCancelCalled && reason != dialog.ReasonReplaceCalled {
		return nil
	}
	if instance == nil {
		return nil
	}
	if sent, _ := instance.State[eocSentKey].(bool); sent {
		return nil
	}
	instance.State[eocSentKey] = true

	conversationID, _ := instance.State[skillConversationIDKey].(string)
	eoc := types.EndOfConversationActivity(nil, "")
	eoc.Code = "userCancelled"
	if err := d.post(ctx, tc, conversationID, eoc); err != nil {
		return err
	}
	return d.opts.IDFactory.DeleteConversationReference(ctx, conversationID)
}

func (d *Dialog) post(ctx context.Context, tc *types.TurnContext, conversationID string, activity *types.Activity) error {
	serviceURL := ""
	if a := tc.Activity(); a != nil {
		serviceURL = a.ServiceURL
	}
	response, err := d.opts.Client.PostActivity(ctx, d.opts.BotID, d.opts.Skill.AppID,
		d.opts.Skill.Endpoint, serviceURL, conversationID, activity)
	if err != nil {
		return err
	}
	if !response.IsSuccess() {
		return types.NewErrorf(types.ErrSkillRequest, "skill %q returned status %d", d.opts.Skill.ID, response.Status).
			WithHTTPStatus(response.Status)
	}
	return nil
}

// beginOptionsFrom validates and rehydrates the begin arguments.
func beginOptionsFrom(options any) (*BeginOptions, error) {
	if options == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "skill dialog requires begin options")
	}
	args, ok := options.(*BeginOptions)
	if !ok {
		coerced, err := memory.Coerce[*BeginOptions](options)
		if err != nil || coerced == nil {
			return nil, types.NewErrorf(types.ErrOptionsType, "skill dialog options must be *BeginOptions, got %T", options)
		}
		args = coerced
	}
	if args.Activity == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "skill dialog requires an activity to send")
	}
	if args.Activity.Type != types.ActivityMessage && args.Activity.Type != types.ActivityEvent {
		return nil, types.NewErrorf(types.ErrInvalidArgument,
			"skill dialog can only send message or event activities, got %q", args.Activity.Type)
	}
	return args, nil
}
