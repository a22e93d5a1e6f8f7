package prompts

import (
	"context"
	"net/http"
	"time"

	"github.com/convoflow/convoflow/dialog"
	"github.com/convoflow/convoflow/memory"
	"github.com/convoflow/convoflow/oauth"
	"github.com/convoflow/convoflow/types"
)

// Invoke and event names that can deliver a token to the OAuth prompt.
const (
	tokenResponseEventName  = "tokens/response"
	verifyStateInvokeName   = "signin/verifyState"
	tokenExchangeInvokeName = "signin/tokenExchange"
)

// DefaultOAuthTimeout is how long an OAuth prompt waits for sign-in before
// giving up when the settings leave Timeout unset.
const DefaultOAuthTimeout = 15 * time.Minute

const oauthExpiresKey = "expires"

// OAuthSettings configures an OAuthPrompt.
type OAuthSettings struct {
	// ConnectionName names the OAuth connection on the token service.
	ConnectionName string
	// Title is the sign-in button caption.
	Title string
	// Text is the card text shown above the button.
	Text string
	// Timeout bounds the whole sign-in exchange. Zero means
	// DefaultOAuthTimeout; negative expires immediately.
	Timeout time.Duration
	// Provider is the token service.
	Provider oauth.TokenProvider
}

// oauthCard is the card body rendered to start the sign-in flow.
type oauthCard struct {
	Text                  string                       `json:"text,omitempty"`
	ConnectionName        string                       `json:"connectionName,omitempty"`
	Buttons               []types.CardAction           `json:"buttons,omitempty"`
	TokenExchangeResource *types.TokenExchangeResource `json:"tokenExchangeResource,omitempty"`
}

// OAuthPrompt signs a user in through the token service. A token can
// arrive four ways: a cached token at begin time, a magic code message, a
// tokens/response event, or a signin invoke (verifyState or
// tokenExchange). The prompt completes with a *types.TokenResponse, or nil
// when it times out.
type OAuthPrompt struct {
	dialog.BaseDialog
	settings  OAuthSettings
	validator Validator[*types.TokenResponse]
	now       func() time.Time
}

// NewOAuthPrompt creates an OAuth prompt. validator may be nil.
func NewOAuthPrompt(id string, settings OAuthSettings, validator Validator[*types.TokenResponse]) (*OAuthPrompt, error) {
	if id == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "prompt id must not be empty")
	}
	if settings.ConnectionName == "" {
		return nil, types.NewError(types.ErrInvalidArgument, "oauth prompt requires a connection name")
	}
	if settings.Provider == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "oauth prompt requires a token provider")
	}
	if settings.Timeout == 0 {
		settings.Timeout = DefaultOAuthTimeout
	}
	if settings.Title == "" {
		settings.Title = "Sign in"
	}
	return &OAuthPrompt{
		BaseDialog: dialog.NewBaseDialog(id),
		settings:   settings,
		validator:  validator,
		now:        time.Now,
	}, nil
}

func (p *OAuthPrompt) BeginDialog(ctx context.Context, dc *dialog.Context, options any) (dialog.TurnResult, error) {
	if options == nil {
		options = &PromptOptions{}
	}
	opts, ok := options.(Options)
	if !ok {
		return dialog.TurnResult{}, types.NewErrorf(types.ErrOptionsType, "prompt %q options must implement Options, got %T", p.ID(), options)
	}
	bag, hasBag := dc.ActiveDialogState()
	if !hasBag {
		return dialog.TurnResult{}, types.NewError(types.ErrStateNotLoaded, "prompt begun without an active instance")
	}
	bag[persistedOptionsKey] = encodeOptions(opts)
	bag[persistedStateKey] = map[string]any{
		attemptCountKey: 0,
		oauthExpiresKey: p.now().Add(p.settings.Timeout).Format(time.RFC3339Nano),
	}

	// A cached token short-circuits the whole flow.
	token, err := p.settings.Provider.GetUserToken(ctx, dc.Turn(), p.settings.ConnectionName, "")
	if err != nil {
		return dialog.TurnResult{}, err
	}
	if token != nil {
		return dc.EndDialog(ctx, token)
	}

	if err := p.sendOAuthCard(ctx, dc.Turn(), opts); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *OAuthPrompt) ContinueDialog(ctx context.Context, dc *dialog.Context) (dialog.TurnResult, error) {
	bag, _ := dc.ActiveDialogState()
	opts, err := DecodeOptions(bag[persistedOptionsKey])
	if err != nil {
		return dialog.TurnResult{}, err
	}
	bag[persistedOptionsKey] = encodeOptions(opts)
	state, ok := bag[persistedStateKey].(map[string]any)
	if !ok {
		state = map[string]any{attemptCountKey: 0}
		bag[persistedStateKey] = state
	}

	// The deadline is checked before any recognition, so a late token is
	// ignored and the prompt completes with no result.
	if p.expired(state) {
		return dc.EndDialog(ctx, nil)
	}

	attempt := intFromState(state, attemptCountKey) + 1
	state[attemptCountKey] = attempt

	token, err := p.recognizeToken(ctx, dc.Turn())
	if err != nil {
		return dialog.TurnResult{}, err
	}

	valid := token != nil
	if p.validator != nil {
		valid, err = p.validator(ctx, &ValidatorContext[*types.TokenResponse]{
			Turn:         dc.Turn(),
			Recognized:   Recognized[*types.TokenResponse]{Value: token, Succeeded: token != nil},
			State:        state,
			Options:      opts,
			AttemptCount: attempt,
		})
		if err != nil {
			return dialog.TurnResult{}, err
		}
	}
	if valid {
		return dc.EndDialog(ctx, token)
	}

	activity := dc.Turn().Activity()
	if activity != nil && activity.Type == types.ActivityMessage && !dc.Turn().Responded() {
		po, _ := opts.(*PromptOptions)
		if po != nil && po.RetryPrompt != nil {
			if _, err := dc.Turn().SendActivity(ctx, po.RetryPrompt); err != nil {
				return dialog.TurnResult{}, err
			}
		}
	}
	return dialog.EndOfTurn, nil
}

func (p *OAuthPrompt) ResumeDialog(ctx context.Context, dc *dialog.Context, reason dialog.Reason, result any) (dialog.TurnResult, error) {
	if err := p.RepromptDialog(ctx, dc.Turn(), dc.ActiveDialog()); err != nil {
		return dialog.TurnResult{}, err
	}
	return dialog.EndOfTurn, nil
}

func (p *OAuthPrompt) RepromptDialog(ctx context.Context, tc *types.TurnContext, instance *dialog.Instance) error {
	if instance == nil {
		return nil
	}
	opts, err := DecodeOptions(instance.State[persistedOptionsKey])
	if err != nil {
		return err
	}
	return p.sendOAuthCard(ctx, tc, opts)
}

// SignOut revokes the user's token for this prompt's connection.
func (p *OAuthPrompt) SignOut(ctx context.Context, tc *types.TurnContext) error {
	return p.settings.Provider.SignOutUser(ctx, tc, p.settings.ConnectionName)
}

func (p *OAuthPrompt) expired(state map[string]any) bool {
	raw, _ := state[oauthExpiresKey].(string)
	if raw == "" {
		return false
	}
	expires, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return false
	}
	return p.now().After(expires)
}

// recognizeToken checks every channel a token can arrive on for this
// turn's activity.
func (p *OAuthPrompt) recognizeToken(ctx context.Context, tc *types.TurnContext) (*types.TokenResponse, error) {
	activity := tc.Activity()
	if activity == nil {
		return nil, nil
	}

	switch {
	case activity.Type == types.ActivityMessage && types.IsMagicCodeFormat(activity.Text):
		return p.settings.Provider.GetUserToken(ctx, tc, p.settings.ConnectionName, activity.Text)

	case activity.Type == types.ActivityEvent && activity.Name == tokenResponseEventName:
		return memory.Coerce[*types.TokenResponse](activity.Value)

	case activity.Type == types.ActivityInvoke && activity.Name == verifyStateInvokeName:
		return p.handleVerifyState(ctx, tc, activity)

	case activity.Type == types.ActivityInvoke && activity.Name == tokenExchangeInvokeName:
		return p.handleTokenExchange(ctx, tc, activity)
	}
	return nil, nil
}

func (p *OAuthPrompt) handleVerifyState(ctx context.Context, tc *types.TurnContext, activity *types.Activity) (*types.TokenResponse, error) {
	code := ""
	if value, ok := activity.Value.(map[string]any); ok {
		code, _ = value["state"].(string)
	}
	token, err := p.settings.Provider.GetUserToken(ctx, tc, p.settings.ConnectionName, code)
	if err != nil {
		return nil, err
	}
	status := http.StatusOK
	if token == nil {
		status = http.StatusNotFound
	}
	if err := tc.SendInvokeResponse(ctx, &types.InvokeResponse{Status: status}); err != nil {
		return nil, err
	}
	return token, nil
}

func (p *OAuthPrompt) handleTokenExchange(ctx context.Context, tc *types.TurnContext, activity *types.Activity) (*types.TokenResponse, error) {
	request, err := memory.Coerce[*types.TokenExchangeInvokeRequest](activity.Value)
	if err != nil || request == nil {
		return nil, p.rejectExchange(ctx, tc, nil, http.StatusBadRequest,
			"The bot received an InvokeActivity with no body.")
	}
	if request.ConnectionName != p.settings.ConnectionName {
		return nil, p.rejectExchange(ctx, tc, request, http.StatusBadRequest,
			"The bot received an InvokeActivity for a connection it does not use.")
	}

	token, exchangeErr := p.settings.Provider.ExchangeToken(ctx, tc, p.settings.ConnectionName, request)
	if exchangeErr != nil || token == nil {
		return nil, p.rejectExchange(ctx, tc, request, http.StatusPreconditionFailed,
			"The bot is unable to exchange the token. Proceed with regular login.")
	}

	body := &types.TokenExchangeInvokeResponse{ID: request.ID, ConnectionName: p.settings.ConnectionName}
	if err := tc.SendInvokeResponse(ctx, &types.InvokeResponse{Status: http.StatusOK, Body: body}); err != nil {
		return nil, err
	}
	return token, nil
}

func (p *OAuthPrompt) rejectExchange(ctx context.Context, tc *types.TurnContext, request *types.TokenExchangeInvokeRequest, status int, detail string) error {
	body := &types.TokenExchangeInvokeResponse{
		ConnectionName: p.settings.ConnectionName,
		FailureDetail:  detail,
	}
	if request != nil {
		body.ID = request.ID
	}
	return tc.SendInvokeResponse(ctx, &types.InvokeResponse{Status: status, Body: body})
}

// sendOAuthCard renders the sign-in card, reusing the options prompt
// activity as the carrier when one was supplied.
func (p *OAuthPrompt) sendOAuthCard(ctx context.Context, tc *types.TurnContext, opts Options) error {
	resource, err := p.settings.Provider.GetSignInResource(ctx, tc, p.settings.ConnectionName)
	if err != nil {
		return err
	}

	msg := types.MessageActivity("")
	if po, ok := opts.(*PromptOptions); ok && po.Prompt != nil {
		msg = po.Prompt.Clone()
	}
	msg.InputHint = types.InputHintAcceptingInput

	card := oauthCard{
		Text:           p.settings.Text,
		ConnectionName: p.settings.ConnectionName,
		Buttons: []types.CardAction{{
			Type:  "signin",
			Title: p.settings.Title,
			Value: resource.SignInLink,
		}},
		TokenExchangeResource: resource.TokenExchangeResource,
	}
	msg.Attachments = append(msg.Attachments, types.Attachment{
		ContentType: types.ContentTypeOAuthCard,
		Content:     card,
	})
	_, err = tc.SendActivity(ctx, msg)
	return err
}
