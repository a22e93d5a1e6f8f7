package types

import (
	"time"

	"github.com/google/uuid"
)

// Activity type constants. These mirror the bot connector protocol values.
const (
	ActivityMessage           = "message"
	ActivityEvent             = "event"
	ActivityInvoke            = "invoke"
	ActivityInvokeResponse    = "invokeResponse"
	ActivityEndOfConversation = "endOfConversation"
	ActivityTyping            = "typing"
)

// Attachment content types understood by channels.
const (
	ContentTypeAdaptiveCard = "application/vnd.microsoft.card.adaptive"
	ContentTypeOAuthCard    = "application/vnd.microsoft.card.oauth"
	ContentTypeHeroCard     = "application/vnd.microsoft.card.hero"
)

// Input hints sent along with outgoing messages.
const (
	InputHintAcceptingInput = "acceptingInput"
	InputHintExpectingInput = "expectingInput"
	InputHintIgnoringInput  = "ignoringInput"
)

// ChannelAccount identifies a user or bot on a channel.
type ChannelAccount struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// ConversationAccount identifies a conversation on a channel.
type ConversationAccount struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"isGroup,omitempty"`
}

// CardAction is a clickable action on a card or suggested action bar.
type CardAction struct {
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
	Value any    `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
}

// SuggestedActions carries quick-reply actions for an activity.
type SuggestedActions struct {
	Actions []CardAction `json:"actions,omitempty"`
}

// Attachment is a typed payload (card, file, media) carried by an activity.
type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Content     any    `json:"content,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Activity is one unit of conversational traffic: a user message, a bot
// reply, a control signal, or an invoke request/response.
type Activity struct {
	Type             string               `json:"type"`
	ID               string               `json:"id,omitempty"`
	Name             string               `json:"name,omitempty"`
	Text             string               `json:"text,omitempty"`
	Speak            string               `json:"speak,omitempty"`
	InputHint        string               `json:"inputHint,omitempty"`
	Locale           string               `json:"locale,omitempty"`
	Value            any                  `json:"value,omitempty"`
	Code             string               `json:"code,omitempty"`
	ChannelID        string               `json:"channelId,omitempty"`
	ServiceURL       string               `json:"serviceUrl,omitempty"`
	From             *ChannelAccount      `json:"from,omitempty"`
	Recipient        *ChannelAccount      `json:"recipient,omitempty"`
	Conversation     *ConversationAccount `json:"conversation,omitempty"`
	ReplyToID        string               `json:"replyToId,omitempty"`
	Attachments      []Attachment         `json:"attachments,omitempty"`
	SuggestedActions *SuggestedActions    `json:"suggestedActions,omitempty"`
	DeliveryMode     string               `json:"deliveryMode,omitempty"`
	Timestamp        time.Time            `json:"timestamp,omitempty"`
}

// MessageActivity builds an outgoing message activity with the given text.
func MessageActivity(text string) *Activity {
	return &Activity{
		Type:      ActivityMessage,
		ID:        uuid.NewString(),
		Text:      text,
		InputHint: InputHintAcceptingInput,
	}
}

// EventActivity builds a named event activity.
func EventActivity(name string, value any) *Activity {
	return &Activity{Type: ActivityEvent, ID: uuid.NewString(), Name: name, Value: value}
}

// EndOfConversationActivity builds an end-of-conversation signal carrying an
// optional result value.
func EndOfConversationActivity(value any, locale string) *Activity {
	return &Activity{Type: ActivityEndOfConversation, ID: uuid.NewString(), Value: value, Locale: locale}
}

// Clone returns a shallow copy of the activity. Reference fields (accounts,
// conversation) are copied so the clone can be re-addressed safely.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	clone := *a
	if a.From != nil {
		from := *a.From
		clone.From = &from
	}
	if a.Recipient != nil {
		rcpt := *a.Recipient
		clone.Recipient = &rcpt
	}
	if a.Conversation != nil {
		conv := *a.Conversation
		clone.Conversation = &conv
	}
	clone.Attachments = append([]Attachment(nil), a.Attachments...)
	return &clone
}

// GetReference extracts the conversation reference that identifies where the
// activity came from.
func (a *Activity) GetReference() *ConversationReference {
	ref := &ConversationReference{
		ActivityID: a.ID,
		ChannelID:  a.ChannelID,
		ServiceURL: a.ServiceURL,
		Locale:     a.Locale,
	}
	if a.From != nil {
		user := *a.From
		ref.User = &user
	}
	if a.Recipient != nil {
		bot := *a.Recipient
		ref.Bot = &bot
	}
	if a.Conversation != nil {
		conv := *a.Conversation
		ref.Conversation = &conv
	}
	return ref
}

// ApplyReference re-addresses the activity as a reply within the referenced
// conversation leg.
func (a *Activity) ApplyReference(ref *ConversationReference) *Activity {
	if ref == nil {
		return a
	}
	a.ChannelID = ref.ChannelID
	a.ServiceURL = ref.ServiceURL
	if ref.Conversation != nil {
		conv := *ref.Conversation
		a.Conversation = &conv
	}
	if ref.Bot != nil {
		from := *ref.Bot
		a.From = &from
	}
	if ref.User != nil {
		rcpt := *ref.User
		a.Recipient = &rcpt
	}
	a.ReplyToID = ref.ActivityID
	return a
}

// ConversationReference identifies one leg of a conversation so activities
// can be addressed to it later.
type ConversationReference struct {
	ActivityID   string               `json:"activityId,omitempty"`
	User         *ChannelAccount      `json:"user,omitempty"`
	Bot          *ChannelAccount      `json:"bot,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	Locale       string               `json:"locale,omitempty"`
}

// SkillConversationReference records both legs of a skill invocation: the
// caller's conversation and the OAuth scope the skill was invoked under.
type SkillConversationReference struct {
	ConversationReference *ConversationReference `json:"conversationReference"`
	OAuthScope            string                 `json:"oauthScope,omitempty"`
}

// ResourceResponse is the channel's receipt for a sent activity.
type ResourceResponse struct {
	ID string `json:"id"`
}

// InvokeResponse is the structured reply to an invoke activity.
type InvokeResponse struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// IsSuccess reports whether the invoke response carries a 2xx status.
func (r *InvokeResponse) IsSuccess() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// TokenResponse is the payload returned by the token service when a user
// token is available.
type TokenResponse struct {
	ChannelID      string `json:"channelId,omitempty"`
	ConnectionName string `json:"connectionName,omitempty"`
	Token          string `json:"token,omitempty"`
	Expiration     string `json:"expiration,omitempty"`
}

// SignInResource describes how a user completes an out-of-band sign-in.
type SignInResource struct {
	SignInLink           string             `json:"signInLink,omitempty"`
	TokenExchangeResource *TokenExchangeResource `json:"tokenExchangeResource,omitempty"`
}

// TokenExchangeResource carries the single-sign-on exchange identifiers.
type TokenExchangeResource struct {
	ID  string `json:"id,omitempty"`
	URI string `json:"uri,omitempty"`
}

// TokenExchangeInvokeRequest is the body of a signin/tokenExchange invoke.
type TokenExchangeInvokeRequest struct {
	ID             string `json:"id,omitempty"`
	ConnectionName string `json:"connectionName,omitempty"`
	Token          string `json:"token,omitempty"`
}

// TokenExchangeInvokeResponse is the body the bot replies with to a
// signin/tokenExchange invoke, on both success and failure.
type TokenExchangeInvokeResponse struct {
	ID             string `json:"id,omitempty"`
	ConnectionName string `json:"connectionName,omitempty"`
	FailureDetail  string `json:"failureDetail,omitempty"`
}
