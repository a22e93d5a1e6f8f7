package prompts

import (
	"fmt"
	"strings"

	"github.com/convoflow/convoflow/recognizers"
	"github.com/convoflow/convoflow/types"
)

// ListStyle controls how a prompt renders its choices.
type ListStyle string

const (
	// ListStyleNone renders the prompt text without the choices.
	ListStyleNone ListStyle = "none"
	// ListStyleAuto picks inline for few choices and list otherwise.
	ListStyleAuto ListStyle = "auto"
	// ListStyleInline appends the choices to the prompt text, numbered.
	ListStyleInline ListStyle = "inline"
	// ListStyleList renders each choice on its own numbered line.
	ListStyleList ListStyle = "list"
	// ListStyleSuggestedActions renders choices as suggested action
	// buttons.
	ListStyleSuggestedActions ListStyle = "suggestedActions"
	// ListStyleHeroCard renders choices as hero card buttons.
	ListStyleHeroCard ListStyle = "heroCard"
)

// Choice is one selectable option offered by a choice or confirm prompt.
type Choice struct {
	Value    string            `json:"value"`
	Synonyms []string          `json:"synonyms,omitempty"`
	Action   *types.CardAction `json:"action,omitempty"`
}

// ChoicesFromStrings builds plain choices from their display values.
func ChoicesFromStrings(values ...string) []Choice {
	choices := make([]Choice, 0, len(values))
	for _, v := range values {
		choices = append(choices, Choice{Value: v})
	}
	return choices
}

func (c Choice) recognizer() recognizers.Choice {
	return recognizers.Choice{Value: c.Value, Synonyms: c.Synonyms}
}

func recognizerChoices(choices []Choice) []recognizers.Choice {
	out := make([]recognizers.Choice, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.recognizer())
	}
	return out
}

// heroCard is the minimal hero card body needed to carry choice buttons.
type heroCard struct {
	Title   string             `json:"title,omitempty"`
	Text    string             `json:"text,omitempty"`
	Buttons []types.CardAction `json:"buttons,omitempty"`
}

// composeChoices builds the outgoing prompt activity from a base activity
// (or fresh message), the choices and the list style. The base activity's
// text always leads.
func composeChoices(base *types.Activity, choices []Choice, style ListStyle) *types.Activity {
	msg := types.MessageActivity("")
	if base != nil {
		msg = base.Clone()
	}
	if style == ListStyleAuto {
		if len(choices) <= 3 {
			style = ListStyleInline
		} else {
			style = ListStyleList
		}
	}
	if len(choices) == 0 {
		return msg
	}

	switch style {
	case ListStyleNone:
	case ListStyleList:
		var sb strings.Builder
		sb.WriteString(msg.Text)
		sb.WriteString("\n\n")
		for i, c := range choices {
			fmt.Fprintf(&sb, "   %d. %s\n", i+1, c.Value)
		}
		msg.Text = strings.TrimRight(sb.String(), "\n")
	case ListStyleSuggestedActions:
		msg.SuggestedActions = &types.SuggestedActions{Actions: choiceActions(choices)}
	case ListStyleHeroCard:
		card := heroCard{Text: msg.Text, Buttons: choiceActions(choices)}
		msg.Text = ""
		msg.Attachments = append(msg.Attachments, types.Attachment{
			ContentType: types.ContentTypeHeroCard,
			Content:     card,
		})
	default: // ListStyleInline
		msg.Text = strings.TrimRight(msg.Text+" "+inlineChoices(choices), " ")
	}
	return msg
}

// inlineChoices formats choices as "(1) A, (2) B, or (3) C". Two choices
// join with a plain "or".
func inlineChoices(choices []Choice) string {
	parts := make([]string, 0, len(choices))
	for i, c := range choices {
		parts = append(parts, fmt.Sprintf("(%d) %s", i+1, c.Value))
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " or " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", or " + parts[len(parts)-1]
	}
}

func choiceActions(choices []Choice) []types.CardAction {
	actions := make([]types.CardAction, 0, len(choices))
	for _, c := range choices {
		if c.Action != nil {
			actions = append(actions, *c.Action)
			continue
		}
		actions = append(actions, types.CardAction{
			Type:  "imBack",
			Title: c.Value,
			Value: c.Value,
		})
	}
	return actions
}
