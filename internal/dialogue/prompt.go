package dialogue

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = "You are a gentle but firm screen-time companion. " +
	"The user has been flagged for extended activity and you are negotiating a short, bounded extension. " +
	"Keep replies to one or two sentences. Never promise unlimited time."

// BuildMessages renders the system and user prompts a chat-completion
// backend needs for the given context.
func BuildMessages(p PromptContext) (system string, user string) {
	subject := p.SubjectKey
	if subject == "" {
		subject = "this"
	}

	var b strings.Builder
	switch p.Kind {
	case KindCounter:
		fmt.Fprintf(&b, "The user asked for more time than allowed for the %q category. ", p.Category)
		fmt.Fprintf(&b, "Offer %s instead (negotiation round %d). Phrase it as a friendly counter-offer.", FormatDuration(p.Offer), p.Round)
	case KindClarify:
		b.WriteString("The user's last reply did not contain an understandable amount of time. ")
		b.WriteString("Ask again, suggesting they answer with a number of minutes.")
	default:
		fmt.Fprintf(&b, "The user has spent %s on %s (category %q). ", FormatDuration(p.Elapsed), subject, p.Category)
		b.WriteString("Ask how much longer they need, hinting that a few more minutes is fine.")
	}

	if len(p.Recent) > 0 {
		b.WriteString("\n\nRelevant history of past agreements:\n")
		for _, r := range p.Recent {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	return systemPrompt, b.String()
}

// FormatDuration renders a duration the way a person would say it.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "a moment"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) - h*60
	if m == 0 {
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
