package dialogue

import (
	"context"
	"fmt"
)

// Static is a deterministic templated backend. It is the default when no
// API key is configured and the workhorse in tests.
type Static struct{}

func (Static) Name() string {
	return "static"
}

func (Static) Generate(ctx context.Context, p PromptContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	subject := p.SubjectKey
	if subject == "" {
		subject = "this"
	}

	switch p.Kind {
	case KindCounter:
		return fmt.Sprintf("That's a bit long. How about %s instead?", FormatDuration(p.Offer)), nil
	case KindClarify:
		return "Sorry, I didn't catch that. How many more minutes do you need?", nil
	default:
		return fmt.Sprintf("You've been on %s for %s now. How much longer do you need?", subject, FormatDuration(p.Elapsed)), nil
	}
}
