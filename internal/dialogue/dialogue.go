// Package dialogue is the natural-language port of the negotiation engine.
// A Backend turns a structured prompt context into conversational text;
// wording and personality live entirely behind this interface.
package dialogue

import (
	"context"
	"time"
)

type Kind string

const (
	// KindOpening asks the user how much longer they need.
	KindOpening Kind = "opening"
	// KindCounter presents a clamped counter-offer.
	KindCounter Kind = "counter"
	// KindClarify re-prompts after an unparseable reply.
	KindClarify Kind = "clarify"
)

// PromptContext carries everything a backend may use to phrase a message.
type PromptContext struct {
	Kind       Kind
	Category   string
	SubjectKey string
	Elapsed    time.Duration // time already spent on the subject
	Offer      time.Duration // counter-offer value, set for KindCounter
	Round      int
	Recent     []string // recalled history of similar past negotiations
}

type Backend interface {
	Generate(ctx context.Context, p PromptContext) (string, error)
	Name() string
}
