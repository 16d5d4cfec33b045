package negotiation

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the behavioral trigger that starts a negotiation. It is produced
// by an external detector (pattern watcher, UI action) and treated as
// opaque input here.
type Event struct {
	ID         string        `json:"id"`
	Category   string        `json:"category"`
	SubjectKey string        `json:"subject_key,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Recent     []string      `json:"recent,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewEvent(category, subjectKey string, elapsed time.Duration, occurredAt time.Time) Event {
	return Event{
		ID:         ulid.Make().String(),
		Category:   category,
		SubjectKey: subjectKey,
		Elapsed:    elapsed,
		OccurredAt: occurredAt,
	}
}
