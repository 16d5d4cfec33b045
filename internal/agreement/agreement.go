// Package agreement holds the persisted time-agreement model and its
// file-backed repository.
package agreement

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusViolated  Status = "VIOLATED"
)

// Agreement is a bounded commitment produced by a negotiation. Status only
// moves forward: ACTIVE -> COMPLETED or ACTIVE -> VIOLATED, never back.
// The agreed duration is immutable after creation; renegotiation creates a
// successor agreement linked via PrevID.
type Agreement struct {
	ID             string        `json:"id"`
	SubjectKey     string        `json:"subject_key,omitempty"` // empty means "general activity"
	Category       string        `json:"category"`
	AgreedDuration time.Duration `json:"agreed_duration"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	Status         Status        `json:"status"`
	ViolatedAt     *time.Time    `json:"violated_at,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	PrevID         string        `json:"prev_id,omitempty"`
}

func New(subjectKey, category string, d time.Duration, conversationID string, now time.Time) *Agreement {
	if d < 0 {
		d = 0
	}
	return &Agreement{
		ID:             ulid.Make().String(),
		SubjectKey:     subjectKey,
		Category:       category,
		AgreedDuration: d,
		CreatedAt:      now,
		ExpiresAt:      now.Add(d),
		Status:         StatusActive,
		ConversationID: conversationID,
	}
}

// Remaining is the time left before expiry. Negative once expired.
func (a *Agreement) Remaining(now time.Time) time.Duration {
	return a.ExpiresAt.Sub(now)
}

func (a *Agreement) IsActive() bool {
	return a.Status == StatusActive
}
