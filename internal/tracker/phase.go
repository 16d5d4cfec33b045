// Package tracker polls active agreements on a fixed interval and drives
// the warning, grace, violation, and completion transitions.
package tracker

import (
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
)

// Phase is the derived urgency classification of an agreement at a point
// in time.
type Phase string

const (
	PhaseSafe      Phase = "SAFE"
	PhaseWarning   Phase = "WARNING"
	PhaseGrace     Phase = "EXPIRED_GRACE"
	PhaseViolation Phase = "VIOLATION"
	PhaseCompleted Phase = "COMPLETED"
)

// Rank orders phases by urgency. Violation and completion are both
// terminal and share the top rank.
func (p Phase) Rank() int {
	switch p {
	case PhaseWarning:
		return 1
	case PhaseGrace:
		return 2
	case PhaseViolation, PhaseCompleted:
		return 3
	default:
		return 0
	}
}

// Snapshot is the instantaneous per-tick view of one agreement. It is
// recomputed from wall-clock time every tick and never persisted.
type Snapshot struct {
	Agreement *agreement.Agreement
	Remaining time.Duration
	Phase     Phase
}

// DerivePhase classifies an agreement given the shared per-tick timestamp
// and activity reading. The checks are priority ordered: violation wins
// over everything else, completion over the grace window.
func DerivePhase(a *agreement.Agreement, now time.Time, active bool, grace, warnThreshold time.Duration) Snapshot {
	remaining := a.ExpiresAt.Sub(now)
	snap := Snapshot{Agreement: a, Remaining: remaining}

	switch {
	case remaining <= -grace && active:
		snap.Phase = PhaseViolation
	case remaining <= 0 && !active:
		snap.Phase = PhaseCompleted
	case remaining <= 0:
		snap.Phase = PhaseGrace
	case remaining <= warnThreshold:
		snap.Phase = PhaseWarning
	default:
		snap.Phase = PhaseSafe
	}
	return snap
}
