package tracker

import (
	"testing"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"

	"github.com/stretchr/testify/assert"
)

func TestDerivePhase(t *testing.T) {
	start := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)
	a := agreement.New("game.exe", "late_night", 5*time.Minute, "conv", start)

	grace := 30 * time.Second
	warn := time.Minute

	tests := []struct {
		name   string
		now    time.Time
		active bool
		want   Phase
	}{
		{"fresh", start, true, PhaseSafe},
		{"approaching", start.Add(3 * time.Minute), true, PhaseWarning},
		{"warning boundary", start.Add(4 * time.Minute), true, PhaseWarning},
		{"expired within grace", start.Add(5*time.Minute + 10*time.Second), true, PhaseGrace},
		{"expired and idle", start.Add(5*time.Minute + 10*time.Second), false, PhaseCompleted},
		{"grace exhausted", start.Add(5*time.Minute + 30*time.Second), true, PhaseViolation},
		{"grace exhausted but idle", start.Add(6 * time.Minute), false, PhaseCompleted},
		{"exactly expired and idle", start.Add(5 * time.Minute), false, PhaseCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := DerivePhase(a, tt.now, tt.active, grace, warn)
			assert.Equal(t, tt.want, snap.Phase)
			assert.Equal(t, a.ExpiresAt.Sub(tt.now), snap.Remaining)
		})
	}
}

func TestPhaseRankMonotonic(t *testing.T) {
	start := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)
	a := agreement.New("", "late_night", 5*time.Minute, "conv", start)

	// Walking the clock forward with a constantly active subject never
	// moves the phase backward.
	prev := -1
	for offset := time.Duration(0); offset <= 6*time.Minute; offset += 10 * time.Second {
		snap := DerivePhase(a, start.Add(offset), true, 30*time.Second, time.Minute)
		rank := snap.Phase.Rank()
		assert.GreaterOrEqual(t, rank, prev, "offset %s", offset)
		prev = rank
	}
}
