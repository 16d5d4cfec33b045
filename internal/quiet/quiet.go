// Package quiet decides whether notification delivery is suppressed for a
// tick. Quiet hours are recurring windows anchored at a cron spec; a snooze
// is a one-off suppression with an expiry. Suppression never pauses the
// compliance clock: agreements keep expiring and violating while quiet,
// only delivery is held back.
package quiet

import (
	"fmt"
	"sync"
	"time"

	"github.com/harunnryd/yakusoku/internal/config"

	"github.com/robfig/cron/v3"
)

type window struct {
	spec     string
	schedule cron.Schedule
	duration time.Duration
}

type Suppressor struct {
	windows []window

	mu          sync.RWMutex
	snoozeUntil time.Time
}

func New(cfgs []config.QuietWindowConfig) (*Suppressor, error) {
	s := &Suppressor{}
	for _, c := range cfgs {
		schedule, err := cron.ParseStandard(c.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid quiet window spec %q: %w", c.Start, err)
		}
		d, err := config.DurationOrDefault(c.Duration, "")
		if err != nil {
			return nil, fmt.Errorf("invalid quiet window duration for %q: %w", c.Start, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("quiet window duration for %q must be positive", c.Start)
		}
		s.windows = append(s.windows, window{spec: c.Start, schedule: schedule, duration: d})
	}
	return s, nil
}

// Snooze suppresses delivery until the given time. A zero time clears it.
func (s *Suppressor) Snooze(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snoozeUntil = until
}

func (s *Suppressor) Suppressed(now time.Time) bool {
	s.mu.RLock()
	snoozeUntil := s.snoozeUntil
	s.mu.RUnlock()

	if !snoozeUntil.IsZero() && now.Before(snoozeUntil) {
		return true
	}

	for _, w := range s.windows {
		// A window is open when its most recent activation falls within
		// the last `duration`. cron's Next is exclusive, so probe from
		// just before now-duration.
		probe := now.Add(-w.duration - time.Second)
		start := w.schedule.Next(probe)
		if !start.After(now) {
			return true
		}
	}
	return false
}
