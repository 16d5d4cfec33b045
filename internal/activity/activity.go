// Package activity defines the live-activity signal port the tracker polls.
package activity

import (
	"context"
	"sync"
)

// Signal reports whether the monitored subject is currently active. An
// empty subjectKey asks about general activity. Implementations should be
// cheap: the tracker polls once per distinct subject per tick.
type Signal interface {
	IsSubjectActive(ctx context.Context, subjectKey string) (bool, error)
}

// Func adapts a plain function into a Signal.
type Func func(ctx context.Context, subjectKey string) (bool, error)

func (f Func) IsSubjectActive(ctx context.Context, subjectKey string) (bool, error) {
	return f(ctx, subjectKey)
}

// Static is a settable fixture signal, used in tests and manual setups.
type Static struct {
	mu      sync.RWMutex
	active  map[string]bool
	general bool
}

func NewStatic() *Static {
	return &Static{active: make(map[string]bool)}
}

func (s *Static) Set(subjectKey string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subjectKey == "" {
		s.general = active
		return
	}
	s.active[subjectKey] = active
}

func (s *Static) IsSubjectActive(ctx context.Context, subjectKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if subjectKey == "" {
		return s.general, nil
	}
	return s.active[subjectKey], nil
}
