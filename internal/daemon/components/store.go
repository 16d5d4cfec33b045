// Package components wires the daemon's concrete pieces into the
// component lifecycle.
package components

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/clock"
	"github.com/harunnryd/yakusoku/internal/config"
	"github.com/harunnryd/yakusoku/internal/daemon"
	"github.com/harunnryd/yakusoku/internal/notifycache"
)

// StoreComponent owns the agreement repository, the notification cache,
// and the exclusive workspace lock that keeps a second daemon from
// double-enforcing the same agreements.
type StoreComponent struct {
	cfg *config.Config

	mu    sync.RWMutex
	lock  *agreement.FileLock
	store *agreement.Store
	cache *notifycache.Store
}

func NewStoreComponent(cfg *config.Config) *StoreComponent {
	return &StoreComponent{cfg: cfg}
}

func (s *StoreComponent) Name() string {
	return "Store"
}

func (s *StoreComponent) Dependencies() []string {
	return nil
}

func (s *StoreComponent) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockTimeout, err := config.DurationOrDefault(s.cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(s.cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return fmt.Errorf("parse store lock retry: %w", err)
	}
	lockMaxRetry := s.cfg.Store.LockMaxRetry
	if lockMaxRetry <= 0 {
		lockMaxRetry = config.DefaultStoreLockMaxRetry
	}

	store, err := agreement.NewStore(s.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open agreement store: %w", err)
	}

	lock, err := agreement.NewFileLock(s.cfg.Store.Path, &agreement.FileLockConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: lockMaxRetry,
	})
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}

	cache, err := notifycache.NewStore(filepath.Join(s.cfg.Store.Path, "notified.json"), clock.System{})
	if err != nil {
		lock.Unlock()
		return fmt.Errorf("open notification cache: %w", err)
	}

	s.store = store
	s.lock = lock
	s.cache = cache

	slog.Info("Store initialized", "component", s.Name(), "path", s.cfg.Store.Path)
	return nil
}

func (s *StoreComponent) Start(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return fmt.Errorf("store not initialized")
	}
	return nil
}

func (s *StoreComponent) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Save(); err != nil {
			slog.Warn("Failed to persist notification cache on shutdown", "error", err)
		}
	}

	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}

	slog.Info("Store stopped", "component", s.Name())
	return nil
}

func (s *StoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}

	if s.lock == nil || !s.lock.IsLocked() {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("workspace lock not held")}, nil
	}

	if _, err := s.store.GetActive(); err != nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: err}, nil
	}

	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *StoreComponent) GetStore() *agreement.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

func (s *StoreComponent) GetCache() *notifycache.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}
