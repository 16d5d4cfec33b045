package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/yakusoku/internal/activity"
	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/clock"
	"github.com/harunnryd/yakusoku/internal/config"
	"github.com/harunnryd/yakusoku/internal/enforce"
	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"
	"github.com/harunnryd/yakusoku/internal/notify"
	"github.com/harunnryd/yakusoku/internal/notifycache"
	"github.com/harunnryd/yakusoku/internal/quiet"
)

type Tracker struct {
	store      *agreement.Store
	signal     activity.Signal
	notifier   notify.Notifier
	enforcer   *enforce.Dispatcher
	cache      *notifycache.Store
	suppressor *quiet.Suppressor
	clk        clock.Clock

	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	running       bool
	ticker        *time.Ticker
	inFlightEvals uint

	tickInterval         time.Duration
	gracePeriod          time.Duration
	warningThreshold     time.Duration
	callTimeout          time.Duration
	shutdownTimeout      time.Duration
	inFlightPollInterval time.Duration
	notifyTTL            time.Duration
}

func NewTracker(store *agreement.Store, signal activity.Signal, notifier notify.Notifier, enforcer *enforce.Dispatcher, cache *notifycache.Store, suppressor *quiet.Suppressor, clk clock.Clock, cfg config.TrackerConfig) (*Tracker, error) {
	tickInterval, err := config.DurationOrDefault(cfg.TickInterval, config.DefaultTrackerTickInterval)
	if err != nil {
		return nil, fmt.Errorf("parse tracker tick interval: %w", err)
	}

	gracePeriod, err := config.DurationOrDefault(cfg.GracePeriod, config.DefaultTrackerGracePeriod)
	if err != nil {
		return nil, fmt.Errorf("parse tracker grace period: %w", err)
	}

	warningThreshold, err := config.DurationOrDefault(cfg.WarningThreshold, config.DefaultTrackerWarningThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse tracker warning threshold: %w", err)
	}

	callTimeout, err := config.DurationOrDefault(cfg.CallTimeout, config.DefaultTrackerCallTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse tracker call timeout: %w", err)
	}

	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultTrackerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse tracker shutdown timeout: %w", err)
	}

	inFlightPollInterval, err := config.DurationOrDefault(cfg.InFlightPollInterval, config.DefaultTrackerInFlightPoll)
	if err != nil {
		return nil, fmt.Errorf("parse tracker in-flight poll interval: %w", err)
	}

	notifyTTL, err := config.DurationOrDefault(cfg.NotifyTTL, config.DefaultTrackerNotifyTTL)
	if err != nil {
		return nil, fmt.Errorf("parse tracker notify ttl: %w", err)
	}

	if clk == nil {
		clk = clock.System{}
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	return &Tracker{
		store:                store,
		signal:               signal,
		notifier:             notifier,
		enforcer:             enforcer,
		cache:                cache,
		suppressor:           suppressor,
		clk:                  clk,
		tickInterval:         tickInterval,
		gracePeriod:          gracePeriod,
		warningThreshold:     warningThreshold,
		callTimeout:          callTimeout,
		shutdownTimeout:      shutdownTimeout,
		inFlightPollInterval: inFlightPollInterval,
		notifyTTL:            notifyTTL,
	}, nil
}

func (t *Tracker) Init(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	if t.cache != nil {
		if pruned := t.cache.Prune(); pruned > 0 {
			slog.Info("Pruned expired notification keys", "count", pruned)
		}
	}

	slog.Info("Tracker initialized",
		"tick_interval", t.tickInterval,
		"grace_period", t.gracePeriod,
		"warning_threshold", t.warningThreshold,
	)
	return nil
}

func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.mu.Unlock()

	t.ticker = time.NewTicker(t.tickInterval)

	go t.run(ctx)

	slog.Info("Tracker started")
	return nil
}

func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	t.mu.Unlock()

	if t.ticker != nil {
		t.ticker.Stop()
	}

	t.cancel()

	done := make(chan struct{})
	go func() {
		t.waitForInFlightEvals()
		close(done)
	}()

	select {
	case <-done:
		t.saveCache()
		slog.Info("Tracker stopped gracefully")
		return nil
	case <-time.After(t.shutdownTimeout):
		slog.Warn("Tracker shutdown timeout, force stopping")
		return yakusokuErrors.Internal("shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) Health(ctx context.Context) error {
	if t.ctx == nil {
		return yakusokuErrors.Internal("tracker not initialized")
	}

	if !t.IsRunning() {
		return yakusokuErrors.Internal("tracker not running")
	}

	if _, err := t.store.GetActive(); err != nil {
		return fmt.Errorf("load active agreements: %w", yakusokuErrors.ErrTransient)
	}

	return nil
}

func (t *Tracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func (t *Tracker) run(ctx context.Context) {
	for {
		select {
		case <-t.ticker.C:
			t.onTick(ctx)
		case <-t.ctx.Done():
			slog.Info("Tracker run loop stopped")
			return
		}
	}
}

// signalRead is one per-subject activity reading shared by every
// agreement on that subject within a tick.
type signalRead struct {
	active bool
	err    error
}

func (t *Tracker) onTick(ctx context.Context) {
	now := t.clk.Now()

	// Quiet hours suppress side effects for the whole tick. The clock is
	// never paused, so an agreement can still expire or violate silently
	// and is settled on the first unsuppressed tick.
	if t.suppressor != nil && t.suppressor.Suppressed(now) {
		slog.Debug("Tick suppressed", "now", now)
		return
	}

	active, err := t.store.GetActive()
	if err != nil {
		slog.Error("Failed to load active agreements", "error", err)
		return
	}
	if len(active) == 0 {
		return
	}

	reads := make(map[string]signalRead)
	for _, a := range active {
		if _, done := reads[a.SubjectKey]; done {
			continue
		}
		reads[a.SubjectKey] = t.readSignal(ctx, a.SubjectKey)
	}

	for _, a := range active {
		read := reads[a.SubjectKey]
		if read.err != nil {
			slog.Warn("Activity signal unavailable, skipping agreement this tick",
				"agreement", a.ID,
				"subject", a.SubjectKey,
				"error", read.err,
			)
			continue
		}
		t.evaluate(ctx, a, now, read.active)
	}

	t.saveCache()
}

func (t *Tracker) readSignal(ctx context.Context, subjectKey string) signalRead {
	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	active, err := t.signal.IsSubjectActive(ctx, subjectKey)
	return signalRead{active: active, err: err}
}

func (t *Tracker) evaluate(ctx context.Context, a *agreement.Agreement, now time.Time, active bool) {
	t.mu.Lock()
	t.inFlightEvals++
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.inFlightEvals--
		t.mu.Unlock()
	}()

	snap := DerivePhase(a, now, active, t.gracePeriod, t.warningThreshold)

	switch snap.Phase {
	case PhaseViolation:
		t.onViolation(ctx, a, now)
	case PhaseCompleted:
		t.onCompleted(ctx, a)
	case PhaseGrace:
		t.notifyOnce(ctx, a, PhaseGrace, t.notifier.OnGraceStarted)
	case PhaseWarning:
		t.notifyOnce(ctx, a, PhaseWarning, t.notifier.OnWarning)
	}
}

// onViolation fires enforcement and the violation notifier exactly once,
// gated by the repository status flip rather than the notification cache.
func (t *Tracker) onViolation(ctx context.Context, a *agreement.Agreement, now time.Time) {
	changed, err := t.store.MarkViolated(a.ID, now)
	if err != nil {
		slog.Error("Failed to mark agreement violated", "agreement", a.ID, "error", err)
		return
	}
	if !changed {
		return
	}

	slog.Info("Agreement violated",
		"agreement", a.ID,
		"subject", a.SubjectKey,
		"overdue", now.Sub(a.ExpiresAt),
	)

	if t.enforcer != nil {
		result := t.enforcer.Enforce(ctx, a)
		if result.Status != enforce.StatusSuccess {
			slog.Warn("Enforcement did not succeed",
				"agreement", a.ID,
				"status", result.Status,
				"error", result.Err,
			)
		}
	}

	t.notifyCall(ctx, a, PhaseViolation, t.notifier.OnViolation)
}

func (t *Tracker) onCompleted(ctx context.Context, a *agreement.Agreement) {
	changed, err := t.store.MarkCompleted(a.ID)
	if err != nil {
		slog.Error("Failed to mark agreement completed", "agreement", a.ID, "error", err)
		return
	}
	if !changed {
		return
	}

	slog.Info("Agreement completed", "agreement", a.ID, "subject", a.SubjectKey)
	t.notifyCall(ctx, a, PhaseCompleted, t.notifier.OnCompleted)
}

// notifyOnce fires at most once per agreement and phase, remembered in
// the notification cache. Losing the cache means at most a duplicate
// notification, never duplicate enforcement.
func (t *Tracker) notifyOnce(ctx context.Context, a *agreement.Agreement, phase Phase, call func(context.Context, *agreement.Agreement) error) {
	if t.cache != nil && t.cache.CheckAndMark(notifycache.Key(a.ID, string(phase)), t.notifyTTL) {
		return
	}
	t.notifyCall(ctx, a, phase, call)
}

func (t *Tracker) notifyCall(ctx context.Context, a *agreement.Agreement, phase Phase, call func(context.Context, *agreement.Agreement) error) {
	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	if err := call(ctx, a); err != nil {
		slog.Warn("Notifier call failed", "agreement", a.ID, "phase", phase, "error", err)
	}
}

func (t *Tracker) saveCache() {
	if t.cache == nil {
		return
	}
	if err := t.cache.Save(); err != nil {
		slog.Warn("Failed to persist notification cache", "error", err)
	}
}

func (t *Tracker) waitForInFlightEvals() {
	for {
		t.mu.RLock()
		inFlight := t.inFlightEvals
		t.mu.RUnlock()

		if inFlight == 0 {
			return
		}

		slog.Debug("Waiting for in-flight evaluations", "count", inFlight)
		time.Sleep(t.inFlightPollInterval)
	}
}
