package tracker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/yakusoku/internal/activity"
	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/clock"
	"github.com/harunnryd/yakusoku/internal/config"
	"github.com/harunnryd/yakusoku/internal/enforce"
	"github.com/harunnryd/yakusoku/internal/notifycache"
	"github.com/harunnryd/yakusoku/internal/quiet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu         sync.Mutex
	warnings   int
	graces     int
	violations int
	completes  int
}

func (r *recordingNotifier) OnWarning(ctx context.Context, a *agreement.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings++
	return nil
}

func (r *recordingNotifier) OnGraceStarted(ctx context.Context, a *agreement.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graces++
	return nil
}

func (r *recordingNotifier) OnViolation(ctx context.Context, a *agreement.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations++
	return nil
}

func (r *recordingNotifier) OnCompleted(ctx context.Context, a *agreement.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
	return nil
}

type recordingActuator struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingActuator) Name() string { return "recording" }

func (r *recordingActuator) Apply(ctx context.Context, a *agreement.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

type fixture struct {
	tracker  *Tracker
	store    *agreement.Store
	signal   *activity.Static
	notifier *recordingNotifier
	actuator *recordingActuator
	clk      *clock.Fake
}

func newFixture(t *testing.T, suppressor *quiet.Suppressor) *fixture {
	t.Helper()

	dir := t.TempDir()
	store, err := agreement.NewStore(filepath.Join(dir, "agreements"))
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC))

	cache, err := notifycache.NewStore(filepath.Join(dir, "notified.json"), clk)
	require.NoError(t, err)

	signal := activity.NewStatic()
	notifier := &recordingNotifier{}
	actuator := &recordingActuator{}

	tr, err := NewTracker(store, signal, notifier, enforce.NewDispatcher(actuator, time.Second), cache, suppressor, clk, config.TrackerConfig{
		GracePeriod:      "30s",
		WarningThreshold: "1m",
		CallTimeout:      "1s",
	})
	require.NoError(t, err)

	return &fixture{tracker: tr, store: store, signal: signal, notifier: notifier, actuator: actuator, clk: clk}
}

func TestTrackerViolationFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := agreement.New("game.exe", "late_night", 5*time.Minute, "conv", f.clk.Now())
	require.NoError(t, f.store.Save(a))
	f.signal.Set("game.exe", true)

	f.tracker.onTick(ctx)
	assert.Equal(t, 0, f.notifier.warnings)

	// Inside the warning threshold: fires once, then stays quiet.
	f.clk.Advance(4 * time.Minute)
	f.tracker.onTick(ctx)
	f.tracker.onTick(ctx)
	assert.Equal(t, 1, f.notifier.warnings)

	// Expired, still active: grace notice fires once.
	f.clk.Advance(time.Minute + 10*time.Second)
	f.tracker.onTick(ctx)
	f.tracker.onTick(ctx)
	assert.Equal(t, 1, f.notifier.graces)
	assert.Equal(t, 0, f.actuator.calls)

	// Grace exhausted, still active: enforcement fires exactly once.
	f.clk.Advance(30 * time.Second)
	f.tracker.onTick(ctx)
	f.tracker.onTick(ctx)
	assert.Equal(t, 1, f.actuator.calls)
	assert.Equal(t, 1, f.notifier.violations)
	assert.Equal(t, 0, f.notifier.completes)

	got, ok := f.store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, agreement.StatusViolated, got.Status)
	require.NotNil(t, got.ViolatedAt)
}

func TestTrackerCompletionFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := agreement.New("game.exe", "late_night", 5*time.Minute, "conv", f.clk.Now())
	require.NoError(t, f.store.Save(a))

	// Subject stopped within the grace window.
	f.signal.Set("game.exe", false)
	f.clk.Advance(5*time.Minute + time.Second)
	f.tracker.onTick(ctx)
	f.tracker.onTick(ctx)

	assert.Equal(t, 1, f.notifier.completes)
	assert.Equal(t, 0, f.notifier.violations)
	assert.Equal(t, 0, f.actuator.calls)

	got, ok := f.store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, agreement.StatusCompleted, got.Status)

	// Settled agreements drop out of the active set.
	active, err := f.store.GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestTrackerCompletionAfterGraceExhausted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := agreement.New("game.exe", "late_night", 5*time.Minute, "conv", f.clk.Now())
	require.NoError(t, f.store.Save(a))

	// Even well past the grace window, an idle subject completes rather
	// than violates.
	f.signal.Set("game.exe", false)
	f.clk.Advance(10 * time.Minute)
	f.tracker.onTick(ctx)

	got, ok := f.store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, agreement.StatusCompleted, got.Status)
	assert.Equal(t, 0, f.actuator.calls)
}

func TestTrackerSuppressedTick(t *testing.T) {
	suppressor, err := quiet.New(nil)
	require.NoError(t, err)

	f := newFixture(t, suppressor)
	ctx := context.Background()

	a := agreement.New("game.exe", "late_night", 5*time.Minute, "conv", f.clk.Now())
	require.NoError(t, f.store.Save(a))
	f.signal.Set("game.exe", true)

	// The clock keeps moving while snoozed: no side effects fire, but the
	// agreement silently reaches violation territory.
	suppressor.Snooze(f.clk.Now().Add(time.Hour))
	f.clk.Advance(6 * time.Minute)
	f.tracker.onTick(ctx)

	assert.Equal(t, 0, f.notifier.warnings)
	assert.Equal(t, 0, f.actuator.calls)
	got, ok := f.store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, agreement.StatusActive, got.Status)

	// First unsuppressed tick settles it.
	suppressor.Snooze(time.Time{})
	f.tracker.onTick(ctx)
	assert.Equal(t, 1, f.actuator.calls)
	got, _ = f.store.Get(a.ID)
	assert.Equal(t, agreement.StatusViolated, got.Status)
}

func TestTrackerSignalErrorSkipsSubject(t *testing.T) {
	dir := t.TempDir()
	store, err := agreement.NewStore(filepath.Join(dir, "agreements"))
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC))

	cache, err := notifycache.NewStore(filepath.Join(dir, "notified.json"), clk)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	actuator := &recordingActuator{}

	broken := activity.Func(func(ctx context.Context, subjectKey string) (bool, error) {
		return false, fmt.Errorf("signal source down")
	})

	tr, err := NewTracker(store, broken, notifier, enforce.NewDispatcher(actuator, time.Second), cache, nil, clk, config.TrackerConfig{
		GracePeriod:      "30s",
		WarningThreshold: "1m",
	})
	require.NoError(t, err)

	a := agreement.New("game.exe", "late_night", 5*time.Minute, "conv", clk.Now())
	require.NoError(t, store.Save(a))

	clk.Advance(10 * time.Minute)
	tr.onTick(context.Background())

	// No signal, no verdict: the agreement is left for a later tick.
	assert.Equal(t, 0, actuator.calls)
	assert.Equal(t, 0, notifier.violations)
	got, ok := store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, agreement.StatusActive, got.Status)
}

func TestTrackerSharedSubjectSingleRead(t *testing.T) {
	dir := t.TempDir()
	store, err := agreement.NewStore(filepath.Join(dir, "agreements"))
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC))

	cache, err := notifycache.NewStore(filepath.Join(dir, "notified.json"), clk)
	require.NoError(t, err)

	var mu sync.Mutex
	reads := 0
	signal := activity.Func(func(ctx context.Context, subjectKey string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		reads++
		return true, nil
	})

	tr, err := NewTracker(store, signal, &recordingNotifier{}, enforce.NewDispatcher(nil, time.Second), cache, nil, clk, config.TrackerConfig{})
	require.NoError(t, err)

	require.NoError(t, store.Save(agreement.New("game.exe", "late_night", 5*time.Minute, "a", clk.Now())))
	require.NoError(t, store.Save(agreement.New("game.exe", "late_night", 10*time.Minute, "b", clk.Now())))
	require.NoError(t, store.Save(agreement.New("chat.app", "late_night", 5*time.Minute, "c", clk.Now())))

	tr.onTick(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, reads)
}

func TestTrackerLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Error(t, f.tracker.Health(ctx))

	require.NoError(t, f.tracker.Init(ctx))
	assert.Error(t, f.tracker.Health(ctx))

	require.NoError(t, f.tracker.Start(ctx))
	assert.True(t, f.tracker.IsRunning())
	assert.NoError(t, f.tracker.Health(ctx))

	// Start is idempotent.
	require.NoError(t, f.tracker.Start(ctx))

	require.NoError(t, f.tracker.Stop(ctx))
	assert.False(t, f.tracker.IsRunning())
	require.NoError(t, f.tracker.Stop(ctx))
}
