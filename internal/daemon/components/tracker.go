package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/yakusoku/internal/activity"
	"github.com/harunnryd/yakusoku/internal/clock"
	"github.com/harunnryd/yakusoku/internal/config"
	"github.com/harunnryd/yakusoku/internal/daemon"
	"github.com/harunnryd/yakusoku/internal/enforce"
	"github.com/harunnryd/yakusoku/internal/quiet"
	"github.com/harunnryd/yakusoku/internal/tracker"
)

// TrackerComponent builds the compliance tracker on top of the store and
// notifier components, with the activity probe, enforcement actuator, and
// quiet-hours suppressor from config.
type TrackerComponent struct {
	cfg          *config.Config
	storeComp    *StoreComponent
	notifierComp *NotifierComponent

	tracker *tracker.Tracker
}

func NewTrackerComponent(cfg *config.Config, storeComp *StoreComponent, notifierComp *NotifierComponent) *TrackerComponent {
	return &TrackerComponent{
		cfg:          cfg,
		storeComp:    storeComp,
		notifierComp: notifierComp,
	}
}

func (t *TrackerComponent) Name() string {
	return "Tracker"
}

func (t *TrackerComponent) Dependencies() []string {
	return []string{"Store", "Notifier"}
}

func (t *TrackerComponent) Init(ctx context.Context) error {
	store := t.storeComp.GetStore()
	if store == nil {
		return fmt.Errorf("store not initialized")
	}

	notifier := t.notifierComp.GetNotifier()
	if notifier == nil {
		return fmt.Errorf("notifier not initialized")
	}

	var signal activity.Signal
	if t.cfg.Activity.Command != "" {
		probe, err := activity.NewCommand(t.cfg.Activity.Command)
		if err != nil {
			return fmt.Errorf("create activity probe: %w", err)
		}
		signal = probe
	} else {
		slog.Warn("No activity probe configured, treating every subject as idle")
		signal = activity.NewStatic()
	}

	var actuator enforce.Actuator
	if t.cfg.Enforce.Command != "" {
		cmd, err := enforce.NewCommandActuator(t.cfg.Enforce.Command)
		if err != nil {
			return fmt.Errorf("create enforcement actuator: %w", err)
		}
		actuator = cmd
	}

	enforceTimeout, err := config.DurationOrDefault(t.cfg.Enforce.Timeout, config.DefaultEnforceTimeout)
	if err != nil {
		return fmt.Errorf("parse enforce timeout: %w", err)
	}

	suppressor, err := quiet.New(t.cfg.Quiet.Windows)
	if err != nil {
		return fmt.Errorf("parse quiet hours windows: %w", err)
	}

	tr, err := tracker.NewTracker(
		store,
		signal,
		notifier,
		enforce.NewDispatcher(actuator, enforceTimeout),
		t.storeComp.GetCache(),
		suppressor,
		clock.System{},
		t.cfg.Tracker,
	)
	if err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}
	t.tracker = tr

	if err := t.tracker.Init(ctx); err != nil {
		return fmt.Errorf("initialize tracker: %w", err)
	}

	slog.Info("Tracker initialized", "component", t.Name())
	return nil
}

func (t *TrackerComponent) Start(ctx context.Context) error {
	if t.tracker == nil {
		return fmt.Errorf("tracker not initialized")
	}
	return t.tracker.Start(ctx)
}

func (t *TrackerComponent) Stop(ctx context.Context) error {
	if t.tracker == nil {
		slog.Info("Tracker not initialized, skipping stop", "component", t.Name())
		return nil
	}
	return t.tracker.Stop(ctx)
}

func (t *TrackerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if t.tracker == nil {
		return &daemon.ComponentHealth{Name: t.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}

	if err := t.tracker.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: t.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: t.Name(), Healthy: true}, nil
}

func (t *TrackerComponent) GetTracker() *tracker.Tracker {
	return t.tracker
}
