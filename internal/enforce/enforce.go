// Package enforce dispatches the one-shot enforcement action fired on a
// violation. The repository's MarkViolated gate guarantees the dispatcher
// runs at most once per agreement; failures are reported, never retried
// within the same tick.
package enforce

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"
)

type Status string

const (
	StatusSuccess     Status = "SUCCESS"
	StatusUnavailable Status = "ACTUATOR_UNAVAILABLE"
	StatusFailed      Status = "ACTUATOR_FAILED"
)

// Result reports one enforcement attempt. Err carries the taxonomy
// sentinel (ErrActuatorUnavailable, ErrActuatorFailed) on non-success.
type Result struct {
	Status Status
	Err    error
}

// Actuator is the external enforcement capability (close the tab, kill the
// process). Implementations must respect ctx deadlines.
type Actuator interface {
	Apply(ctx context.Context, a *agreement.Agreement) error
	Name() string
}

type Dispatcher struct {
	actuator Actuator
	timeout  time.Duration
}

func NewDispatcher(actuator Actuator, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{actuator: actuator, timeout: timeout}
}

func (d *Dispatcher) Enforce(ctx context.Context, a *agreement.Agreement) Result {
	if d.actuator == nil {
		slog.Warn("No actuator configured, agreement stays violated on the honor system", "agreement", a.ID)
		return Result{Status: StatusUnavailable, Err: yakusokuErrors.ActuatorUnavailable("no actuator configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.actuator.Apply(ctx, a); err != nil {
		slog.Error("Enforcement failed",
			"agreement", a.ID,
			"actuator", d.actuator.Name(),
			"error", err,
		)
		return Result{Status: StatusFailed, Err: yakusokuErrors.ActuatorFailed(err, d.actuator.Name())}
	}

	slog.Info("Enforcement applied",
		"agreement", a.ID,
		"actuator", d.actuator.Name(),
		"took", time.Since(start),
	)
	return Result{Status: StatusSuccess}
}
