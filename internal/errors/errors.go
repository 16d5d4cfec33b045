package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrNegotiationFailed - dialogue backend unreachable after retry (surfaced to host, conversation stays resumable)
	ErrNegotiationFailed = errors.New("negotiation failed")

	// ErrInvalidState - transition attempted on a terminal negotiation state (fatal to the call, not to the process)
	ErrInvalidState = errors.New("invalid state")

	// ErrActuatorUnavailable - no enforcement actuator configured or reachable
	ErrActuatorUnavailable = errors.New("actuator unavailable")

	// ErrActuatorFailed - enforcement actuator ran but could not complete
	ErrActuatorFailed = errors.New("actuator failed")

	// ErrRepository - agreement storage failure (tick aborts for that agreement only, next tick retries)
	ErrRepository = errors.New("repository error")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput - invalid input
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict - conflict (retry with backoff)
	ErrConflict = errors.New("conflict")

	// ErrTransient - transient error (retry with backoff)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
