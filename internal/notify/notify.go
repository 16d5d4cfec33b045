// Package notify defines the fire-and-forget notification sinks the
// tracker calls on phase changes. A notifier failure must never affect
// tracker state; Multi isolates every sink accordingly.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
)

type Notifier interface {
	OnWarning(ctx context.Context, a *agreement.Agreement) error
	OnGraceStarted(ctx context.Context, a *agreement.Agreement) error
	OnViolation(ctx context.Context, a *agreement.Agreement) error
	OnCompleted(ctx context.Context, a *agreement.Agreement) error
}

func subjectOf(a *agreement.Agreement) string {
	if a.SubjectKey == "" {
		return "your activity"
	}
	return a.SubjectKey
}

// Messages shared by the chat-based sinks.
func warningText(a *agreement.Agreement) string {
	return fmt.Sprintf("Heads up: your agreed time for %s is almost up.", subjectOf(a))
}

func graceText(a *agreement.Agreement) string {
	return fmt.Sprintf("Time's up for %s. Wrapping up now keeps the agreement.", subjectOf(a))
}

func violationText(a *agreement.Agreement) string {
	return fmt.Sprintf("Agreement broken: %s kept going past the grace period.", subjectOf(a))
}

func completedText(a *agreement.Agreement) string {
	return fmt.Sprintf("Nice! You stuck to your %s agreement for %s.", a.AgreedDuration.Round(time.Second), subjectOf(a))
}

// LogNotifier writes notifications to the structured log. Always wired as
// the last sink so phase changes are observable even with no chat sinks.
type LogNotifier struct{}

func (LogNotifier) OnWarning(ctx context.Context, a *agreement.Agreement) error {
	slog.Info("Agreement warning", "agreement", a.ID, "subject", a.SubjectKey, "expires_at", a.ExpiresAt)
	return nil
}

func (LogNotifier) OnGraceStarted(ctx context.Context, a *agreement.Agreement) error {
	slog.Info("Agreement grace period started", "agreement", a.ID, "subject", a.SubjectKey)
	return nil
}

func (LogNotifier) OnViolation(ctx context.Context, a *agreement.Agreement) error {
	slog.Warn("Agreement violated", "agreement", a.ID, "subject", a.SubjectKey, "violated_at", a.ViolatedAt)
	return nil
}

func (LogNotifier) OnCompleted(ctx context.Context, a *agreement.Agreement) error {
	slog.Info("Agreement completed", "agreement", a.ID, "subject", a.SubjectKey)
	return nil
}

// Multi fans out to several sinks. Each sink is isolated: errors are
// logged, panics recovered, and remaining sinks still run.
type Multi struct {
	sinks []Notifier
}

func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) each(ctx context.Context, kind string, a *agreement.Agreement, call func(Notifier) error) error {
	for _, sink := range m.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Notifier panicked", "kind", kind, "agreement", a.ID, "panic", r)
				}
			}()
			if err := call(sink); err != nil {
				slog.Warn("Notifier failed", "kind", kind, "agreement", a.ID, "error", err)
			}
		}()
	}
	return nil
}

func (m *Multi) OnWarning(ctx context.Context, a *agreement.Agreement) error {
	return m.each(ctx, "warning", a, func(n Notifier) error { return n.OnWarning(ctx, a) })
}

func (m *Multi) OnGraceStarted(ctx context.Context, a *agreement.Agreement) error {
	return m.each(ctx, "grace", a, func(n Notifier) error { return n.OnGraceStarted(ctx, a) })
}

func (m *Multi) OnViolation(ctx context.Context, a *agreement.Agreement) error {
	return m.each(ctx, "violation", a, func(n Notifier) error { return n.OnViolation(ctx, a) })
}

func (m *Multi) OnCompleted(ctx context.Context, a *agreement.Agreement) error {
	return m.each(ctx, "completed", a, func(n Notifier) error { return n.OnCompleted(ctx, a) })
}
