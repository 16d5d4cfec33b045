package enforce

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/harunnryd/yakusoku/internal/agreement"

	"github.com/google/shlex"
)

// CommandActuator shells out to a configured command, substituting
// {subject} with the agreement's subject key. Typical configs point it at
// a window-closer or process-killer script.
type CommandActuator struct {
	argv []string
}

func NewCommandActuator(command string) (*CommandActuator, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse enforce command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("enforce command is empty")
	}
	return &CommandActuator{argv: argv}, nil
}

func (c *CommandActuator) Name() string {
	return "command"
}

func (c *CommandActuator) Apply(ctx context.Context, a *agreement.Agreement) error {
	argv := make([]string, len(c.argv))
	for i, arg := range c.argv {
		argv[i] = strings.ReplaceAll(arg, "{subject}", a.SubjectKey)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("enforce command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Nop is the explicit no-enforcement actuator for hosts that only want
// notifications.
type Nop struct{}

func (Nop) Name() string {
	return "nop"
}

func (Nop) Apply(ctx context.Context, a *agreement.Agreement) error {
	return nil
}
