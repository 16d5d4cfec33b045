package activity

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Command probes subject activity by running a configured check command.
// Exit code 0 means active, a nonzero exit means idle, anything else is a
// signal failure. A {subject} placeholder in the argv is substituted with
// the subject key.
type Command struct {
	argv []string
}

func NewCommand(command string) (*Command, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse activity command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("activity command is empty")
	}
	return &Command{argv: argv}, nil
}

func (c *Command) IsSubjectActive(ctx context.Context, subjectKey string) (bool, error) {
	argv := make([]string, len(c.argv))
	for i, arg := range c.argv {
		argv[i] = strings.ReplaceAll(arg, "{subject}", subjectKey)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("run activity command: %w", err)
	}
	return true, nil
}
