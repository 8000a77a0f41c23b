package git

import (
	"fmt"
	"strings"
)

// OperationError reports a git subcommand that exited nonzero.
type OperationError struct {
	Operation string
	Args      []string
	ExitCode  int
	Stderr    string
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("git %s failed with exit code %d", e.Operation, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Cause returns the message git itself printed, falling back to the exit
// status when stderr was empty.
func (e *OperationError) Cause() string {
	if e == nil {
		return ""
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		return stderr
	}
	return fmt.Sprintf("exit code %d", e.ExitCode)
}

// Command renders the argv as it was executed, for logs and recovery hints.
func (e *OperationError) Command() string {
	if e == nil {
		return ""
	}
	return "git " + strings.Join(e.Args, " ")
}
