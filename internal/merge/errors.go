package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rancher/branch-merge-action/internal/git"
)

// ConflictError is reported when source cannot be merged into destination
// without manual conflict resolution.
type ConflictError struct {
	Source      string
	Destination string
	Revision    string
	Remote      string
	MergeTree   string
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}

	remote := e.Remote
	if remote == "" {
		remote = "origin"
	}
	revision := e.Revision
	if revision == "" {
		revision = e.Source
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conflicts detected: merge from [%s] to [%s] is not possible. Please do it manually:\n\n", e.Source, e.Destination)
	fmt.Fprintf(&b, "    git fetch %s %s\n", remote, e.Destination)
	fmt.Fprintf(&b, "    git checkout %s\n", e.Destination)
	fmt.Fprintf(&b, "    git merge %s\n", revision)
	fmt.Fprintf(&b, "    git push %s %s\n", remote, e.Destination)
	if detail := strings.TrimSpace(e.MergeTree); detail != "" {
		b.WriteString("\n")
		b.WriteString(detail)
	}
	return b.String()
}

// RestorationError means the working tree could not be switched back to the
// source branch. The checkout is left in an unknown state and no further
// merges may run against it.
type RestorationError struct {
	Source string
	Err    error
}

func (e *RestorationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("restore checkout of %s: %v", e.Source, e.Err)
}

func (e *RestorationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// failureCause prefers the message git printed over the wrapping context.
func failureCause(err error) string {
	if err == nil {
		return ""
	}
	var opErr *git.OperationError
	if errors.As(err, &opErr) {
		return opErr.Cause()
	}
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}
