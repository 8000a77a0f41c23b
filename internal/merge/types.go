package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Operations are the git primitives the merge protocol is built from.
// *git.Repository satisfies this interface.
type Operations interface {
	CurrentRevision(ctx context.Context, ref string) (string, error)
	FetchRemote(ctx context.Context, branch string) error
	MergeBase(ctx context.Context, ref1, ref2 string) (string, error)
	MergeTree(ctx context.Context, base, ref1, ref2 string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	Checkout(ctx context.Context, ref string) error
	MergeInto(ctx context.Context, ref string) error
	AbortMerge(ctx context.Context) error
	PushBranch(ctx context.Context, branch string) error
}

// Identity is the commit author configured before merging.
type Identity struct {
	UserName  string
	UserEmail string
}

// Request describes one promotion of Source into Destination.
type Request struct {
	Source      string
	Destination string
	Identity    Identity
}

// Validate reports whether the request can be executed.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return errors.New("source branch is required")
	}
	if strings.TrimSpace(r.Destination) == "" {
		return errors.New("destination branch is required")
	}
	if r.Source == r.Destination {
		return fmt.Errorf("source and destination are both %q", r.Source)
	}
	if strings.TrimSpace(r.Identity.UserName) == "" || strings.TrimSpace(r.Identity.UserEmail) == "" {
		return errors.New("git user name and email are required")
	}
	return nil
}

// Verdict is the result of a mergeability check.
type Verdict struct {
	Mergeable bool
	// ConflictDetail holds the merge-tree output when Mergeable is false.
	ConflictDetail string
}

// State names a step of the merge executor.
type State string

const (
	StateChecking    State = "checking"
	StateConfiguring State = "configuring"
	StateMerging     State = "merging"
	StatePushing     State = "pushing"
	StateRestoring   State = "restoring"
	StateDone        State = "done"
)

// Outcome is the terminal result of one Request.
type Outcome struct {
	Succeeded   bool
	Source      string
	Destination string

	// Revision is the abbreviated source revision captured before merging.
	// It may be empty when the lookup itself failed.
	Revision string

	// FailureCause is the message of the first error, empty on success.
	FailureCause string

	// FailedState is the step that failed, empty on success.
	FailedState State

	// Conflict is set when the mergeability check found conflicts.
	Conflict bool
}
