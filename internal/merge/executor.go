package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Executor runs the check, configure, merge, push and restore sequence for a
// single Request.
//
// Execute switches branches in the shared working tree, so callers must not
// run two Executors against the same checkout concurrently.
type Executor struct {
	ops     Operations
	checker *Checker
	log     *slog.Logger

	// Remote is the remote name quoted in manual recovery instructions.
	Remote string
}

// NewExecutor returns an Executor that checks mergeability with a Checker
// built on the same operations.
func NewExecutor(ops Operations, logger *slog.Logger) *Executor {
	return &Executor{ops: ops, checker: NewChecker(ops, logger), log: logger}
}

// Execute merges req.Source into req.Destination and pushes the result. The
// source branch is checked out on every return path, whatever was checked out
// before.
//
// Failures of the check, identity configuration, checkout, merge or push are
// reported through the returned Outcome with a nil error. A non-nil error is
// returned for an invalid request and as *RestorationError when the final
// checkout of the source branch fails.
func (e *Executor) Execute(ctx context.Context, req Request) (outcome Outcome, err error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("invalid merge request: %w", err)
	}
	if e.ops == nil {
		return Outcome{}, fmt.Errorf("git operations are required")
	}

	outcome = Outcome{Source: req.Source, Destination: req.Destination}

	defer func() {
		e.enter(req, StateRestoring)
		// Restoration must run even when the caller has been cancelled.
		if restoreErr := e.ops.Checkout(context.WithoutCancel(ctx), req.Source); restoreErr != nil {
			if e.log != nil {
				e.log.Error("failed to restore source checkout", "source", req.Source, "destination", req.Destination, "error", restoreErr)
			}
			err = &RestorationError{Source: req.Source, Err: restoreErr}
			return
		}
		e.enter(req, StateDone)
		if e.log != nil {
			e.log.Info("merge finished",
				"source", outcome.Source,
				"destination", outcome.Destination,
				"revision", outcome.Revision,
				"succeeded", outcome.Succeeded,
				"failed_state", outcome.FailedState)
		}
	}()

	e.enter(req, StateChecking)

	revision, revErr := e.ops.CurrentRevision(ctx, req.Source)
	if revErr != nil {
		if e.log != nil {
			e.log.Warn("could not resolve source revision", "source", req.Source, "error", revErr)
		}
	}
	outcome.Revision = revision

	verdict, checkErr := e.checker.CheckMergeable(ctx, req.Source, req.Destination)
	if checkErr != nil {
		return e.fail(outcome, StateChecking, fmt.Errorf("check mergeability: %w", checkErr)), nil
	}
	if !verdict.Mergeable {
		conflict := &ConflictError{
			Source:      req.Source,
			Destination: req.Destination,
			Revision:    revision,
			Remote:      e.Remote,
			MergeTree:   verdict.ConflictDetail,
		}
		return e.fail(outcome, StateChecking, conflict), nil
	}

	e.enter(req, StateConfiguring)
	if err := e.ops.SetConfig(ctx, "user.email", req.Identity.UserEmail); err != nil {
		return e.fail(outcome, StateConfiguring, fmt.Errorf("configure user.email: %w", err)), nil
	}
	if err := e.ops.SetConfig(ctx, "user.name", req.Identity.UserName); err != nil {
		return e.fail(outcome, StateConfiguring, fmt.Errorf("configure user.name: %w", err)), nil
	}

	e.enter(req, StateMerging)
	if err := e.ops.Checkout(ctx, req.Destination); err != nil {
		return e.fail(outcome, StateMerging, fmt.Errorf("checkout %s: %w", req.Destination, err)), nil
	}
	if err := e.ops.MergeInto(ctx, req.Source); err != nil {
		e.abortMerge(ctx, req)
		return e.fail(outcome, StateMerging, fmt.Errorf("merge %s into %s: %w", req.Source, req.Destination, err)), nil
	}

	e.enter(req, StatePushing)
	if err := e.ops.PushBranch(ctx, req.Destination); err != nil {
		return e.fail(outcome, StatePushing, fmt.Errorf("push %s: %w", req.Destination, err)), nil
	}

	outcome.Succeeded = true
	return outcome, nil
}

func (e *Executor) fail(outcome Outcome, state State, err error) Outcome {
	var conflict *ConflictError

	outcome.Succeeded = false
	outcome.FailedState = state
	outcome.FailureCause = failureCause(err)
	outcome.Conflict = errors.As(err, &conflict)

	if e.log != nil {
		e.log.Warn("merge failed",
			"source", outcome.Source,
			"destination", outcome.Destination,
			"state", state,
			"conflict", outcome.Conflict,
			"error", err)
	}
	return outcome
}

// abortMerge clears a half-finished merge so the source can be checked out
// again. Failure is only logged; restoration reports what is left.
func (e *Executor) abortMerge(ctx context.Context, req Request) {
	if err := e.ops.AbortMerge(context.WithoutCancel(ctx)); err != nil && e.log != nil {
		e.log.Warn("failed to abort merge", "source", req.Source, "destination", req.Destination, "error", err)
	}
}

func (e *Executor) enter(req Request, state State) {
	if e.log != nil {
		e.log.Debug("merge state", "source", req.Source, "destination", req.Destination, "state", state)
	}
}
