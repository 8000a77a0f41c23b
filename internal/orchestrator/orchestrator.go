package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gh "github.com/rancher/branch-merge-action/internal/github"
	"github.com/rancher/branch-merge-action/internal/mapping"
	"github.com/rancher/branch-merge-action/internal/merge"
)

// Executor performs one merge attempt.
type Executor interface {
	Execute(ctx context.Context, req merge.Request) (merge.Outcome, error)
}

// Notifier reports a merge outcome to people watching the pipeline.
type Notifier interface {
	Report(ctx context.Context, req merge.Request, outcome merge.Outcome, failuresOnly bool) (bool, error)
}

// Orchestrator runs every configured mapping, one after another, against a
// single working tree.
type Orchestrator struct {
	cfg    Config
	exec   Executor
	notify Notifier
	gh     gh.Client
	log    *slog.Logger
}

// MappingStatus describes what happened to a mapping.
type MappingStatus string

const (
	MappingStatusMerged   MappingStatus = "merged"
	MappingStatusDryRun   MappingStatus = "dry_run"
	MappingStatusConflict MappingStatus = "conflict"
	MappingStatusFailed   MappingStatus = "failed"
	MappingStatusSkipped  MappingStatus = "skipped"
)

const (
	ConflictStrategyFail        = "fail"
	ConflictStrategyPullRequest = "pull-request"
)

// MappingResult captures the outcome of one mapping.
type MappingResult struct {
	Mapping     mapping.Mapping
	Status      MappingStatus
	Reason      string
	Outcome     merge.Outcome
	Notified    bool
	PullRequest *gh.PullRequest
}

// Failed reports whether the mapping should fail the step.
func (m MappingResult) Failed() bool {
	switch m.Status {
	case MappingStatusConflict, MappingStatusFailed, MappingStatusSkipped:
		return true
	default:
		return false
	}
}

// Result captures the outcome of a single orchestrator run.
type Result struct {
	Mappings []MappingResult
}

// Failed returns the mappings that did not merge.
func (r Result) Failed() []MappingResult {
	var failed []MappingResult
	for _, m := range r.Mappings {
		if m.Failed() {
			failed = append(failed, m)
		}
	}
	return failed
}

// New returns a configured Orchestrator instance. notifier and ghClient may be
// nil.
func New(cfg Config, exec Executor, notifier Notifier, ghClient gh.Client, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, exec: exec, notify: notifier, gh: ghClient, log: logger}
}

// Run processes mappings in order. A Result covering every mapping is always
// returned. The error is non-nil when the working tree could not be restored
// or ctx ended; the remaining mappings are then reported as skipped.
func (o *Orchestrator) Run(ctx context.Context, mappings []mapping.Mapping) (Result, error) {
	if o.exec == nil {
		return Result{}, fmt.Errorf("merge executor is required")
	}

	result := Result{Mappings: make([]MappingResult, 0, len(mappings))}

	for i, m := range mappings {
		if err := ctx.Err(); err != nil {
			result.Mappings = append(result.Mappings, skipAll(mappings[i:], "run cancelled before this mapping started")...)
			return result, err
		}

		mr, err := o.runMapping(ctx, m)
		result.Mappings = append(result.Mappings, mr)

		var restoreErr *merge.RestorationError
		if errors.As(err, &restoreErr) {
			reason := fmt.Sprintf("not attempted: checkout of %s could not be restored", restoreErr.Source)
			result.Mappings = append(result.Mappings, skipAll(mappings[i+1:], reason)...)
			return result, err
		}
	}

	return result, nil
}

func (o *Orchestrator) runMapping(ctx context.Context, m mapping.Mapping) (MappingResult, error) {
	req := merge.Request{Source: m.Source, Destination: m.Destination, Identity: o.cfg.Identity}
	mr := MappingResult{Mapping: m}

	if o.log != nil {
		o.log.Info("processing mapping", "source", m.Source, "destination", m.Destination, "dry_run", o.cfg.DryRun)
	}

	outcome, err := o.exec.Execute(ctx, req)
	if err != nil {
		var restoreErr *merge.RestorationError
		if !errors.As(err, &restoreErr) {
			// Rejected before anything ran.
			mr.Status = MappingStatusFailed
			mr.Reason = err.Error()
			mr.Outcome = merge.Outcome{Source: m.Source, Destination: m.Destination, FailureCause: err.Error()}
			o.report(ctx, req, &mr)
			return mr, nil
		}

		if o.log != nil {
			o.log.Error("working tree left in an unknown state", "source", m.Source, "destination", m.Destination, "error", err)
		}
		outcome.Succeeded = false
		outcome.FailureCause = strings.TrimSpace(outcome.FailureCause + "\n" + err.Error())
		mr.Status = MappingStatusFailed
		mr.Reason = err.Error()
		mr.Outcome = outcome
		o.report(ctx, req, &mr)
		return mr, err
	}

	mr.Outcome = outcome
	switch {
	case outcome.Succeeded && o.cfg.DryRun:
		mr.Status = MappingStatusDryRun
		mr.Reason = "dry run enabled"
	case outcome.Succeeded:
		mr.Status = MappingStatusMerged
	case outcome.Conflict:
		mr.Status = MappingStatusConflict
		mr.Reason = firstLine(outcome.FailureCause)
		o.followUpConflict(ctx, &mr)
	default:
		mr.Status = MappingStatusFailed
		mr.Reason = fmt.Sprintf("%s: %s", outcome.FailedState, firstLine(outcome.FailureCause))
	}

	o.report(ctx, req, &mr)
	return mr, nil
}

func (o *Orchestrator) report(ctx context.Context, req merge.Request, mr *MappingResult) {
	if o.notify == nil {
		return
	}

	sent, err := o.notify.Report(ctx, req, mr.Outcome, mr.Mapping.NotifyFailuresOnly)
	if err != nil {
		if o.log != nil {
			o.log.Warn("failed to send notification", "source", req.Source, "destination", req.Destination, "error", err)
		}
		return
	}
	mr.Notified = sent
}

func skipAll(mappings []mapping.Mapping, reason string) []MappingResult {
	results := make([]MappingResult, 0, len(mappings))
	for _, m := range mappings {
		results = append(results, MappingResult{
			Mapping: m,
			Status:  MappingStatusSkipped,
			Reason:  reason,
			Outcome: merge.Outcome{Source: m.Source, Destination: m.Destination, FailureCause: reason},
		})
	}
	return results
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}
