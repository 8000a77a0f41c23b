package merge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ConflictMarker is the line prefix `git merge-tree` (trivial merge mode)
// prints for a conflicting hunk. Its format is not a documented contract of
// git and may change between releases.
const ConflictMarker = "+<<<<<<< .our"

// FetchHead is the ref updated by FetchRemote.
const FetchHead = "FETCH_HEAD"

// Checker decides whether a merge would succeed without touching the working
// tree or any local branch.
type Checker struct {
	ops Operations
	log *slog.Logger

	detectConflict func(mergeTree string) bool
}

// NewChecker returns a Checker using ops.
func NewChecker(ops Operations, logger *slog.Logger) *Checker {
	return &Checker{ops: ops, log: logger, detectConflict: HasConflictMarker}
}

// HasConflictMarker reports whether merge-tree output contains a conflict.
func HasConflictMarker(mergeTree string) bool {
	return strings.Contains(mergeTree, ConflictMarker)
}

// CheckMergeable fetches destination and simulates merging source into it.
func (c *Checker) CheckMergeable(ctx context.Context, source, destination string) (Verdict, error) {
	if c.ops == nil {
		return Verdict{}, fmt.Errorf("git operations are required")
	}

	if err := c.ops.FetchRemote(ctx, destination); err != nil {
		return Verdict{}, fmt.Errorf("fetch %s: %w", destination, err)
	}

	base, err := c.ops.MergeBase(ctx, FetchHead, source)
	if err != nil {
		return Verdict{}, fmt.Errorf("merge-base of %s and %s: %w", destination, source, err)
	}

	tree, err := c.ops.MergeTree(ctx, base, source, FetchHead)
	if err != nil {
		return Verdict{}, fmt.Errorf("merge-tree of %s and %s: %w", source, destination, err)
	}

	if c.detectConflict(tree) {
		if c.log != nil {
			c.log.Info("merge would conflict", "source", source, "destination", destination, "merge_base", base)
		}
		return Verdict{Mergeable: false, ConflictDetail: tree}, nil
	}

	if c.log != nil {
		c.log.Debug("merge is conflict-free", "source", source, "destination", destination, "merge_base", base)
	}
	return Verdict{Mergeable: true}, nil
}
