package git

import (
	"context"
	"fmt"
)

// Repository exposes the git primitives used by the merge protocol. Every
// operation runs in Dir through Runner and turns a nonzero exit into an
// *OperationError.
type Repository struct {
	Runner Runner

	// Dir is the repository root. Commands inherit the process working
	// directory when empty.
	Dir string

	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// RemoteName controls which remote is fetched from and pushed to. Defaults to "origin".
	RemoteName string
}

// NewRepository returns a Repository rooted at dir.
func NewRepository(runner Runner, dir string) *Repository {
	return &Repository{Runner: runner, Dir: dir}
}

func (r *Repository) gitBinary() string {
	if r.Git == "" {
		return "git"
	}
	return r.Git
}

func (r *Repository) remoteName() string {
	if r.RemoteName == "" {
		return "origin"
	}
	return r.RemoteName
}

// CurrentRevision returns the abbreviated commit hash ref points at.
func (r *Repository) CurrentRevision(ctx context.Context, ref string) (string, error) {
	res, err := r.run(ctx, "rev-parse", "--short", ref)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// FetchRemote fetches branch from the remote, updating FETCH_HEAD only.
func (r *Repository) FetchRemote(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "fetch", r.remoteName(), branch)
	return err
}

// MergeBase returns the best common ancestor of the two refs.
func (r *Repository) MergeBase(ctx context.Context, ref1, ref2 string) (string, error) {
	res, err := r.run(ctx, "merge-base", ref1, ref2)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// MergeTree returns the raw output of a trivial three-way merge of ref1 and
// ref2 against base. Nothing is written to refs or the working tree.
func (r *Repository) MergeTree(ctx context.Context, base, ref1, ref2 string) (string, error) {
	res, err := r.run(ctx, "merge-tree", base, ref1, ref2)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// SetConfig writes a repository-local configuration value.
func (r *Repository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.run(ctx, "config", key, value)
	return err
}

func (r *Repository) Checkout(ctx context.Context, ref string) error {
	_, err := r.run(ctx, "checkout", ref)
	return err
}

// MergeInto merges ref into the currently checked out branch.
func (r *Repository) MergeInto(ctx context.Context, ref string) error {
	_, err := r.run(ctx, "merge", ref)
	return err
}

// AbortMerge abandons an in-progress merge and restores the pre-merge state.
func (r *Repository) AbortMerge(ctx context.Context) error {
	_, err := r.run(ctx, "merge", "--abort")
	return err
}

func (r *Repository) PushBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "push", r.remoteName(), branch)
	return err
}

func (r *Repository) run(ctx context.Context, args ...string) (Result, error) {
	if r.Runner == nil {
		return Result{}, fmt.Errorf("git %s: runner is required", args[0])
	}

	res, err := r.Runner.Run(ctx, r.Dir, r.gitBinary(), args...)
	if err != nil {
		return res, fmt.Errorf("git %s: %w", args[0], err)
	}
	if res.ExitCode != 0 {
		return res, &OperationError{
			Operation: args[0],
			Args:      args,
			ExitCode:  res.ExitCode,
			Stderr:    res.Stderr,
		}
	}
	return res, nil
}
