package gh

import (
	"context"
)

// PullRequest is the subset of pull request metadata the action reports.
type PullRequest struct {
	URL    string
	Number int
	Head   string
	Base   string
}

// Client exposes the GitHub operations used to hand a conflicting merge over
// to a human.
type Client interface {
	FindOpenPullRequest(ctx context.Context, owner, repo, head, base string) (PullRequest, bool, error)
	CreatePullRequest(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error)
	CommentOnPullRequest(ctx context.Context, owner, repo string, number int, body string) error
}

// CreatePROptions defines the metadata required to open a pull request.
type CreatePROptions struct {
	Title               string
	Body                string
	Head                string
	Base                string
	Labels              []string
	MaintainerCanModify bool
}

// Factory builds concrete GitHub clients.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}
