package gh

import (
	"context"
	"log/slog"
)

// NewDryRunFactory returns a Factory whose clients log every write and never
// contact GitHub. No pull request is ever found.
func NewDryRunFactory(logger *slog.Logger) Factory {
	return dryRunFactory{log: logger}
}

type dryRunFactory struct {
	log *slog.Logger
}

func (f dryRunFactory) New(ctx context.Context, token string) (Client, error) {
	return dryRunClient{log: f.log}, nil
}

type dryRunClient struct {
	log *slog.Logger
}

func (c dryRunClient) FindOpenPullRequest(ctx context.Context, owner, repo, head, base string) (PullRequest, bool, error) {
	return PullRequest{}, false, nil
}

func (c dryRunClient) CreatePullRequest(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error) {
	if c.log != nil {
		c.log.Info("dry run: skipping pull request creation", "repository", owner+"/"+repo, "head", input.Head, "base", input.Base, "title", input.Title)
	}
	return PullRequest{Head: input.Head, Base: input.Base}, nil
}

func (c dryRunClient) CommentOnPullRequest(ctx context.Context, owner, repo string, number int, body string) error {
	if c.log != nil {
		c.log.Info("dry run: skipping pull request comment", "repository", owner+"/"+repo, "number", number)
	}
	return nil
}
