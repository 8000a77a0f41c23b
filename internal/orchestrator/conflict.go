package orchestrator

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/rancher/branch-merge-action/internal/github"
)

// followUpConflict hands a conflicting mapping to a human by opening a pull
// request from source into destination, or commenting on the one already
// open. Failures are logged and leave the mapping's status unchanged.
func (o *Orchestrator) followUpConflict(ctx context.Context, mr *MappingResult) {
	if o.cfg.ConflictStrategy != ConflictStrategyPullRequest {
		return
	}
	if o.gh == nil {
		if o.log != nil {
			o.log.Warn("cannot open conflict pull request: github client is not configured", "source", mr.Mapping.Source, "destination", mr.Mapping.Destination)
		}
		return
	}

	m := mr.Mapping
	body := conflictBody(o.cfg.Owner, o.cfg.Repo, m.Source, m.Destination, mr.Outcome.FailureCause)

	existing, found, err := o.gh.FindOpenPullRequest(ctx, o.cfg.Owner, o.cfg.Repo, m.Source, m.Destination)
	if err != nil {
		if o.log != nil {
			o.log.Warn("failed to look up conflict pull request", "source", m.Source, "destination", m.Destination, "error", err)
		}
		return
	}

	if found {
		if err := o.gh.CommentOnPullRequest(ctx, o.cfg.Owner, o.cfg.Repo, existing.Number, body); err != nil {
			if o.log != nil {
				o.log.Warn("failed to comment on conflict pull request", "pr_number", existing.Number, "error", err)
			}
			return
		}
		if o.log != nil {
			o.log.Info("commented on existing conflict pull request", "source", m.Source, "destination", m.Destination, "pr_number", existing.Number, "pr_url", existing.URL)
		}
		mr.PullRequest = &existing
		return
	}

	created, err := o.gh.CreatePullRequest(ctx, o.cfg.Owner, o.cfg.Repo, gh.CreatePROptions{
		Title:               fmt.Sprintf("Merge %s into %s", m.Source, m.Destination),
		Body:                body,
		Head:                m.Source,
		Base:                m.Destination,
		Labels:              o.cfg.ConflictLabels,
		MaintainerCanModify: true,
	})
	if err != nil {
		if o.log != nil {
			o.log.Warn("failed to open conflict pull request", "source", m.Source, "destination", m.Destination, "error", err)
		}
		return
	}

	if o.log != nil {
		o.log.Info("opened conflict pull request", "source", m.Source, "destination", m.Destination, "pr_number", created.Number, "pr_url", created.URL)
	}
	mr.PullRequest = &created
}

func conflictBody(owner, repo, source, destination, cause string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- branch-merge: %s/%s %s -> %s -->\n", owner, repo, source, destination)
	fmt.Fprintf(&b, "Automatic merge of `%s` into `%s` stopped because of conflicts.\n\n", source, destination)
	b.WriteString("Resolve the conflicts on this pull request and merge it to complete the promotion.\n\n")
	if cause = strings.TrimSpace(cause); cause != "" {
		b.WriteString("```\n")
		b.WriteString(cause)
		b.WriteString("\n```\n\n")
	}
	b.WriteString("--\n")
	b.WriteString("Automated by rancher/branch-merge-action.")
	return b.String()
}
