package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rancher/branch-merge-action/internal/event"
	"github.com/rancher/branch-merge-action/internal/git"
	gh "github.com/rancher/branch-merge-action/internal/github"
	"github.com/rancher/branch-merge-action/internal/mapping"
	"github.com/rancher/branch-merge-action/internal/merge"
	"github.com/rancher/branch-merge-action/internal/notify"
	"github.com/rancher/branch-merge-action/internal/orchestrator"
)

// Runner glues together the orchestrator and supporting services to execute the branch merge flow.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	gitRunner git.Runner    // only set for testing via NewRunnerWithDeps
	poster    notify.Poster // only set for testing via NewRunnerWithDeps
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	factory := gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL)
	if cfg.DryRun {
		factory = gh.NewDryRunFactory(logger)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: factory,
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, ghFactory gh.Factory, gitRunner git.Runner, poster notify.Poster) *Runner {
	return &Runner{cfg: cfg, log: log, ghFactory: ghFactory, gitRunner: gitRunner, poster: poster}
}

// Run executes every applicable mapping. It fails when the working tree could
// not be restored or when any mapping did not merge, after the step summary,
// outputs and notifications have been written.
func (r *Runner) Run(ctx context.Context) error {
	if r.log != nil {
		r.log.Info("starting branch merge action run",
			"dry_run", r.cfg.DryRun,
			"conflict_strategy", r.cfg.ConflictStrategy,
			"mappings", len(r.cfg.Mappings),
			"destinations", mapping.Destinations(r.cfg.Mappings))
	}

	mappings, err := r.selectMappings()
	if err != nil {
		return err
	}

	if len(mappings) == 0 {
		if r.log != nil {
			r.log.Info("no mappings apply to this event")
		}
		if err := r.writeStepSummary(orchestrator.Result{}); err != nil && r.log != nil {
			r.log.Warn("failed to write step summary", "error", err)
		}
		if err := r.writeGitHubOutputs(orchestrator.Result{}); err != nil && r.log != nil {
			r.log.Warn("failed to write action outputs", "error", err)
		}
		return nil
	}

	var ghClient gh.Client
	if r.cfg.ConflictStrategy == orchestrator.ConflictStrategyPullRequest && r.ghFactory != nil {
		ghClient, err = r.ghFactory.New(ctx, r.cfg.GitHubToken)
		if err != nil {
			return fmt.Errorf("initialize github client: %w", err)
		}
	}

	orchCfg := orchestrator.Config{
		Identity:         merge.Identity{UserName: r.cfg.GitUserName, UserEmail: r.cfg.GitUserEmail},
		ConflictStrategy: r.cfg.ConflictStrategy,
		ConflictLabels:   r.cfg.ConflictLabels,
		Owner:            r.cfg.Owner(),
		Repo:             r.cfg.Repo(),
		DryRun:           r.cfg.DryRun,
	}

	orch := orchestrator.New(orchCfg, r.buildExecutor(), r.buildReporter(), ghClient, r.log)

	result, runErr := orch.Run(ctx, mappings)

	for _, m := range result.Mappings {
		if r.log != nil {
			r.log.Info("evaluated mapping", "source", m.Mapping.Source, "destination", m.Mapping.Destination, "status", m.Status, "reason", m.Reason)
		}
	}

	if err := r.writeStepSummary(result); err != nil && r.log != nil {
		r.log.Warn("failed to write step summary", "error", err)
	}

	if err := r.writeGitHubOutputs(result); err != nil && r.log != nil {
		r.log.Warn("failed to write action outputs", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("run mappings: %w", runErr)
	}

	if failed := result.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, m := range failed {
			names = append(names, m.Mapping.String())
		}
		return fmt.Errorf("merge failed for %d mapping(s): %s", len(failed), strings.Join(names, ", "))
	}

	return nil
}

// Check reports whether source merges cleanly into destination without
// changing the working tree.
func (r *Runner) Check(ctx context.Context, source, destination string) (merge.Verdict, error) {
	source = mapping.NormalizeBranch(source)
	destination = mapping.NormalizeBranch(destination)
	if err := mapping.Validate([]mapping.Mapping{{Source: source, Destination: destination}}); err != nil {
		return merge.Verdict{}, err
	}

	checker := merge.NewChecker(r.buildRepository(), r.log)
	return checker.CheckMergeable(ctx, source, destination)
}

// selectMappings narrows the configured mappings to the pushed branch on push
// events.
func (r *Runner) selectMappings() ([]mapping.Mapping, error) {
	eventName := strings.TrimSpace(os.Getenv("GITHUB_EVENT_NAME"))
	if eventName != event.NamePush || !r.cfg.MatchPushedBranch {
		return r.cfg.Mappings, nil
	}

	eventPath := strings.TrimSpace(os.Getenv("GITHUB_EVENT_PATH"))
	if eventPath == "" {
		return nil, fmt.Errorf("GITHUB_EVENT_PATH is required for push events")
	}

	payload, err := event.ParsePushEventFile(eventPath)
	if err != nil {
		return nil, fmt.Errorf("parse push event: %w", err)
	}

	if !payload.IsBranch() || payload.Deleted {
		if r.log != nil {
			r.log.Info("ignoring push that did not update a branch", "ref", payload.Ref, "deleted", payload.Deleted)
		}
		return nil, nil
	}

	selected := mapping.ForSource(r.cfg.Mappings, payload.Branch)
	if r.log != nil {
		r.log.Debug("selected mappings for pushed branch", "branch", payload.Branch, "selected", len(selected), "configured", len(r.cfg.Mappings))
	}
	return selected, nil
}

func (r *Runner) buildRepository() *git.Repository {
	runner := r.gitRunner
	if runner == nil {
		shell := git.NewShellRunner(r.log)
		shell.Timeout = r.cfg.CommandTimeout
		runner = shell
	}
	if r.cfg.DryRun {
		runner = git.NewDryRunRunner(runner, r.log)
	}

	repo := git.NewRepository(runner, r.cfg.RepositoryPath)
	repo.RemoteName = r.cfg.Remote
	return repo
}

func (r *Runner) buildExecutor() *merge.Executor {
	executor := merge.NewExecutor(r.buildRepository(), r.log)
	executor.Remote = r.cfg.Remote
	return executor
}

func (r *Runner) buildReporter() *notify.Reporter {
	poster := r.poster
	if poster == nil && r.cfg.SlackWebhookURL != "" {
		poster = notify.NewClient(r.cfg.SlackWebhookURL, r.log)
	}

	if poster != nil && r.cfg.DryRun {
		if r.log != nil {
			r.log.Info("dry run: notifications disabled")
		}
		poster = nil
	}

	return notify.NewReporter(poster, notify.PipelineFromEnv(), r.log)
}
