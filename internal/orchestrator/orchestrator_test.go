package orchestrator_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	gh "github.com/rancher/branch-merge-action/internal/github"
	"github.com/rancher/branch-merge-action/internal/mapping"
	"github.com/rancher/branch-merge-action/internal/merge"
	"github.com/rancher/branch-merge-action/internal/orchestrator"
)

type fakeExecutor struct {
	outcomes map[string]merge.Outcome
	errs     map[string]error
	requests []merge.Request
}

func (f *fakeExecutor) Execute(_ context.Context, req merge.Request) (merge.Outcome, error) {
	f.requests = append(f.requests, req)
	key := req.Source + ":" + req.Destination

	outcome, ok := f.outcomes[key]
	if !ok {
		outcome = merge.Outcome{Succeeded: true, Source: req.Source, Destination: req.Destination, Revision: "abc1234"}
	}
	return outcome, f.errs[key]
}

type reportCall struct {
	req          merge.Request
	outcome      merge.Outcome
	failuresOnly bool
}

type fakeNotifier struct {
	calls []reportCall
	err   error
}

func (f *fakeNotifier) Report(_ context.Context, req merge.Request, outcome merge.Outcome, failuresOnly bool) (bool, error) {
	f.calls = append(f.calls, reportCall{req: req, outcome: outcome, failuresOnly: failuresOnly})
	if f.err != nil {
		return false, f.err
	}
	return !(outcome.Succeeded && failuresOnly), nil
}

type fakeGHClient struct {
	existing       map[string]gh.PullRequest
	findErr        error
	createPRInputs []gh.CreatePROptions
	createPRErr    error
	comments       map[int][]string
}

func (f *fakeGHClient) FindOpenPullRequest(_ context.Context, owner, repo, head, base string) (gh.PullRequest, bool, error) {
	if f.findErr != nil {
		return gh.PullRequest{}, false, f.findErr
	}
	pr, ok := f.existing[head+":"+base]
	return pr, ok, nil
}

func (f *fakeGHClient) CreatePullRequest(_ context.Context, owner, repo string, input gh.CreatePROptions) (gh.PullRequest, error) {
	f.createPRInputs = append(f.createPRInputs, input)
	if f.createPRErr != nil {
		return gh.PullRequest{}, f.createPRErr
	}
	return gh.PullRequest{
		URL:    "https://example.com/pr",
		Number: len(f.createPRInputs),
		Head:   input.Head,
		Base:   input.Base,
	}, nil
}

func (f *fakeGHClient) CommentOnPullRequest(_ context.Context, owner, repo string, number int, body string) error {
	if f.comments == nil {
		f.comments = map[int][]string{}
	}
	f.comments[number] = append(f.comments[number], body)
	return nil
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx      context.Context
		cfg      orchestrator.Config
		exec     *fakeExecutor
		notifier *fakeNotifier
		ghClient *fakeGHClient
		mappings []mapping.Mapping
	)

	conflictOutcome := merge.Outcome{
		Source:       "main",
		Destination:  "release",
		Revision:     "abc1234",
		FailedState:  merge.StateChecking,
		Conflict:     true,
		FailureCause: "Conflicts detected: merge from [main] to [release] is not possible. Please do it manually:\n\n    git fetch origin release",
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = orchestrator.Config{
			Identity:         merge.Identity{UserName: "bot", UserEmail: "bot@example.com"},
			ConflictStrategy: orchestrator.ConflictStrategyFail,
			Owner:            "rancher",
			Repo:             "repo",
		}
		exec = &fakeExecutor{outcomes: map[string]merge.Outcome{}, errs: map[string]error{}}
		notifier = &fakeNotifier{}
		ghClient = &fakeGHClient{}
		mappings = []mapping.Mapping{
			{Source: "main", Destination: "release"},
			{Source: "release", Destination: "stable", NotifyFailuresOnly: true},
		}
	})

	It("runs every mapping in order with the configured identity", func() {
		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings)
		Expect(err).NotTo(HaveOccurred())

		Expect(exec.requests).To(Equal([]merge.Request{
			{Source: "main", Destination: "release", Identity: cfg.Identity},
			{Source: "release", Destination: "stable", Identity: cfg.Identity},
		}))
		Expect(result.Mappings).To(HaveLen(2))
		Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusMerged))
		Expect(result.Mappings[1].Status).To(Equal(orchestrator.MappingStatusMerged))
		Expect(result.Failed()).To(BeEmpty())
	})

	It("passes the failures-only flag to the notifier", func() {
		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings)
		Expect(err).NotTo(HaveOccurred())

		Expect(notifier.calls).To(HaveLen(2))
		Expect(notifier.calls[0].failuresOnly).To(BeFalse())
		Expect(notifier.calls[1].failuresOnly).To(BeTrue())
		Expect(result.Mappings[0].Notified).To(BeTrue())
		Expect(result.Mappings[1].Notified).To(BeFalse())
	})

	It("continues with later mappings after a failure", func() {
		exec.outcomes["main:release"] = merge.Outcome{
			Source:       "main",
			Destination:  "release",
			FailedState:  merge.StatePushing,
			FailureCause: "remote rejected\nhint: fetch first",
		}

		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings)
		Expect(err).NotTo(HaveOccurred())

		Expect(exec.requests).To(HaveLen(2))
		Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusFailed))
		Expect(result.Mappings[0].Reason).To(Equal("pushing: remote rejected"))
		Expect(result.Mappings[1].Status).To(Equal(orchestrator.MappingStatusMerged))
		Expect(result.Failed()).To(HaveLen(1))
		Expect(notifier.calls[0].outcome.FailureCause).To(ContainSubstring("hint: fetch first"))
	})

	It("stops after a restoration failure and skips the rest", func() {
		restoreErr := &merge.RestorationError{Source: "main", Err: errors.New("local changes would be overwritten")}
		exec.errs["main:release"] = restoreErr

		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings)
		Expect(err).To(MatchError(restoreErr))

		Expect(exec.requests).To(HaveLen(1))
		Expect(result.Mappings).To(HaveLen(2))
		Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusFailed))
		Expect(result.Mappings[0].Outcome.Succeeded).To(BeFalse())
		Expect(result.Mappings[1].Status).To(Equal(orchestrator.MappingStatusSkipped))
		Expect(result.Mappings[1].Reason).To(ContainSubstring("could not be restored"))
		Expect(notifier.calls).To(HaveLen(1))
		Expect(notifier.calls[0].outcome.FailureCause).To(ContainSubstring("local changes"))
	})

	It("records rejected requests without stopping", func() {
		exec.errs["main:release"] = errors.New("invalid merge request: git user name and email are required")

		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusFailed))
		Expect(result.Mappings[0].Reason).To(ContainSubstring("invalid merge request"))
		Expect(result.Mappings[1].Status).To(Equal(orchestrator.MappingStatusMerged))
	})

	It("skips every mapping when the context is already cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(cancelled, mappings)
		Expect(err).To(MatchError(context.Canceled))
		Expect(exec.requests).To(BeEmpty())
		Expect(result.Mappings).To(HaveLen(2))
		Expect(result.Failed()).To(HaveLen(2))
	})

	It("labels successful dry runs", func() {
		cfg.DryRun = true

		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings[:1])
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusDryRun))
		Expect(result.Mappings[0].Failed()).To(BeFalse())
	})

	It("keeps going when the notifier fails", func() {
		notifier.err = errors.New("webhook returned status 500")

		result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Mappings[0].Notified).To(BeFalse())
		Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusMerged))
	})

	It("works without a notifier", func() {
		result, err := orchestrator.New(cfg, exec, nil, nil, nil).Run(ctx, mappings)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Mappings).To(HaveLen(2))
	})

	Describe("conflicts", func() {
		BeforeEach(func() {
			exec.outcomes["main:release"] = conflictOutcome
		})

		It("only reports the conflict with the fail strategy", func() {
			result, err := orchestrator.New(cfg, exec, notifier, ghClient, nil).Run(ctx, mappings[:1])
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusConflict))
			Expect(result.Mappings[0].Reason).To(HavePrefix("Conflicts detected"))
			Expect(result.Mappings[0].PullRequest).To(BeNil())
			Expect(ghClient.createPRInputs).To(BeEmpty())
		})

		It("opens a pull request with the pull-request strategy", func() {
			cfg.ConflictStrategy = orchestrator.ConflictStrategyPullRequest
			cfg.ConflictLabels = []string{"merge-conflict"}

			result, err := orchestrator.New(cfg, exec, notifier, ghClient, nil).Run(ctx, mappings[:1])
			Expect(err).NotTo(HaveOccurred())

			Expect(ghClient.createPRInputs).To(HaveLen(1))
			input := ghClient.createPRInputs[0]
			Expect(input.Title).To(Equal("Merge main into release"))
			Expect(input.Head).To(Equal("main"))
			Expect(input.Base).To(Equal("release"))
			Expect(input.Labels).To(Equal([]string{"merge-conflict"}))
			Expect(input.Body).To(ContainSubstring("git fetch origin release"))
			Expect(input.Body).To(ContainSubstring("<!-- branch-merge: rancher/repo main -> release -->"))

			Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusConflict))
			Expect(result.Mappings[0].PullRequest).NotTo(BeNil())
			Expect(result.Mappings[0].PullRequest.Number).To(Equal(1))
		})

		It("comments on an already open pull request", func() {
			cfg.ConflictStrategy = orchestrator.ConflictStrategyPullRequest
			ghClient.existing = map[string]gh.PullRequest{
				"main:release": {Number: 9, URL: "https://example.com/pr/9", Head: "main", Base: "release"},
			}

			result, err := orchestrator.New(cfg, exec, notifier, ghClient, nil).Run(ctx, mappings[:1])
			Expect(err).NotTo(HaveOccurred())
			Expect(ghClient.createPRInputs).To(BeEmpty())
			Expect(ghClient.comments[9]).To(HaveLen(1))
			Expect(result.Mappings[0].PullRequest.Number).To(Equal(9))
		})

		It("still reports the conflict when GitHub is unavailable", func() {
			cfg.ConflictStrategy = orchestrator.ConflictStrategyPullRequest
			ghClient.findErr = errors.New("list pull requests: 502")

			result, err := orchestrator.New(cfg, exec, notifier, ghClient, nil).Run(ctx, mappings[:1])
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusConflict))
			Expect(result.Mappings[0].PullRequest).To(BeNil())
			Expect(notifier.calls).To(HaveLen(1))
		})

		It("tolerates a missing GitHub client", func() {
			cfg.ConflictStrategy = orchestrator.ConflictStrategyPullRequest

			result, err := orchestrator.New(cfg, exec, notifier, nil, nil).Run(ctx, mappings[:1])
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Mappings[0].Status).To(Equal(orchestrator.MappingStatusConflict))
		})
	})

	It("requires an executor", func() {
		_, err := orchestrator.New(cfg, nil, nil, nil, nil).Run(ctx, mappings)
		Expect(err).To(HaveOccurred())
	})
})
