package merge_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/branch-merge-action/internal/git"
	"github.com/rancher/branch-merge-action/internal/merge"
)

var _ = Describe("Checker", func() {
	var (
		runner  *scriptedRunner
		checker *merge.Checker
	)

	BeforeEach(func() {
		runner = newScriptedRunner("feature-x")
		checker = merge.NewChecker(git.NewRepository(runner, "/work"), nil)
	})

	It("reports a clean merge as mergeable", func() {
		runner.responses["merge-tree"] = git.Result{Stdout: "changed in both\n  base   100644 aaa README\n"}

		verdict, err := checker.CheckMergeable(context.Background(), "feature-x", "release")
		Expect(err).NotTo(HaveOccurred())
		Expect(verdict.Mergeable).To(BeTrue())
		Expect(verdict.ConflictDetail).To(BeEmpty())
		Expect(runner.calls).To(Equal([]string{
			"fetch origin release",
			"merge-base FETCH_HEAD feature-x",
			"merge-tree base123 feature-x FETCH_HEAD",
		}))
	})

	It("keeps the merge-tree output when a conflict is found", func() {
		tree := "changed in both\n@@ -1 +1,5 @@\n+<<<<<<< .our\n one\n+=======\n two\n+>>>>>>> .their\n"
		runner.responses["merge-tree"] = git.Result{Stdout: tree}

		verdict, err := checker.CheckMergeable(context.Background(), "feature-x", "release")
		Expect(err).NotTo(HaveOccurred())
		Expect(verdict.Mergeable).To(BeFalse())
		Expect(verdict.ConflictDetail).To(Equal(tree))
	})

	It("does not inspect the working tree or switch branches", func() {
		_, err := checker.CheckMergeable(context.Background(), "feature-x", "release")
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.called("checkout")).To(BeFalse())
		Expect(runner.called("merge ")).To(BeFalse())
		Expect(runner.current).To(Equal("feature-x"))
	})

	It("returns an error when there is no common ancestor", func() {
		runner.responses["merge-base"] = git.Result{ExitCode: 1}

		_, err := checker.CheckMergeable(context.Background(), "feature-x", "release")
		Expect(err).To(MatchError(ContainSubstring("merge-base of release and feature-x")))
		Expect(runner.called("merge-tree")).To(BeFalse())
	})

	It("returns an error when the destination cannot be fetched", func() {
		runner.responses["fetch"] = git.Result{ExitCode: 128, Stderr: "fatal: couldn't find remote ref release"}

		_, err := checker.CheckMergeable(context.Background(), "feature-x", "release")
		Expect(err).To(MatchError(ContainSubstring("couldn't find remote ref")))
		Expect(runner.calls).To(HaveLen(1))
	})
})

var _ = Describe("ConflictError", func() {
	It("falls back to the source branch and origin when details are missing", func() {
		err := &merge.ConflictError{Source: "feature-x", Destination: "release"}
		Expect(err.Error()).To(ContainSubstring("merge from [feature-x] to [release] is not possible"))
		Expect(err.Error()).To(ContainSubstring("git merge feature-x"))
		Expect(err.Error()).To(ContainSubstring("git push origin release"))
	})
})
