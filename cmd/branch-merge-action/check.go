package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rancher/branch-merge-action/internal/app"
)

var (
	checkSource      string
	checkDestination string
	checkRepository  string
	checkRemote      string
	checkTimeout     time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether a source branch merges cleanly into a destination",
	Long: `Fetches the destination branch and simulates the merge without touching the
working tree or any local branch. Exits non-zero when the merge would conflict.`,
	Example: `  branch-merge-action check --source main --destination release/v2.9`,
	RunE:    runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSource, "source", "", "Source branch (must be available locally)")
	checkCmd.Flags().StringVar(&checkDestination, "destination", "", "Destination branch on the remote")
	checkCmd.Flags().StringVar(&checkRepository, "repository", ".", "Path to the git working tree")
	checkCmd.Flags().StringVar(&checkRemote, "remote", "origin", "Remote to fetch the destination from")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "Timeout for each git command")

	_ = checkCmd.MarkFlagRequired("source")
	_ = checkCmd.MarkFlagRequired("destination")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg := app.Config{
		RepositoryPath: checkRepository,
		Remote:         checkRemote,
		CommandTimeout: checkTimeout,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	runner, err := app.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	verdict, err := runner.Check(cmd.Context(), checkSource, checkDestination)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if verdict.Mergeable {
		fmt.Fprintf(out, "%s merges cleanly into %s\n", checkSource, checkDestination)
		return nil
	}

	fmt.Fprintf(out, "%s conflicts with %s:\n\n%s\n", checkSource, checkDestination, verdict.ConflictDetail)
	return fmt.Errorf("merge from [%s] to [%s] is not possible", checkSource, checkDestination)
}
