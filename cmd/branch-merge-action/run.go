package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rancher/branch-merge-action/internal/app"
)

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}

	runner, err := app.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	if err := runner.Run(cmd.Context()); err != nil {
		return fmt.Errorf("branch merge action failed: %w", err)
	}
	return nil
}
