package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	dryRun  bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "branch-merge-action",
	Short: "Promote branches by merging them when they merge cleanly",
	Long: `Merges every configured source branch into its destination, pushes the result
and reports each outcome. Merges that would conflict are refused and reported
instead. Configuration is read from INPUT_* and GITHUB_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAction,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Check and report without configuring, merging or pushing (overrides INPUT_DRY_RUN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging (overrides INPUT_VERBOSE)")

	rootCmd.AddCommand(checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
