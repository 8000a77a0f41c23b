package git

import (
	"context"
	"log/slog"
	"strings"
)

// NewDryRunRunner returns a Runner that forwards read-only git subcommands to
// next and reports every subcommand that would change the repository, its
// configuration or the remote as successful without running it.
func NewDryRunRunner(next Runner, log *slog.Logger) Runner {
	return &dryRunRunner{next: next, log: log}
}

type dryRunRunner struct {
	next Runner
	log  *slog.Logger
}

func (r *dryRunRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	if isMutatingCommand(primaryGitCommand(args)) {
		if r.log != nil {
			r.log.Info("dry run: skipping git command", "command", "git "+strings.Join(args, " "), "dir", dir)
		}
		return Result{}, nil
	}
	return r.next.Run(ctx, dir, name, args...)
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isMutatingCommand(cmd string) bool {
	switch cmd {
	case "config", "checkout", "switch", "merge", "push", "commit", "reset":
		return true
	default:
		return false
	}
}
