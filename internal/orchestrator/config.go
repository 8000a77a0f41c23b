package orchestrator

import "github.com/rancher/branch-merge-action/internal/merge"

// Config captures the runtime controls the orchestrator needs.
type Config struct {
	Identity         merge.Identity
	ConflictStrategy string
	ConflictLabels   []string
	Owner            string
	Repo             string
	DryRun           bool
}
