package notify

import (
	"fmt"
	"os"
	"strings"
)

const defaultServerURL = "https://github.com"

// Pipeline describes the CI run that produced an outcome.
type Pipeline struct {
	ServerURL  string
	Repository string
	Workflow   string
	RunID      string
	RunNumber  string
	Actor      string
}

// PipelineFromEnv reads the run context GitHub Actions exposes to every step.
func PipelineFromEnv() Pipeline {
	server := strings.TrimRight(strings.TrimSpace(os.Getenv("GITHUB_SERVER_URL")), "/")
	if server == "" {
		server = defaultServerURL
	}

	return Pipeline{
		ServerURL:  server,
		Repository: strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")),
		Workflow:   strings.TrimSpace(os.Getenv("GITHUB_WORKFLOW")),
		RunID:      strings.TrimSpace(os.Getenv("GITHUB_RUN_ID")),
		RunNumber:  strings.TrimSpace(os.Getenv("GITHUB_RUN_NUMBER")),
		Actor:      strings.TrimSpace(os.Getenv("GITHUB_ACTOR")),
	}
}

// RunURL links to the run, falling back to the repository and then the
// server when the run is unknown.
func (p Pipeline) RunURL() string {
	server := p.ServerURL
	if server == "" {
		server = defaultServerURL
	}
	switch {
	case p.Repository != "" && p.RunID != "":
		return fmt.Sprintf("%s/%s/actions/runs/%s", server, p.Repository, p.RunID)
	case p.Repository != "":
		return server + "/" + p.Repository
	default:
		return server
	}
}

// Describe returns a one-line description of the run, or "" when nothing is
// known about it.
func (p Pipeline) Describe() string {
	if p.Workflow == "" {
		return ""
	}

	desc := p.Workflow
	if p.RunNumber != "" {
		desc += " #" + p.RunNumber
	}
	if p.Repository != "" {
		desc += " in " + p.Repository
	}
	if p.Actor != "" {
		desc += " triggered by " + p.Actor
	}
	return desc
}
