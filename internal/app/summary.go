package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rancher/branch-merge-action/internal/orchestrator"
)

func (r *Runner) writeStepSummary(result orchestrator.Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	var builder strings.Builder
	builder.WriteString("## Branch merge summary\n\n")
	builder.WriteString(renderResultDetails(result, r.cfg.DryRun))

	return appendFile(path, "step summary", func(w io.Writer) error {
		_, err := io.WriteString(w, builder.String())
		return err
	})
}

func (r *Runner) writeGitHubOutputs(result orchestrator.Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	merged := make([]outputMerged, 0)
	failed := make([]outputFailed, 0)

	for _, m := range result.Mappings {
		if !m.Failed() {
			merged = append(merged, outputMerged{
				Source:      m.Mapping.Source,
				Destination: m.Mapping.Destination,
				Revision:    m.Outcome.Revision,
				DryRun:      m.Status == orchestrator.MappingStatusDryRun,
			})
			continue
		}

		entry := outputFailed{
			Source:      m.Mapping.Source,
			Destination: m.Mapping.Destination,
			Status:      string(m.Status),
			State:       string(m.Outcome.FailedState),
			Reason:      m.Reason,
			Conflict:    m.Outcome.Conflict,
		}
		if m.PullRequest != nil {
			entry.PullRequestURL = m.PullRequest.URL
		}
		failed = append(failed, entry)
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal merged: %w", err)
	}

	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return appendFile(path, "github output", func(w io.Writer) error {
		if err := writeMultilineOutput(w, "merged", string(mergedJSON)); err != nil {
			return err
		}
		return writeMultilineOutput(w, "failed", string(failedJSON))
	})
}

// appendFile appends to a file GitHub Actions collects after the step.
func appendFile(path, what string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("create %s directory: %w", what, mkErr)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", what, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", what, closeErr)
		}
	}()

	if err := write(file); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func renderResultDetails(result orchestrator.Result, dryRun bool) string {
	var builder strings.Builder

	if dryRun {
		builder.WriteString("_Dry run: nothing was configured, merged or pushed._\n\n")
	}

	if len(result.Mappings) == 0 {
		builder.WriteString("No branch mappings applied to this run.\n")
		return builder.String()
	}

	builder.WriteString("| Mapping | Status | Revision | Details |\n")
	builder.WriteString("| --- | --- | --- | --- |\n")
	for _, m := range result.Mappings {
		details := m.Reason
		if m.PullRequest != nil && m.PullRequest.URL != "" {
			details = fmt.Sprintf("%s ([PR #%d](%s))", details, m.PullRequest.Number, m.PullRequest.URL)
		}

		builder.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			sanitizeMarkdownCell(fmt.Sprintf("%s → %s", m.Mapping.Source, m.Mapping.Destination)),
			sanitizeMarkdownCell(string(m.Status)),
			sanitizeMarkdownCell(m.Outcome.Revision),
			sanitizeMarkdownCell(details),
		))
	}

	return builder.String()
}

type outputMerged struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Revision    string `json:"revision"`
	DryRun      bool   `json:"dry_run"`
}

type outputFailed struct {
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	Status         string `json:"status"`
	State          string `json:"state,omitempty"`
	Reason         string `json:"reason"`
	Conflict       bool   `json:"conflict"`
	PullRequestURL string `json:"pull_request_url,omitempty"`
}

func writeMultilineOutput(w io.Writer, key, value string) error {
	if _, err := fmt.Fprintf(w, "%s<<EOF\n%s\nEOF\n", key, value); err != nil {
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return nil
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
