package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rancher/branch-merge-action/internal/merge"
)

// Reporter turns merge outcomes into chat messages.
type Reporter struct {
	poster   Poster
	pipeline Pipeline
	log      *slog.Logger
}

// NewReporter returns a Reporter. A nil poster disables notifications.
func NewReporter(poster Poster, pipeline Pipeline, logger *slog.Logger) *Reporter {
	return &Reporter{poster: poster, pipeline: pipeline, log: logger}
}

// Enabled reports whether messages are delivered anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.poster != nil
}

// Compose builds the message describing outcome.
func (r *Reporter) Compose(req merge.Request, outcome merge.Outcome) Message {
	attachment := Attachment{
		TitleLink: r.pipeline.RunURL(),
		Pretext:   r.pipeline.Describe(),
	}

	if outcome.Succeeded {
		attachment.Color = ColorGood
		attachment.Title = fmt.Sprintf("Merged %s into %s", req.Source, req.Destination)
		attachment.Text = fmt.Sprintf("Merge from [%s] to [%s] succeeded.", req.Source, req.Destination)
		if outcome.Revision != "" {
			attachment.Text = fmt.Sprintf("Merge from [%s] at %s to [%s] succeeded.", req.Source, outcome.Revision, req.Destination)
		}
	} else {
		attachment.Color = ColorDanger
		attachment.Title = fmt.Sprintf("Failed to merge %s into %s", req.Source, req.Destination)
		attachment.Text = outcome.FailureCause
		if attachment.Text == "" {
			attachment.Text = fmt.Sprintf("Merge from [%s] to [%s] failed.", req.Source, req.Destination)
		}
	}

	attachment.Text = Truncate(attachment.Text)
	return Message{Attachments: []Attachment{attachment}}
}

// Report posts the message for outcome. Successful outcomes are skipped when
// failuresOnly is set. It reports whether a message was sent.
func (r *Reporter) Report(ctx context.Context, req merge.Request, outcome merge.Outcome, failuresOnly bool) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}

	if outcome.Succeeded && failuresOnly {
		if r.log != nil {
			r.log.Debug("skipping success notification", "source", req.Source, "destination", req.Destination)
		}
		return false, nil
	}

	if err := r.poster.Post(ctx, r.Compose(req, outcome)); err != nil {
		return false, fmt.Errorf("notify %s -> %s: %w", req.Source, req.Destination, err)
	}
	return true, nil
}
