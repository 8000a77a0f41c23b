package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-github/v55/github"
)

// NamePush is the GITHUB_EVENT_NAME of branch and tag pushes.
const NamePush = "push"

const (
	branchRefPrefix = "refs/heads/"
	tagRefPrefix    = "refs/tags/"
)

// PushPayload captures the subset of GitHub push event data used by the action.
type PushPayload struct {
	Ref        string
	Branch     string
	After      string
	Deleted    bool
	Repository Repository
	Sender     string
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// IsBranch reports whether the push updated a branch rather than a tag.
func (p PushPayload) IsBranch() bool {
	return p.Branch != ""
}

// ParsePushEvent decodes a GitHub push event payload from the provided reader.
func ParsePushEvent(r io.Reader) (PushPayload, error) {
	var raw github.PushEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return PushPayload{}, fmt.Errorf("decode push event: %w", err)
	}

	payload := PushPayload{
		Ref:     strings.TrimSpace(raw.GetRef()),
		After:   strings.TrimSpace(raw.GetAfter()),
		Deleted: raw.GetDeleted(),
		Repository: Repository{
			Owner: strings.TrimSpace(raw.GetRepo().GetOwner().GetLogin()),
			Name:  strings.TrimSpace(raw.GetRepo().GetName()),
		},
		Sender: strings.TrimSpace(raw.GetSender().GetLogin()),
	}

	if payload.Ref == "" {
		return PushPayload{}, fmt.Errorf("push event has no ref")
	}

	if !strings.HasPrefix(payload.Ref, tagRefPrefix) {
		payload.Branch = strings.TrimPrefix(payload.Ref, branchRefPrefix)
	}

	return payload, nil
}

// ParsePushEventFile reads the event JSON from disk.
func ParsePushEventFile(path string) (PushPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return PushPayload{}, fmt.Errorf("open event file: %w", err)
	}
	defer f.Close()

	return ParsePushEvent(f)
}
