package gh

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "rancher-branch-merge-action"

// NewRESTFactory returns a GitHub client factory backed by the go-github REST client. When
// base and upload URLs are provided, the factory targets a GitHub Enterprise instance.
func NewRESTFactory(baseURL, uploadURL string) Factory {
	return &restFactory{
		userAgent: defaultUserAgent,
		baseURL:   strings.TrimSpace(baseURL),
		uploadURL: strings.TrimSpace(uploadURL),
	}
}

type restFactory struct {
	userAgent string
	baseURL   string
	uploadURL string
}

type restClient struct {
	client *github.Client
}

func (f *restFactory) New(ctx context.Context, token string) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if f.baseURL == "" && f.uploadURL != "" {
		return nil, fmt.Errorf("github upload url cannot be set without base url")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(httpClient)

	if f.baseURL != "" {
		var err error
		if client, err = f.enterprise(client); err != nil {
			return nil, err
		}
	}

	if f.userAgent != "" {
		client.UserAgent = f.userAgent
	}

	return &restClient{client: client}, nil
}

// enterprise points client at the configured GitHub Enterprise API and upload endpoints.
func (f *restFactory) enterprise(client *github.Client) (*github.Client, error) {
	if f.uploadURL == "" {
		return nil, fmt.Errorf("github upload url must be provided when base url is set")
	}

	base, err := normalizeGitHubURL(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse github base url: %w", err)
	}
	upload, err := normalizeGitHubURL(f.uploadURL)
	if err != nil {
		return nil, fmt.Errorf("parse github upload url: %w", err)
	}

	client, err = client.WithEnterpriseURLs(base, upload)
	if err != nil {
		return nil, fmt.Errorf("construct enterprise github client: %w", err)
	}
	return client, nil
}

func normalizeGitHubURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	switch {
	case parsed.Scheme == "":
		return "", fmt.Errorf("url %q must include a scheme such as https://", raw)
	case parsed.Host == "":
		return "", fmt.Errorf("url %q must include a host", raw)
	}

	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	parsed.RawQuery, parsed.Fragment = "", ""

	return parsed.String(), nil
}

// FindOpenPullRequest returns the open pull request from head into base, if any.
func (c *restClient) FindOpenPullRequest(ctx context.Context, owner, repo, head, base string) (PullRequest, bool, error) {
	opts := &github.PullRequestListOptions{
		State: "open",
		Head:  fmt.Sprintf("%s:%s", owner, head),
		Base:  base,
		ListOptions: github.ListOptions{
			PerPage: 10,
		},
	}

	prs, _, err := c.client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return PullRequest{}, false, fmt.Errorf("list pull requests: %w", err)
	}

	for _, pr := range prs {
		if pr != nil {
			return toPullRequest(pr), true, nil
		}
	}
	return PullRequest{}, false, nil
}

func (c *restClient) CreatePullRequest(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error) {
	pr, _, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title:               github.String(input.Title),
		Head:                github.String(input.Head),
		Base:                github.String(input.Base),
		Body:                github.String(input.Body),
		MaintainerCanModify: github.Bool(input.MaintainerCanModify),
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("create pull request: %w", err)
	}

	result := toPullRequest(pr)

	if len(input.Labels) > 0 {
		_, _, err = c.client.Issues.AddLabelsToIssue(ctx, owner, repo, pr.GetNumber(), input.Labels)
		if err != nil {
			return result, fmt.Errorf("add labels to pull request: %w", err)
		}
	}

	return result, nil
}

func (c *restClient) CommentOnPullRequest(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &github.IssueComment{Body: github.String(body)}
	if _, _, err := c.client.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func toPullRequest(pr *github.PullRequest) PullRequest {
	result := PullRequest{
		URL:    pr.GetHTMLURL(),
		Number: pr.GetNumber(),
	}
	if head := pr.GetHead(); head != nil {
		result.Head = head.GetRef()
	}
	if base := pr.GetBase(); base != nil {
		result.Base = base.GetRef()
	}
	return result
}
