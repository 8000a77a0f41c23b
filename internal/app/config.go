package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rancher/branch-merge-action/internal/mapping"
	"github.com/rancher/branch-merge-action/internal/orchestrator"
)

const (
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultConflictStrategy = orchestrator.ConflictStrategyFail
	defaultGitUserName      = "Rancher Branch Merge Bot"
	defaultGitUserEmail     = "no-reply@rancher.com"
	defaultRemote           = "origin"
	defaultCommandTimeout   = 5 * time.Minute
)

var supportedConflictStrategies = map[string]struct{}{
	orchestrator.ConflictStrategyFail:        {},
	orchestrator.ConflictStrategyPullRequest: {},
}

// Config captures runtime options sourced from GitHub Action inputs or environment variables.
type Config struct {
	GitHubToken       string
	GitHubBaseURL     string
	GitHubUploadURL   string
	Repository        string
	RepositoryPath    string
	Remote            string
	Mappings          []mapping.Mapping
	MatchPushedBranch bool
	GitUserName       string
	GitUserEmail      string
	SlackWebhookURL   string
	ConflictStrategy  string
	ConflictLabels    []string
	CommandTimeout    time.Duration
	DryRun            bool
	Verbose           bool
	LogLevel          string
	LogFormat         string
}

// Owner returns the owner half of Repository.
func (c Config) Owner() string {
	owner, _, _ := strings.Cut(c.Repository, "/")
	return owner
}

// Repo returns the name half of Repository.
func (c Config) Repo() string {
	_, repo, _ := strings.Cut(c.Repository, "/")
	return repo
}

// LoadConfig reads action inputs from the environment, applies defaults, and performs validation.
func LoadConfig() (Config, error) {
	cfg := Config{
		LogLevel:          strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_LOG_LEVEL", defaultLogLevel))),
		LogFormat:         strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_LOG_FORMAT", defaultLogFormat))),
		ConflictStrategy:  strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_CONFLICT_STRATEGY", defaultConflictStrategy))),
		Remote:            envOrDefault("INPUT_REMOTE", defaultRemote),
		GitUserName:       envOrDefault("INPUT_GIT_USER_NAME", defaultGitUserName),
		GitUserEmail:      envOrDefault("INPUT_GIT_USER_EMAIL", defaultGitUserEmail),
		RepositoryPath:    envOrDefault("INPUT_REPOSITORY_PATH", envOrDefault("GITHUB_WORKSPACE", ".")),
		Repository:        strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")),
		MatchPushedBranch: true,
		CommandTimeout:    defaultCommandTimeout,
	}

	cfg.GitHubToken = strings.TrimSpace(os.Getenv("INPUT_GITHUB_TOKEN"))
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.GitHubBaseURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_BASE_URL"))
	cfg.GitHubUploadURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_UPLOAD_URL"))
	cfg.SlackWebhookURL = strings.TrimSpace(os.Getenv("INPUT_SLACK_WEBHOOK_URL"))

	if rawLabels := strings.TrimSpace(os.Getenv("INPUT_CONFLICT_LABELS")); rawLabels != "" {
		cfg.ConflictLabels = parseList(rawLabels)
	}

	var err error
	if cfg.DryRun, err = boolInput("INPUT_DRY_RUN", false); err != nil {
		return Config{}, err
	}
	if cfg.Verbose, err = boolInput("INPUT_VERBOSE", false); err != nil {
		return Config{}, err
	}
	if cfg.MatchPushedBranch, err = boolInput("INPUT_MATCH_PUSHED_BRANCH", true); err != nil {
		return Config{}, err
	}

	if rawTimeout := strings.TrimSpace(os.Getenv("INPUT_COMMAND_TIMEOUT")); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse INPUT_COMMAND_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("INPUT_COMMAND_TIMEOUT must be positive, got %s", timeout)
		}
		cfg.CommandTimeout = timeout
	}

	if cfg.Mappings, err = loadMappings(); err != nil {
		return Config{}, err
	}

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return Config{}, fmt.Errorf("INPUT_GITHUB_BASE_URL and INPUT_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	if _, ok := supportedConflictStrategies[cfg.ConflictStrategy]; !ok {
		return Config{}, fmt.Errorf("unsupported conflict strategy %q", cfg.ConflictStrategy)
	}

	if cfg.ConflictStrategy == orchestrator.ConflictStrategyPullRequest && !cfg.DryRun {
		if cfg.GitHubToken == "" {
			return Config{}, fmt.Errorf("github token is required for conflict strategy %q (set INPUT_GITHUB_TOKEN or GITHUB_TOKEN)", cfg.ConflictStrategy)
		}
		if cfg.Owner() == "" || cfg.Repo() == "" {
			return Config{}, fmt.Errorf("GITHUB_REPOSITORY must be owner/name for conflict strategy %q", cfg.ConflictStrategy)
		}
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// loadMappings combines the inline and file mappings, inline first.
func loadMappings() ([]mapping.Mapping, error) {
	inline, err := mapping.ParseList(os.Getenv("INPUT_MAPPINGS"))
	if err != nil {
		return nil, fmt.Errorf("parse INPUT_MAPPINGS: %w", err)
	}

	var fromFile []mapping.Mapping
	if path := strings.TrimSpace(os.Getenv("INPUT_MAPPINGS_FILE")); path != "" {
		if fromFile, err = mapping.LoadFile(path); err != nil {
			return nil, fmt.Errorf("load INPUT_MAPPINGS_FILE: %w", err)
		}
	}

	mappings := mapping.Merge(inline, fromFile)
	if len(mappings) == 0 {
		return nil, fmt.Errorf("at least one branch mapping is required (set INPUT_MAPPINGS or INPUT_MAPPINGS_FILE)")
	}

	if err := mapping.Validate(mappings); err != nil {
		return nil, err
	}

	return mappings, nil
}

func boolInput(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}

	return values
}
