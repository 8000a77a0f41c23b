package mapping

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FailuresOnlyFlag is the optional third field of an inline mapping entry.
const FailuresOnlyFlag = "failures-only"

// Mapping declares that Source is promoted into Destination.
type Mapping struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`

	// NotifyFailuresOnly suppresses the success notification for this mapping.
	NotifyFailuresOnly bool `yaml:"failures_only"`
}

// String renders the mapping the way it is written inline.
func (m Mapping) String() string {
	return m.Source + ":" + m.Destination
}

type file struct {
	Mappings []Mapping `yaml:"mappings"`
}

var errSelfMerge = errors.New("source and destination must differ")

// ParseList parses inline mapping entries separated by commas or newlines.
// Each entry is `source:destination` with an optional `:failures-only` suffix.
// Blank entries are ignored.
func ParseList(raw string) ([]Mapping, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	mappings := make([]Mapping, 0, len(fields))
	for _, field := range fields {
		entry := strings.TrimSpace(field)
		if entry == "" {
			continue
		}

		m, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}

	return mappings, nil
}

func parseEntry(entry string) (Mapping, error) {
	parts := strings.Split(entry, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Mapping{}, fmt.Errorf("mapping %q must be source:destination[:%s]", entry, FailuresOnlyFlag)
	}

	m := Mapping{
		Source:      NormalizeBranch(parts[0]),
		Destination: NormalizeBranch(parts[1]),
	}

	if len(parts) == 3 {
		flag := strings.TrimSpace(parts[2])
		if !strings.EqualFold(flag, FailuresOnlyFlag) {
			return Mapping{}, fmt.Errorf("mapping %q has unknown option %q", entry, flag)
		}
		m.NotifyFailuresOnly = true
	}

	if m.Source == "" || m.Destination == "" {
		return Mapping{}, fmt.Errorf("mapping %q must name both branches", entry)
	}

	return m, nil
}

// LoadFile reads mappings from a YAML document of the form
//
//	mappings:
//	  - source: main
//	    destination: release
//	    failures_only: true
func LoadFile(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings file: %w", err)
	}

	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode mappings file %s: %w", path, err)
	}

	mappings := make([]Mapping, 0, len(doc.Mappings))
	for _, m := range doc.Mappings {
		m.Source = NormalizeBranch(m.Source)
		m.Destination = NormalizeBranch(m.Destination)
		mappings = append(mappings, m)
	}

	return mappings, nil
}

// Validate checks every mapping for usable branch names and rejects
// self-merges.
func Validate(mappings []Mapping) error {
	for _, m := range mappings {
		if err := validateBranchName(m.Source); err != nil {
			return fmt.Errorf("invalid source branch %q in mapping %s: %w", m.Source, m, err)
		}
		if err := validateBranchName(m.Destination); err != nil {
			return fmt.Errorf("invalid destination branch %q in mapping %s: %w", m.Destination, m, err)
		}
		if m.Source == m.Destination {
			return fmt.Errorf("mapping %s: %w", m, errSelfMerge)
		}
	}
	return nil
}

func validateBranchName(branch string) error {
	if branch == "" {
		return errors.New("branch cannot be empty")
	}

	if strings.ContainsAny(branch, " \t\n\r") {
		return errors.New("branch cannot contain whitespace")
	}

	if strings.Contains(branch, "..") {
		return errors.New("branch cannot contain '..'")
	}

	if strings.ContainsAny(branch, "~^:?*[]@{\\") {
		return errors.New("branch contains forbidden git characters")
	}

	if strings.HasPrefix(branch, "-") {
		return errors.New("branch cannot start with '-'")
	}

	return nil
}

// Merge concatenates mapping groups preserving order. A later mapping with
// the same source and destination as an earlier one is dropped.
func Merge(groups ...[]Mapping) []Mapping {
	result := make([]Mapping, 0)
	seen := make(map[string]struct{})

	for _, group := range groups {
		for _, m := range group {
			key := m.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, m)
		}
	}

	return result
}

// ForSource returns the mappings whose source is branch.
func ForSource(mappings []Mapping, branch string) []Mapping {
	branch = NormalizeBranch(branch)

	matched := make([]Mapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Source == branch {
			matched = append(matched, m)
		}
	}
	return matched
}

// Destinations returns the sorted, deduplicated destination branches.
func Destinations(mappings []Mapping) []string {
	branches := make([]string, 0, len(mappings))
	for _, m := range mappings {
		branches = append(branches, m.Destination)
	}
	slices.Sort(branches)
	return slices.Compact(branches)
}

// NormalizeBranch trims whitespace, removes leading/trailing slashes, and strips
// refs/heads prefixes from a branch name. It returns an empty string when the
// normalized branch would otherwise be empty.
func NormalizeBranch(branch string) string {
	const headsPrefix = "refs/heads/"

	branch = strings.Trim(strings.TrimSpace(branch), "/")

	if len(branch) >= len(headsPrefix) && strings.EqualFold(branch[:len(headsPrefix)], headsPrefix) {
		branch = branch[len(headsPrefix):]
	}

	return strings.TrimSpace(strings.Trim(branch, "/"))
}
