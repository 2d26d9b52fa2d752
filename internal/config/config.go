package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultPlaybookName is the playbook file expected at the project root.
const DefaultPlaybookName = "antora-playbook.yml"

// DefaultLatestName is the path segment of the staging version tree.
const DefaultLatestName = "latest"

// versionPattern matches version identifiers like "v2.11".
var versionPattern = regexp.MustCompile(`^v\d+\.\d+$`)

// Settings describes where the tool operates. It replaces ambient
// working-directory state with explicit, validated values.
type Settings struct {
	// ProjectRoot is the root of the version-controlled docs project.
	ProjectRoot string
	// PlaybookName is the playbook filename relative to ProjectRoot.
	PlaybookName string
	// LatestName is the path segment of the staging tree (e.g. "latest").
	LatestName string
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (s *Settings) applyDefaults() {
	if s.PlaybookName == "" {
		s.PlaybookName = DefaultPlaybookName
	}
	if s.LatestName == "" {
		s.LatestName = DefaultLatestName
	}
}

// Validate checks that the settings point at a usable project.
func (s *Settings) Validate() error {
	s.applyDefaults()

	if s.ProjectRoot == "" {
		return fmt.Errorf("project root is required")
	}
	info, err := os.Stat(s.ProjectRoot)
	if err != nil {
		return fmt.Errorf("project root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root is not a directory: %s", s.ProjectRoot)
	}
	if _, err := os.Stat(s.PlaybookPath()); err != nil {
		return fmt.Errorf("playbook %s not found in %s (run from the project root): %w",
			s.PlaybookName, s.ProjectRoot, err)
	}
	return nil
}

// PlaybookPath returns the absolute path of the playbook file.
func (s *Settings) PlaybookPath() string {
	return filepath.Join(s.ProjectRoot, s.PlaybookName)
}

// Playbook models the parts of the site playbook this tool reads.
type Playbook struct {
	Content struct {
		Sources []Source `yaml:"sources"`
	} `yaml:"content"`
}

// Source is a single content source declaration.
type Source struct {
	URL        string   `yaml:"url"`
	Branches   string   `yaml:"branches"`
	StartPaths []string `yaml:"start_paths"`
}

// Version is a discovered target version and its content root.
type Version struct {
	ID   string // e.g. "v2.11"
	Root string // e.g. "versions/v2.11", slash-separated
}

// Load reads and parses the playbook file.
func Load(playbookPath string) (*Playbook, error) {
	data, err := os.ReadFile(playbookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}

	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}

	return &pb, nil
}

// VersionRoots extracts the latest content root and the ordered set of
// version roots from the declared start paths. Only paths whose trailing
// segment is a version identifier (or the latest name) are considered;
// duplicates keep their first position.
func (p *Playbook) VersionRoots(latest string) (string, []Version) {
	latestRoot := ""
	seen := make(map[string]bool)
	var versions []Version

	for _, src := range p.Content.Sources {
		for _, sp := range src.StartPaths {
			sp = path.Clean(sp)
			base := path.Base(sp)
			switch {
			case base == latest:
				if latestRoot == "" {
					latestRoot = sp
				}
			case versionPattern.MatchString(base):
				if !seen[base] {
					seen[base] = true
					versions = append(versions, Version{ID: base, Root: sp})
				}
			}
		}
	}

	return latestRoot, versions
}
