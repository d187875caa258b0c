package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleConfig carries every threshold and keyword list the classifier and the
// incident synthesizer evaluate. Keeping them here makes severity behavior
// configuration rather than code.
type RuleConfig struct {
	Wikimedia WikimediaRuleConfig `yaml:"wikimedia"`
	GitHub    GitHubRuleConfig    `yaml:"github"`
}

// WikimediaRuleConfig holds Wikimedia-specific thresholds
type WikimediaRuleConfig struct {
	// Keywords in an edit comment or page title that indicate abuse
	SensitiveKeywords []string `yaml:"sensitive_keywords"`
	// Edit byte delta above which an edit classifies as high severity
	EditDeltaBytes int `yaml:"edit_delta_bytes"`
	// Larger delta above which a high-severity edit becomes a
	// mass-content-change incident
	MassChangeDeltaBytes int `yaml:"mass_change_delta_bytes"`
	// Page titles whose edits always classify as at least medium
	ImportantPages []string `yaml:"important_pages"`
}

// GitHubRuleConfig holds GitHub-specific thresholds
type GitHubRuleConfig struct {
	// Keywords in a commit message that flag a breaking default-branch push
	BreakingKeywords []string `yaml:"breaking_keywords"`
	// Issue/PR labels that raise an open/labeled event to high
	SecurityLabels []string `yaml:"security_labels"`
	// Branch names treated as the default branch
	DefaultBranches []string `yaml:"default_branches"`
}

// DefaultRuleConfig returns the built-in thresholds
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Wikimedia: WikimediaRuleConfig{
			SensitiveKeywords: []string{
				"vandalism", "spam", "hack", "attack", "exploit", "malware", "phishing",
			},
			EditDeltaBytes:       10000,
			MassChangeDeltaBytes: 50000,
			ImportantPages: []string{
				"Main Page", "Wikipedia", "Donald Trump", "COVID-19 pandemic",
			},
		},
		GitHub: GitHubRuleConfig{
			BreakingKeywords: []string{"breaking", "deprecate"},
			SecurityLabels:   []string{"security", "bug", "critical"},
			DefaultBranches:  []string{"main", "master"},
		},
	}
}

// LoadRuleConfig reads a rule config from a YAML file, filling unset fields
// from the defaults
func LoadRuleConfig(path string) (RuleConfig, error) {
	cfg := DefaultRuleConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read rule config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse rule config: %w", err)
	}

	defaults := DefaultRuleConfig()
	if len(cfg.Wikimedia.SensitiveKeywords) == 0 {
		cfg.Wikimedia.SensitiveKeywords = defaults.Wikimedia.SensitiveKeywords
	}
	if cfg.Wikimedia.EditDeltaBytes <= 0 {
		cfg.Wikimedia.EditDeltaBytes = defaults.Wikimedia.EditDeltaBytes
	}
	if cfg.Wikimedia.MassChangeDeltaBytes <= 0 {
		cfg.Wikimedia.MassChangeDeltaBytes = defaults.Wikimedia.MassChangeDeltaBytes
	}
	if len(cfg.GitHub.BreakingKeywords) == 0 {
		cfg.GitHub.BreakingKeywords = defaults.GitHub.BreakingKeywords
	}
	if len(cfg.GitHub.SecurityLabels) == 0 {
		cfg.GitHub.SecurityLabels = defaults.GitHub.SecurityLabels
	}
	if len(cfg.GitHub.DefaultBranches) == 0 {
		cfg.GitHub.DefaultBranches = defaults.GitHub.DefaultBranches
	}

	return cfg, nil
}
