// Package classify assigns a severity to canonical events using ordered,
// per-source rule tables. Rules are pure predicates over the event; the first
// matching rule wins and unmatched events fall through to low.
package classify

import (
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/events"
)

// Rule pairs a predicate with the severity it assigns
type Rule struct {
	Name    string
	Outcome database.Severity
	Match   func(e *database.Event) bool
}

// Classifier evaluates per-source rule tables
type Classifier struct {
	cfg       RuleConfig
	wikimedia []Rule
	github    []Rule
}

// New builds a classifier from the given rule config
func New(cfg RuleConfig) *Classifier {
	c := &Classifier{cfg: cfg}
	c.wikimedia = c.buildWikimediaRules()
	c.github = c.buildGitHubRules()
	return c
}

// Config returns the rule config this classifier was built from
func (c *Classifier) Config() RuleConfig {
	return c.cfg
}

// Classify returns the severity for an event. Unknown sources and events
// matching no rule classify as low.
func (c *Classifier) Classify(e *database.Event) database.Severity {
	var rules []Rule
	switch e.Source {
	case database.EventSourceWikimedia:
		rules = c.wikimedia
	case database.EventSourceGitHub:
		rules = c.github
	}

	for _, rule := range rules {
		if rule.Match(e) {
			return rule.Outcome
		}
	}
	return database.SeverityLow
}

func (c *Classifier) buildWikimediaRules() []Rule {
	keywords := lowerAll(c.cfg.Wikimedia.SensitiveKeywords)
	importantPages := c.cfg.Wikimedia.ImportantPages
	deltaThreshold := c.cfg.Wikimedia.EditDeltaBytes

	return []Rule{
		{
			Name:    "sensitive-keyword",
			Outcome: database.SeverityCritical,
			Match: func(e *database.Event) bool {
				comment := strings.ToLower(events.ExtractString(e.Raw, "comment"))
				title := strings.ToLower(events.ExtractString(e.Raw, "title"))
				for _, kw := range keywords {
					if strings.Contains(comment, kw) || strings.Contains(title, kw) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:    "large-edit-delta",
			Outcome: database.SeverityHigh,
			Match: func(e *database.Event) bool {
				delta, ok := events.WikimediaEditDelta(e.Raw)
				return ok && delta > deltaThreshold
			},
		},
		{
			Name:    "important-page",
			Outcome: database.SeverityMedium,
			Match: func(e *database.Event) bool {
				title := events.ExtractString(e.Raw, "title")
				for _, page := range importantPages {
					if title == page {
						return true
					}
				}
				return false
			},
		},
	}
}

func (c *Classifier) buildGitHubRules() []Rule {
	breakingKeywords := lowerAll(c.cfg.GitHub.BreakingKeywords)
	securityLabels := lowerAll(c.cfg.GitHub.SecurityLabels)
	defaultBranches := c.cfg.GitHub.DefaultBranches

	isDefaultBranchPush := func(e *database.Event) bool {
		if e.Type != "PushEvent" {
			return false
		}
		branch := events.GitHubPushBranch(e.Raw)
		for _, b := range defaultBranches {
			if branch == b {
				return true
			}
		}
		return false
	}

	return []Rule{
		{
			Name:    "security-advisory",
			Outcome: database.SeverityCritical,
			Match: func(e *database.Event) bool {
				return e.Type == "SecurityAdvisoryEvent"
			},
		},
		{
			Name:    "alert-severity-critical",
			Outcome: database.SeverityCritical,
			Match: func(e *database.Event) bool {
				sev := alertSeverity(e)
				return sev == "critical" || sev == "high"
			},
		},
		{
			Name:    "alert-severity-medium",
			Outcome: database.SeverityHigh,
			Match: func(e *database.Event) bool {
				return alertSeverity(e) == "medium"
			},
		},
		{
			// Any alert not caught above, including alerts that carry no
			// upstream severity field at all
			Name:    "alert-severity-other",
			Outcome: database.SeverityMedium,
			Match: func(e *database.Event) bool {
				return IsAlertEvent(e.Type)
			},
		},
		{
			Name:    "breaking-default-branch-push",
			Outcome: database.SeverityHigh,
			Match: func(e *database.Event) bool {
				if !isDefaultBranchPush(e) {
					return false
				}
				for _, msg := range events.GitHubCommitMessages(e.Raw) {
					lower := strings.ToLower(msg)
					for _, kw := range breakingKeywords {
						if strings.Contains(lower, kw) {
							return true
						}
					}
				}
				return false
			},
		},
		{
			Name:    "default-branch-push",
			Outcome: database.SeverityMedium,
			Match:   isDefaultBranchPush,
		},
		{
			Name:    "security-label",
			Outcome: database.SeverityHigh,
			Match: func(e *database.Event) bool {
				if e.Type != "IssuesEvent" && e.Type != "PullRequestEvent" {
					return false
				}
				action := events.ExtractString(e.Raw, "payload.action")
				if action != "opened" && action != "labeled" && action != "reopened" {
					return false
				}
				for _, label := range events.GitHubLabels(e.Raw) {
					lower := strings.ToLower(label)
					for _, want := range securityLabels {
						if lower == want {
							return true
						}
					}
				}
				return false
			},
		},
	}
}

// IsAlertEvent reports whether a GitHub event type is a code-scanning or
// dependency alert
func IsAlertEvent(eventType string) bool {
	switch eventType {
	case "CodeScanningAlertEvent", "DependabotAlertEvent", "RepositoryVulnerabilityAlertEvent":
		return true
	}
	return false
}

func alertSeverity(e *database.Event) string {
	if !IsAlertEvent(e.Type) && e.Type != "SecurityAdvisoryEvent" {
		return ""
	}
	return strings.ToLower(events.ExtractString(e.Raw, "payload.alert.severity"))
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
