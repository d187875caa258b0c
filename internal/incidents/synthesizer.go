// Package incidents derives incidents from high-severity events.
// Severity gates synthesis: low events never produce incidents.
package incidents

import (
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/classify"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/events"
)

// Draft is the analysis outcome for one event before persistence
type Draft struct {
	Type             string
	Title            string
	Summary          string
	Impact           string
	RootCause        string
	AffectedServices []string
	Runbook          []string
}

// Synthesizer evaluates source-specific analysis rules against an event
type Synthesizer struct {
	rules classify.RuleConfig
}

// NewSynthesizer creates a synthesizer using the given rule thresholds
func NewSynthesizer(rules classify.RuleConfig) *Synthesizer {
	return &Synthesizer{rules: rules}
}

// Analyze returns an incident draft for the event, or nil when no rule calls
// for one. Events below medium severity never produce incidents.
func (s *Synthesizer) Analyze(e *database.Event) *Draft {
	if database.SeverityRank(e.Severity) < database.SeverityRank(database.SeverityMedium) {
		return nil
	}

	switch e.Source {
	case database.EventSourceWikimedia:
		return s.analyzeWikimedia(e)
	case database.EventSourceGitHub:
		return s.analyzeGitHub(e)
	default:
		return s.analyzeGeneric(e)
	}
}

func (s *Synthesizer) analyzeWikimedia(e *database.Event) *Draft {
	title := events.ExtractString(e.Raw, "title")
	service := serviceOrDefault(e, "wikimedia")

	if e.Severity == database.SeverityCritical {
		return &Draft{
			Type:             "content-security",
			Title:            fmt.Sprintf("Content security incident on %s", service),
			Summary:          fmt.Sprintf("Suspicious edit flagged on %q: %s", title, e.Summary),
			Impact:           "Potentially abusive or malicious content visible to readers",
			RootCause:        "Edit comment or page title matched a sensitive keyword",
			AffectedServices: []string{service},
			Runbook: []string{
				"Review the flagged revision and its diff",
				"Revert the edit if it is vandalism or spam",
				"Check the editor's recent contributions for related abuse",
				"Request page protection if the abuse is repeated",
			},
		}
	}

	if e.Severity == database.SeverityHigh {
		delta, ok := events.WikimediaEditDelta(e.Raw)
		if ok && delta > s.rules.Wikimedia.MassChangeDeltaBytes {
			return &Draft{
				Type:             "mass-content-change",
				Title:            fmt.Sprintf("Mass content change on %s", service),
				Summary:          fmt.Sprintf("Edit changed %d bytes on %q", delta, title),
				Impact:           "Large-scale content replacement or removal",
				RootCause:        "Single edit exceeded the mass-change byte threshold",
				AffectedServices: []string{service},
				Runbook: []string{
					"Inspect the revision diff for blanking or bulk replacement",
					"Compare against the previous stable revision",
					"Revert and warn the editor if the change is destructive",
				},
			}
		}
	}

	return nil
}

func (s *Synthesizer) analyzeGitHub(e *database.Event) *Draft {
	service := serviceOrDefault(e, "github")

	switch e.Severity {
	case database.SeverityCritical, database.SeverityHigh:
		return &Draft{
			Type:             "security-alert",
			Title:            fmt.Sprintf("Security alert on %s", service),
			Summary:          e.Summary,
			Impact:           "Repository may be exposed to a known vulnerability",
			RootCause:        fmt.Sprintf("Upstream %s reported for the repository", e.Type),
			AffectedServices: []string{service},
			Runbook: []string{
				"Open the advisory or alert details on GitHub",
				"Assess whether the affected code path is reachable",
				"Apply the patched dependency version or upstream fix",
				"Rotate credentials if exposure is suspected",
			},
		}
	case database.SeverityMedium:
		if classify.IsAlertEvent(e.Type) {
			return &Draft{
				Type:             "code-quality",
				Title:            fmt.Sprintf("Code quality finding on %s", service),
				Summary:          e.Summary,
				Impact:           "Static analysis flagged a defect in the default branch",
				RootCause:        fmt.Sprintf("%s finding below security threshold", e.Type),
				AffectedServices: []string{service},
				Runbook: []string{
					"Triage the finding in the repository's code scanning tab",
					"Fix or dismiss with justification",
				},
			}
		}
	}

	return nil
}

func (s *Synthesizer) analyzeGeneric(e *database.Event) *Draft {
	if e.Severity != database.SeverityCritical {
		return nil
	}
	service := serviceOrDefault(e, string(e.Source))
	return &Draft{
		Type:             "critical-event",
		Title:            fmt.Sprintf("Critical event from %s", e.Source),
		Summary:          e.Summary,
		Impact:           "Unclassified critical event requires manual triage",
		RootCause:        "No source-specific analysis rule matched",
		AffectedServices: []string{service},
		Runbook: []string{
			"Inspect the raw event payload",
			"Escalate to the owning team if impact is confirmed",
		},
	}
}

func serviceOrDefault(e *database.Event, fallback string) string {
	if e.Service != "" {
		return e.Service
	}
	return fallback
}
