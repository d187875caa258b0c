package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// normalizeGitHub maps a GitHub public events API item into a canonical Event.
// See https://api.github.com/events for the feed shape.
func normalizeGitHub(raw map[string]interface{}) (*database.Event, error) {
	eventType := ExtractString(raw, "type")
	if eventType == "" {
		return nil, errors.New("github item missing type")
	}

	repo := ExtractString(raw, "repo.name")
	actor := ExtractString(raw, "actor.login")
	action := ExtractString(raw, "payload.action")

	timestamp := time.Now().UTC()
	if createdAt := ExtractString(raw, "created_at"); createdAt != "" {
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			timestamp = ts.UTC()
		}
	}

	tags := []string{"github", eventType}
	if repo != "" {
		tags = append(tags, repo)
	}
	if action != "" {
		tags = append(tags, action)
	}
	for _, label := range GitHubLabels(raw) {
		tags = append(tags, "label:"+label)
	}

	metadata := database.JSONB{
		"repo":  repo,
		"actor": actor,
	}
	if branch := GitHubPushBranch(raw); branch != "" {
		metadata["branch"] = branch
	}
	if alertSeverity := ExtractString(raw, "payload.alert.severity"); alertSeverity != "" {
		metadata["alert_severity"] = alertSeverity
	}

	summary := fmt.Sprintf("%s by %s", eventType, actor)
	if repo != "" {
		summary = fmt.Sprintf("%s on %s by %s", eventType, repo, actor)
	}
	if action != "" {
		summary = fmt.Sprintf("%s (%s) on %s by %s", eventType, action, repo, actor)
	}

	return &database.Event{
		Source:    database.EventSourceGitHub,
		Type:      eventType,
		Timestamp: timestamp,
		Raw:       database.JSONB(raw),
		Tags:      database.StringList(tags),
		Status:    database.EventStatusPending,
		Severity:  database.SeverityLow,
		Service:   repo,
		Summary:   summary,
		Metadata:  metadata,
	}, nil
}

// GitHubPushBranch returns the branch name of a push payload, empty when the
// item is not a push or the ref is not a branch ref.
func GitHubPushBranch(raw map[string]interface{}) string {
	ref := ExtractString(raw, "payload.ref")
	if !strings.HasPrefix(ref, "refs/heads/") {
		return ""
	}
	return strings.TrimPrefix(ref, "refs/heads/")
}

// GitHubCommitMessages returns all commit messages carried by a push payload
func GitHubCommitMessages(raw map[string]interface{}) []string {
	commits, ok := ExtractNestedValue(raw, "payload.commits").([]interface{})
	if !ok {
		return nil
	}
	var messages []string
	for _, c := range commits {
		commit, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if msg := ExtractString(commit, "message"); msg != "" {
			messages = append(messages, msg)
		}
	}
	return messages
}

// GitHubLabels collects label names from issue and pull request payloads
func GitHubLabels(raw map[string]interface{}) []string {
	var labels []string
	for _, path := range []string{"payload.issue.labels", "payload.pull_request.labels"} {
		items, ok := ExtractNestedValue(raw, path).([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			label, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if name := ExtractString(label, "name"); name != "" {
				labels = append(labels, name)
			}
		}
	}
	// Single label attached by "labeled" actions
	if single, ok := ExtractNestedValue(raw, "payload.label").(map[string]interface{}); ok {
		if name := ExtractString(single, "name"); name != "" {
			labels = append(labels, name)
		}
	}
	return labels
}
