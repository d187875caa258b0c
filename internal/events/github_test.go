package events

import (
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

func TestNormalizeGitHub_PushEvent(t *testing.T) {
	raw := parseRaw(t, `{
		"id": "123456",
		"type": "PushEvent",
		"actor": {"login": "octocat"},
		"repo": {"name": "octo/hello-world"},
		"payload": {
			"ref": "refs/heads/main",
			"commits": [{"message": "fix build"}]
		},
		"created_at": "2024-01-15T10:30:00Z"
	}`)

	event, err := Normalize(database.EventSourceGitHub, raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if event.Source != database.EventSourceGitHub {
		t.Errorf("Expected source 'github', got '%s'", event.Source)
	}
	if event.Type != "PushEvent" {
		t.Errorf("Expected type 'PushEvent', got '%s'", event.Type)
	}
	if event.Status != database.EventStatusPending {
		t.Errorf("Expected status 'pending', got '%s'", event.Status)
	}
	if event.Service != "octo/hello-world" {
		t.Errorf("Expected service 'octo/hello-world', got '%s'", event.Service)
	}

	wantTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !event.Timestamp.Equal(wantTime) {
		t.Errorf("Expected timestamp %v, got %v", wantTime, event.Timestamp)
	}
	if event.Metadata["branch"] != "main" {
		t.Errorf("Expected branch metadata 'main', got %v", event.Metadata["branch"])
	}
}

func TestNormalizeGitHub_LabeledIssue(t *testing.T) {
	raw := parseRaw(t, `{
		"type": "IssuesEvent",
		"actor": {"login": "octocat"},
		"repo": {"name": "octo/hello-world"},
		"payload": {
			"action": "labeled",
			"issue": {"labels": [{"name": "security"}, {"name": "triage"}]},
			"label": {"name": "security"}
		},
		"created_at": "2024-01-15T10:30:00Z"
	}`)

	event, err := Normalize(database.EventSourceGitHub, raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	hasSecurityTag := false
	for _, tag := range event.Tags {
		if tag == "label:security" {
			hasSecurityTag = true
		}
	}
	if !hasSecurityTag {
		t.Errorf("Expected label:security tag, got %v", event.Tags)
	}
}

func TestNormalizeGitHub_MissingType(t *testing.T) {
	raw := parseRaw(t, `{"actor": {"login": "octocat"}}`)

	if _, err := Normalize(database.EventSourceGitHub, raw); err == nil {
		t.Error("Expected error for item without type")
	}
}

func TestGitHubPushBranch(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"payload": {"ref": "refs/heads/main"}}`, "main"},
		{`{"payload": {"ref": "refs/heads/feature/x"}}`, "feature/x"},
		{`{"payload": {"ref": "refs/tags/v1.2.0"}}`, ""},
		{`{"payload": {}}`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		raw := parseRaw(t, tt.payload)
		if got := GitHubPushBranch(raw); got != tt.want {
			t.Errorf("GitHubPushBranch(%s) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestGitHubCommitMessages(t *testing.T) {
	raw := parseRaw(t, `{"payload": {"commits": [
		{"message": "feat: add parser"},
		{"message": "BREAKING: drop v1 API"},
		{"sha": "no message field"}
	]}}`)

	messages := GitHubCommitMessages(raw)
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d: %v", len(messages), messages)
	}
	if messages[1] != "BREAKING: drop v1 API" {
		t.Errorf("Expected messages in commit order, got %v", messages)
	}
}

func TestExtractNestedValue_UnknownPaths(t *testing.T) {
	raw := parseRaw(t, `{"a": {"b": "c"}}`)

	if got := ExtractString(raw, "a.b"); got != "c" {
		t.Errorf("Expected 'c', got %q", got)
	}
	if got := ExtractString(raw, "a.missing"); got != "" {
		t.Errorf("Expected empty string for missing path, got %q", got)
	}
	if got := ExtractString(raw, "a.b.c"); got != "" {
		t.Errorf("Expected empty string for path through scalar, got %q", got)
	}
}
