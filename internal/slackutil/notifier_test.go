package slackutil

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

type fakePoster struct {
	channels []string
	err      error
}

func (f *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.channels = append(f.channels, channelID)
	return channelID, "12345.678", nil
}

func sampleIncident() *database.Incident {
	return &database.Incident{
		UUID:     "inc-1",
		Title:    "Mass content change on enwiki",
		Source:   database.EventSourceWikimedia,
		Service:  "enwiki",
		Severity: database.SeverityHigh,
		Summary:  "Edit removed 60000 bytes from Main Page",
		Runbook:  []string{"Review the diff", "Revert if vandalism"},
	}
}

func TestNotifyIncident_PostsToConfiguredChannel(t *testing.T) {
	poster := &fakePoster{}
	notifier := &Notifier{client: poster, channel: "C123ALERTS"}

	if err := notifier.NotifyIncident(context.Background(), sampleIncident()); err != nil {
		t.Fatalf("NotifyIncident returned error: %v", err)
	}
	if len(poster.channels) != 1 || poster.channels[0] != "C123ALERTS" {
		t.Errorf("Expected one post to C123ALERTS, got %v", poster.channels)
	}
}

func TestNotifyIncident_PostFailure(t *testing.T) {
	poster := &fakePoster{err: errors.New("channel_not_found")}
	notifier := &Notifier{client: poster, channel: "C123ALERTS"}

	err := notifier.NotifyIncident(context.Background(), sampleIncident())
	if err == nil {
		t.Fatal("Expected error from failed post")
	}
	if !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("Expected wrapped slack error, got %v", err)
	}
}

func TestFormatIncident(t *testing.T) {
	message := formatIncident(sampleIncident())

	for _, want := range []string{
		":red_circle:",
		"Mass content change on enwiki",
		"*Source:* wikimedia",
		"*Service:* enwiki",
		"*Severity:* high",
		"Edit removed 60000 bytes",
		"• Review the diff",
		"• Revert if vandalism",
	} {
		if !strings.Contains(message, want) {
			t.Errorf("Expected message to contain %q:\n%s", want, message)
		}
	}
}

func TestFormatIncident_NoRunbook(t *testing.T) {
	incident := sampleIncident()
	incident.Runbook = nil

	message := formatIncident(incident)
	if strings.Contains(message, ":book:") {
		t.Errorf("Expected no runbook section:\n%s", message)
	}
}

func TestSeverityEmoji(t *testing.T) {
	tests := []struct {
		severity database.Severity
		emoji    string
	}{
		{database.SeverityCritical, ":rotating_light:"},
		{database.SeverityHigh, ":red_circle:"},
		{database.SeverityMedium, ":large_orange_circle:"},
		{database.SeverityLow, ":large_blue_circle:"},
	}
	for _, tt := range tests {
		if got := severityEmoji(tt.severity); got != tt.emoji {
			t.Errorf("severityEmoji(%s) = %s, want %s", tt.severity, got, tt.emoji)
		}
	}
}
