// Package slackutil posts incident notifications to a Slack channel.
// Notification delivery is best-effort; the pipeline never blocks on it.
package slackutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// slackPoster is the subset of *slack.Client the notifier uses
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts new incidents to a fixed alerts channel
type Notifier struct {
	client  slackPoster
	channel string
}

// NewNotifier creates a notifier for the given bot token and channel
func NewNotifier(botToken, channel string) *Notifier {
	return &Notifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

// NotifyIncident posts a formatted message for a newly created incident
func (n *Notifier) NotifyIncident(ctx context.Context, incident *database.Incident) error {
	message := formatIncident(incident)
	_, _, err := n.client.PostMessageContext(
		ctx,
		n.channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post incident message: %w", err)
	}
	return nil
}

func formatIncident(incident *database.Incident) string {
	message := fmt.Sprintf(`%s *Incident: %s*

:label: *Source:* %s
:gear: *Service:* %s
:warning: *Severity:* %s
:memo: *Summary:* %s`,
		severityEmoji(incident.Severity),
		incident.Title,
		incident.Source,
		incident.Service,
		incident.Severity,
		incident.Summary,
	)

	if len(incident.Runbook) > 0 {
		message += fmt.Sprintf("\n:book: *Runbook:*\n• %s", strings.Join(incident.Runbook, "\n• "))
	}

	return message
}

func severityEmoji(severity database.Severity) string {
	switch severity {
	case database.SeverityCritical:
		return ":rotating_light:"
	case database.SeverityHigh:
		return ":red_circle:"
	case database.SeverityMedium:
		return ":large_orange_circle:"
	default:
		return ":large_blue_circle:"
	}
}
