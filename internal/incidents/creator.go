package incidents

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/broker"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// IncidentPublisher publishes incident-created notifications
type IncidentPublisher interface {
	PublishIncident(ctx context.Context, n broker.IncidentNotification) error
}

// Notifier pushes a human-facing notification for a new incident
type Notifier interface {
	NotifyIncident(ctx context.Context, incident *database.Incident) error
}

// Creator persists synthesized incidents and fans out notifications.
// Persistence is authoritative; broker and notifier failures are logged and
// swallowed.
type Creator struct {
	db        *gorm.DB
	publisher IncidentPublisher
	notifier  Notifier
}

// NewCreator creates an incident creator. publisher and notifier may be nil
// when the corresponding channel is not configured.
func NewCreator(db *gorm.DB, publisher IncidentPublisher, notifier Notifier) *Creator {
	return &Creator{db: db, publisher: publisher, notifier: notifier}
}

// CreateFromEvent persists an incident built from the event and its analysis
// draft. The incident links back to the originating event and inherits its
// detection time from the event timestamp.
func (c *Creator) CreateFromEvent(ctx context.Context, event *database.Event, draft *Draft) (*database.Incident, error) {
	incident := &database.Incident{
		Title:            draft.Title,
		Summary:          draft.Summary,
		Severity:         event.Severity,
		Status:           database.IncidentStatusOpen,
		Source:           event.Source,
		Service:          event.Service,
		Tags:             append(database.StringList{}, event.Tags...),
		Raw:              event.Raw,
		EventUUIDs:       database.StringList{event.UUID},
		Impact:           draft.Impact,
		RootCause:        draft.RootCause,
		AffectedServices: database.StringList(draft.AffectedServices),
		Runbook:          database.StringList(draft.Runbook),
		DetectedAt:       event.Timestamp,
	}

	if err := database.CreateIncident(c.db, incident); err != nil {
		return nil, fmt.Errorf("failed to persist incident: %w", err)
	}
	metrics.IncidentsCreated.WithLabelValues(string(incident.Source)).Inc()
	log.Printf("Created %s incident %s (%s) from event %s",
		incident.Severity, incident.UUID, draft.Type, event.UUID)

	if c.publisher != nil {
		notification := broker.IncidentNotification{
			IncidentID: incident.UUID,
			Title:      incident.Title,
			Severity:   string(incident.Severity),
			Source:     string(incident.Source),
			Service:    incident.Service,
			DetectedAt: incident.DetectedAt,
			EventIDs:   []string(incident.EventUUIDs),
		}
		if err := c.publisher.PublishIncident(ctx, notification); err != nil {
			log.Printf("Warning: failed to publish incident notification for %s: %v", incident.UUID, err)
		}
	}

	if c.notifier != nil {
		if err := c.notifier.NotifyIncident(ctx, incident); err != nil {
			log.Printf("Warning: failed to send incident notification for %s: %v", incident.UUID, err)
		}
	}

	return incident, nil
}
