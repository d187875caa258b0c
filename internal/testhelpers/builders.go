package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// ========================================
// Event Builder
// ========================================

// EventBuilder builds Event instances for testing
type EventBuilder struct {
	event database.Event
}

// NewEventBuilder creates a new event builder with defaults
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		event: database.Event{
			UUID:      uuid.New().String(),
			Source:    database.EventSourceWikimedia,
			Type:      "edit",
			Timestamp: time.Now().UTC(),
			Raw:       database.JSONB{"type": "edit"},
			Tags:      database.StringList{"wikimedia", "edit"},
			Status:    database.EventStatusPending,
			Severity:  database.SeverityLow,
			Service:   "en.wikipedia.org",
			Summary:   "edit: Test page by tester on en.wikipedia.org",
		},
	}
}

// WithUUID sets the event UUID
func (b *EventBuilder) WithUUID(id string) *EventBuilder {
	b.event.UUID = id
	return b
}

// WithSource sets the event source
func (b *EventBuilder) WithSource(source database.EventSource) *EventBuilder {
	b.event.Source = source
	return b
}

// WithType sets the source-specific event type
func (b *EventBuilder) WithType(eventType string) *EventBuilder {
	b.event.Type = eventType
	return b
}

// WithTimestamp sets the event timestamp
func (b *EventBuilder) WithTimestamp(ts time.Time) *EventBuilder {
	b.event.Timestamp = ts
	return b
}

// WithRaw sets the raw payload
func (b *EventBuilder) WithRaw(raw database.JSONB) *EventBuilder {
	b.event.Raw = raw
	return b
}

// WithStatus sets the event status
func (b *EventBuilder) WithStatus(status database.EventStatus) *EventBuilder {
	b.event.Status = status
	return b
}

// WithSeverity sets the event severity
func (b *EventBuilder) WithSeverity(severity database.Severity) *EventBuilder {
	b.event.Severity = severity
	return b
}

// WithService sets the logical service name
func (b *EventBuilder) WithService(service string) *EventBuilder {
	b.event.Service = service
	return b
}

// WithSummary sets the summary line
func (b *EventBuilder) WithSummary(summary string) *EventBuilder {
	b.event.Summary = summary
	return b
}

// Build returns the constructed event
func (b *EventBuilder) Build() database.Event {
	return b.event
}

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds Incident instances for testing
type IncidentBuilder struct {
	incident database.Incident
}

// NewIncidentBuilder creates a new incident builder with defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		incident: database.Incident{
			UUID:       uuid.New().String(),
			Title:      "Test incident",
			Summary:    "Incident created by a test",
			Severity:   database.SeverityHigh,
			Status:     database.IncidentStatusOpen,
			Source:     database.EventSourceWikimedia,
			Service:    "en.wikipedia.org",
			EventUUIDs: database.StringList{uuid.New().String()},
			DetectedAt: time.Now().UTC(),
		},
	}
}

// WithUUID sets the incident UUID
func (b *IncidentBuilder) WithUUID(id string) *IncidentBuilder {
	b.incident.UUID = id
	return b
}

// WithSeverity sets the severity
func (b *IncidentBuilder) WithSeverity(severity database.Severity) *IncidentBuilder {
	b.incident.Severity = severity
	return b
}

// WithStatus sets the lifecycle status
func (b *IncidentBuilder) WithStatus(status database.IncidentStatus) *IncidentBuilder {
	b.incident.Status = status
	return b
}

// WithSource sets the originating source
func (b *IncidentBuilder) WithSource(source database.EventSource) *IncidentBuilder {
	b.incident.Source = source
	return b
}

// WithEventUUIDs sets the linked event list
func (b *IncidentBuilder) WithEventUUIDs(ids ...string) *IncidentBuilder {
	b.incident.EventUUIDs = database.StringList(ids)
	return b
}

// WithDetectedAt sets the detection time
func (b *IncidentBuilder) WithDetectedAt(ts time.Time) *IncidentBuilder {
	b.incident.DetectedAt = ts
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.Incident {
	return b.incident
}
