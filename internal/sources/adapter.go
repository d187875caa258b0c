// Package sources owns the connection lifecycle to the external event feeds.
// Each adapter turns raw feed items into canonical events and hands them to a
// sink; adapter-level failures never crash the process.
package sources

import (
	"context"
	"log"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/broker"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// Adapter is the lifecycle surface every feed adapter implements
type Adapter interface {
	// SourceType returns the feed this adapter covers
	SourceType() database.EventSource

	// Start brings the adapter up. Calling Start on a running adapter is a
	// no-op.
	Start(ctx context.Context) error

	// Stop tears down the connection or timer. In-flight single-item
	// processing completes, nothing is cancelled mid-item.
	Stop()

	// IsRunning reports whether the adapter is currently active
	IsRunning() bool
}

// EventSink receives normalized events from adapters
type EventSink interface {
	Ingest(ctx context.Context, event *database.Event) error
}

// EventPublisher publishes stored-event notifications to the broker
type EventPublisher interface {
	PublishEvent(ctx context.Context, n broker.EventNotification) error
}

// StoreSink persists events and emits a fire-and-forget broker notification.
// The database write is authoritative; a publish failure is logged and
// swallowed.
type StoreSink struct {
	db        *gorm.DB
	publisher EventPublisher
}

// NewStoreSink creates the standard persistence sink. publisher may be nil
// when the broker is unavailable (degraded mode).
func NewStoreSink(db *gorm.DB, publisher EventPublisher) *StoreSink {
	return &StoreSink{db: db, publisher: publisher}
}

// Ingest stores one event and notifies downstream consumers
func (s *StoreSink) Ingest(ctx context.Context, event *database.Event) error {
	if err := database.CreateEvent(s.db, event); err != nil {
		return err
	}
	metrics.EventsIngested.WithLabelValues(string(event.Source)).Inc()

	if s.publisher != nil {
		notification := broker.EventNotification{
			EventID:   event.UUID,
			Source:    string(event.Source),
			Severity:  string(event.Severity),
			Timestamp: event.Timestamp,
			Summary:   event.Summary,
		}
		if err := s.publisher.PublishEvent(ctx, notification); err != nil {
			log.Printf("Warning: failed to publish event notification for %s: %v", event.UUID, err)
		}
	}

	return nil
}
