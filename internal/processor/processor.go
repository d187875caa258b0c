// Package processor drains pending events on a fixed interval, applying
// severity classification and incident synthesis to each one independently.
package processor

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/incidents"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// SeverityClassifier assigns a severity to an event
type SeverityClassifier interface {
	Classify(e *database.Event) database.Severity
}

// DraftAnalyzer produces an incident draft for an event, or nil
type DraftAnalyzer interface {
	Analyze(e *database.Event) *incidents.Draft
}

// IncidentCreator persists an incident synthesized from an event
type IncidentCreator interface {
	CreateFromEvent(ctx context.Context, event *database.Event, draft *incidents.Draft) (*database.Incident, error)
}

// DeadLetterPublisher routes unprocessable event payloads to the dead-letter
// topic
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, key string, payload []byte) error
}

// Result summarizes one batch run
type Result struct {
	Skipped   bool // True when a run was already in progress
	Processed int
	Failed    int
}

// BatchProcessor is the periodic job behind pending-event draining. A single
// run is active at any time; overlapping triggers are skipped, not queued.
type BatchProcessor struct {
	db         *gorm.DB
	classifier SeverityClassifier
	analyzer   DraftAnalyzer
	creator    IncidentCreator
	deadLetter DeadLetterPublisher
	batchSize  int

	running atomic.Bool
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(db *gorm.DB, classifier SeverityClassifier, analyzer DraftAnalyzer, creator IncidentCreator, batchSize int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchProcessor{
		db:         db,
		classifier: classifier,
		analyzer:   analyzer,
		creator:    creator,
		batchSize:  batchSize,
	}
}

// SetDeadLetterPublisher enables best-effort dead-letter routing of failed
// event payloads. May be left unset when the broker is unavailable.
func (p *BatchProcessor) SetDeadLetterPublisher(pub DeadLetterPublisher) {
	p.deadLetter = pub
}

// IsRunning reports whether a batch run is currently in progress
func (p *BatchProcessor) IsRunning() bool {
	return p.running.Load()
}

// Run executes one batch cycle. If a cycle is already running the call
// returns immediately with Skipped set and touches the database not at all.
func (p *BatchProcessor) Run(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{Skipped: true}, nil
	}
	defer p.running.Store(false)

	pending, err := database.PendingEvents(p.db, p.batchSize)
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		return Result{}, nil
	}

	var result Result
	for i := range pending {
		event := &pending[i]
		if err := p.processOne(ctx, event); err != nil {
			// Single-event failure never aborts the batch. Failed events are
			// terminal: there is no automatic retry, so a permanently
			// malformed payload cannot loop forever.
			log.Printf("Failed to process event %s: %v", event.UUID, err)
			if markErr := database.MarkEventFailed(p.db, event.UUID, err); markErr != nil {
				log.Printf("Failed to mark event %s failed: %v", event.UUID, markErr)
			}
			p.routeDeadLetter(ctx, event)
			metrics.EventsProcessed.WithLabelValues(string(database.EventStatusFailed)).Inc()
			result.Failed++
			continue
		}
		metrics.EventsProcessed.WithLabelValues(string(database.EventStatusProcessed)).Inc()
		result.Processed++
	}

	log.Printf("Batch run complete: %d processed, %d failed", result.Processed, result.Failed)
	return result, nil
}

// processOne confirms the event's severity, synthesizes an incident if the
// analysis calls for one, and advances the event to processed. The incident
// back-reference lands in the same status update so it is only ever set on
// processed events.
func (p *BatchProcessor) processOne(ctx context.Context, event *database.Event) error {
	severity := p.classifier.Classify(event)
	event.Severity = severity

	incidentUUID := ""
	if draft := p.analyzer.Analyze(event); draft != nil {
		incident, err := p.creator.CreateFromEvent(ctx, event, draft)
		if err != nil {
			return err
		}
		incidentUUID = incident.UUID
	}

	return database.MarkEventProcessed(p.db, event.UUID, severity, incidentUUID)
}

// routeDeadLetter forwards a failed event's raw payload for offline
// inspection. Best-effort: the event row already records the failure.
func (p *BatchProcessor) routeDeadLetter(ctx context.Context, event *database.Event) {
	if p.deadLetter == nil {
		return
	}
	payload, err := json.Marshal(event.Raw)
	if err != nil {
		log.Printf("Warning: failed to marshal dead-letter payload for %s: %v", event.UUID, err)
		return
	}
	if err := p.deadLetter.PublishDeadLetter(ctx, event.UUID, payload); err != nil {
		log.Printf("Warning: failed to publish dead letter for %s: %v", event.UUID, err)
	}
}
