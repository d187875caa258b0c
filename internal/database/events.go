package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidTransition is returned when an event status update would violate
// the pending → processed|failed lifecycle.
var ErrInvalidTransition = errors.New("invalid event status transition")

// CreateEvent appends a new event record. The UUID and pending status are
// assigned here if the caller left them empty.
func CreateEvent(db *gorm.DB, event *Event) error {
	if event.UUID == "" {
		event.UUID = uuid.New().String()
	}
	if event.Status == "" {
		event.Status = EventStatusPending
	}
	if event.Severity == "" {
		event.Severity = SeverityLow
	}
	if err := db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// PendingEvents returns up to limit pending events, oldest first.
// Oldest-first bounds staleness: an event never waits behind newer ones.
func PendingEvents(db *gorm.DB, limit int) ([]Event, error) {
	var events []Event
	err := db.Where("status = ?", EventStatusPending).
		Order("timestamp ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	return events, nil
}

// MarkEventProcessed transitions a pending event to processed, recording the
// confirmed severity and, when synthesis produced one, the incident back-reference.
// The WHERE guard on status enforces that processed/failed events are never
// transitioned again.
func MarkEventProcessed(db *gorm.DB, eventUUID string, severity Severity, incidentUUID string) error {
	updates := map[string]interface{}{
		"status":       EventStatusProcessed,
		"severity":     severity,
		"processed_at": time.Now(),
	}
	if incidentUUID != "" {
		updates["incident_uuid"] = incidentUUID
	}

	result := db.Model(&Event{}).
		Where("uuid = ? AND status = ?", eventUUID, EventStatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to mark event processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkEventFailed transitions a pending event to failed with the error message.
// Failed events are terminal; there is no automatic retry.
func MarkEventFailed(db *gorm.DB, eventUUID string, processingErr error) error {
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	result := db.Model(&Event{}).
		Where("uuid = ? AND status = ?", eventUUID, EventStatusPending).
		Updates(map[string]interface{}{
			"status":           EventStatusFailed,
			"processing_error": msg,
			"processed_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark event failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// GetEventByUUID retrieves a single event by its UUID
func GetEventByUUID(db *gorm.DB, eventUUID string) (*Event, error) {
	var event Event
	if err := db.Where("uuid = ?", eventUUID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// EventFilter narrows event queries; zero-value fields are ignored
type EventFilter struct {
	Source   EventSource
	Severity Severity
	Status   EventStatus
	Limit    int
}

// FindEvents returns events matching the filter, newest first
func FindEvents(db *gorm.DB, filter EventFilter) ([]Event, error) {
	query := db.Model(&Event{})
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var events []Event
	if err := query.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// CountEventsByStatus returns the number of events in the given status
func CountEventsByStatus(db *gorm.DB, status EventStatus) (int64, error) {
	var count int64
	err := db.Model(&Event{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
