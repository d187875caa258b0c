package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoLinkedEvents is returned when an incident would be created without any
// originating event.
var ErrNoLinkedEvents = errors.New("incident must link at least one event")

// CreateIncident persists a new incident. Every incident must reference at
// least one originating event; DetectedAt defaults to the triggering event's
// timestamp (set by the synthesizer) or to now via the BeforeCreate hook.
func CreateIncident(db *gorm.DB, incident *Incident) error {
	if len(incident.EventUUIDs) == 0 {
		return ErrNoLinkedEvents
	}
	if incident.UUID == "" {
		incident.UUID = uuid.New().String()
	}
	if incident.Status == "" {
		incident.Status = IncidentStatusOpen
	}
	if err := db.Create(incident).Error; err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetIncidentByUUID retrieves a single incident by its UUID
func GetIncidentByUUID(db *gorm.DB, incidentUUID string) (*Incident, error) {
	var incident Incident
	if err := db.Where("uuid = ?", incidentUUID).First(&incident).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

// AppendEventToIncident appends an event UUID to the incident's ordered list
func AppendEventToIncident(db *gorm.DB, incidentUUID, eventUUID string) error {
	incident, err := GetIncidentByUUID(db, incidentUUID)
	if err != nil {
		return err
	}
	incident.EventUUIDs = append(incident.EventUUIDs, eventUUID)
	if err := db.Model(incident).Update("event_uuids", incident.EventUUIDs).Error; err != nil {
		return fmt.Errorf("failed to append event to incident: %w", err)
	}
	return nil
}

// IncidentFilter narrows incident queries; zero-value fields are ignored
type IncidentFilter struct {
	Source   EventSource
	Severity Severity
	Status   IncidentStatus
	Service  string
	Limit    int
}

// FindIncidents returns incidents matching the filter, newest first
func FindIncidents(db *gorm.DB, filter IncidentFilter) ([]Incident, error) {
	query := db.Model(&Incident{})
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Service != "" {
		query = query.Where("service = ?", filter.Service)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var incidents []Incident
	if err := query.Order("detected_at DESC").Find(&incidents).Error; err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	return incidents, nil
}

// OpenIncidents returns all incidents not yet resolved or closed
func OpenIncidents(db *gorm.DB) ([]Incident, error) {
	var incidents []Incident
	err := db.Where("status NOT IN ?", []IncidentStatus{
		IncidentStatusResolved,
		IncidentStatusClosed,
	}).Order("detected_at DESC").Find(&incidents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query open incidents: %w", err)
	}
	return incidents, nil
}
