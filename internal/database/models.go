package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList is a custom type for ordered string arrays stored as JSONB
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

// EventSource identifies the upstream feed an event came from
type EventSource string

const (
	EventSourceWikimedia EventSource = "wikimedia"
	EventSourceGitHub    EventSource = "github"
)

// EventStatus represents the processing status of an event
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
)

// Severity is the coarse ordinal driving incident-creation gating
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities so rules can compare them
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Event is the canonical record every source adapter normalizes into
type Event struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UUID      string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Source    EventSource `gorm:"type:varchar(50);not null;index:idx_events_source_severity" json:"source"`
	Type      string      `gorm:"type:varchar(128);not null" json:"type"` // Source-specific kind (e.g. "edit", "PushEvent")
	Timestamp time.Time   `gorm:"not null;index:idx_events_status_timestamp,priority:2" json:"timestamp"`
	Raw       JSONB       `gorm:"type:jsonb" json:"raw"` // Original payload, preserved verbatim for audit/replay
	Tags      StringList  `gorm:"type:jsonb" json:"tags"`
	Status    EventStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_events_status_timestamp,priority:1" json:"status"`
	Severity  Severity    `gorm:"type:varchar(20);not null;default:'low';index:idx_events_source_severity" json:"severity"`
	Service   string      `gorm:"type:varchar(255)" json:"service"`
	Summary   string      `gorm:"type:text" json:"summary"`
	Metadata  JSONB       `gorm:"type:jsonb" json:"metadata"`

	// Set only after incident synthesis; weak reference, does not own the incident
	IncidentUUID string `gorm:"type:varchar(36);index" json:"incident_id,omitempty"`

	ProcessingError string     `gorm:"type:text" json:"processing_error,omitempty"` // Set only when status=failed
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

// IncidentStatus represents the lifecycle status of an incident.
// Transitions are monotonic: open → investigating → identified → monitoring
// → resolved → closed. Reopening is out of scope.
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusIdentified    IncidentStatus = "identified"
	IncidentStatusMonitoring    IncidentStatus = "monitoring"
	IncidentStatusResolved      IncidentStatus = "resolved"
	IncidentStatusClosed        IncidentStatus = "closed"
)

// Incident is a synthesized record aggregating one or more severity-triggering events
type Incident struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	UUID     string         `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Title    string         `gorm:"type:varchar(255);not null" json:"title"`
	Summary  string         `gorm:"type:text" json:"summary"`
	Severity Severity       `gorm:"type:varchar(20);not null;index" json:"severity"`
	Status   IncidentStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Source   EventSource    `gorm:"type:varchar(50);not null;index" json:"source"`
	Service  string         `gorm:"type:varchar(255)" json:"service"`
	Tags     StringList     `gorm:"type:jsonb" json:"tags"`
	Raw      JSONB          `gorm:"type:jsonb" json:"raw"` // Copy of the triggering event's raw payload

	// Ordered-append list of event UUIDs; always at least one
	EventUUIDs StringList `gorm:"type:jsonb" json:"event_ids"`

	Impact           string     `gorm:"type:text" json:"impact"`
	RootCause        string     `gorm:"type:text" json:"root_cause"`
	AffectedServices StringList `gorm:"type:jsonb" json:"affected_services"`
	Runbook          StringList `gorm:"type:jsonb" json:"runbook"` // Ordered remediation steps

	DetectedAt     time.Time  `gorm:"not null" json:"detected_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Incident) TableName() string {
	return "incidents"
}

// BeforeCreate hook defaults DetectedAt when the caller did not set it
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.DetectedAt.IsZero() {
		i.DetectedAt = time.Now()
	}
	return nil
}

// MTTR returns time-to-resolve for this incident, zero while unresolved.
// Derived on read, never stored.
func (i *Incident) MTTR() time.Duration {
	if i.ResolvedAt == nil {
		return 0
	}
	return i.ResolvedAt.Sub(i.DetectedAt)
}

// MTTA returns time-to-acknowledge, zero while unacknowledged
func (i *Incident) MTTA() time.Duration {
	if i.AcknowledgedAt == nil {
		return 0
	}
	return i.AcknowledgedAt.Sub(i.DetectedAt)
}
