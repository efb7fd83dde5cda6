// Package audit provides an append-only audit trail for baseline workflow
// transitions, with a read-only HTTP API and retention pruning.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the baseline workflow.
const (
	EventDraftCreated    = "baseline.draft.created"
	EventModuleEdited    = "baseline.module.edited"
	EventSubmitted       = "baseline.submitted"
	EventApproved        = "baseline.approved"
	EventRejected        = "baseline.rejected"
	EventArchived        = "baseline.archived"
)

// Outcomes recorded on events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// JSONAny is a custom GORM type for map[string]any stored as JSON text.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is an immutable audit log entry.
type EventRecord struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	CompanyID     string    `gorm:"column:company_id;index:idx_audit_company_time,priority:1;not null"`
	EventType     string    `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor         string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	PortfolioID   string    `gorm:"column:portfolio_id;index:idx_audit_portfolio_time,priority:1"`
	VersionID     string    `gorm:"column:version_id;index:idx_audit_version_time,priority:1"`
	Action        string    `gorm:"column:action"`
	Outcome       string    `gorm:"column:outcome;not null"`
	Reason        string    `gorm:"column:reason"`
	OldValue      JSONAny   `gorm:"column:old_value;type:text"`
	NewValue      JSONAny   `gorm:"column:new_value;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;index:idx_audit_company_time,priority:2;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_portfolio_time,priority:2;index:idx_audit_version_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "baseline_audit_events" }

// Event is the API-facing audit event.
type Event struct {
	ID          string         `json:"id"`
	EventType   string         `json:"eventType"`
	Actor       string         `json:"actor"`
	PortfolioID string         `json:"portfolioId,omitempty"`
	VersionID   string         `json:"versionId,omitempty"`
	Action      string         `json:"action,omitempty"`
	Outcome     string         `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	OldValue    map[string]any `json:"oldValue,omitempty"`
	NewValue    map[string]any `json:"newValue,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

// EventList is a paginated list of audit events.
type EventList struct {
	Events        []Event `json:"events"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	TotalSize     int     `json:"totalSize"`
}
