package baseline

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
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

// JSONStringSlice is a custom GORM type for []string stored as JSON text.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// PortfolioRecord is a GORM model for a portfolio. The active baseline
// version pointer is a weak reference; at most one version per portfolio is
// PUBLISHED, and this column names it.
type PortfolioRecord struct {
	ID                      string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	CompanyID               string    `gorm:"column:company_id;index:idx_portfolio_company;not null"`
	Name                    string    `gorm:"column:name;not null"`
	ActiveBaselineVersionID *string   `gorm:"column:active_baseline_version_id;type:varchar(36)"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (PortfolioRecord) TableName() string { return "portfolios" }

// PortfolioMemberRecord associates a user with a portfolio and an access level.
type PortfolioMemberRecord struct {
	ID          string      `gorm:"primaryKey;column:id;type:varchar(36)"`
	PortfolioID string      `gorm:"column:portfolio_id;uniqueIndex:idx_member_portfolio_user,priority:1;not null"`
	UserID      string      `gorm:"column:user_id;uniqueIndex:idx_member_portfolio_user,priority:2;index:idx_member_user;not null"`
	AccessLevel AccessLevel `gorm:"column:access_level;not null"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (PortfolioMemberRecord) TableName() string { return "portfolio_members" }

// BaselineVersionRecord is a GORM model for a baseline version.
//
// DraftPortfolioID mirrors PortfolioID while the version is in DRAFT and is
// NULL otherwise. The unique index on it makes "at most one draft per
// portfolio" a storage-layer guarantee rather than a check-then-act in
// application code.
type BaselineVersionRecord struct {
	ID               string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	PortfolioID      string     `gorm:"column:portfolio_id;index:idx_version_portfolio;uniqueIndex:idx_version_number,priority:1;not null"`
	VersionNumber    int        `gorm:"column:version_number;uniqueIndex:idx_version_number,priority:2;not null"`
	Status           Status     `gorm:"column:status;index:idx_version_status;not null;default:DRAFT"`
	DraftPortfolioID *string    `gorm:"column:draft_portfolio_id;uniqueIndex:idx_version_single_draft"`
	ParentVersionID  *string    `gorm:"column:parent_version_id;type:varchar(36)"`
	ChangeSummary    string     `gorm:"column:change_summary"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	CreatedBy        string     `gorm:"column:created_by;not null"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at"`
	SubmittedBy      *string    `gorm:"column:submitted_by"`
	ApprovedAt       *time.Time `gorm:"column:approved_at"`
	ApprovedBy       *string    `gorm:"column:approved_by"`
	RejectedAt       *time.Time `gorm:"column:rejected_at"`
	RejectedBy       *string    `gorm:"column:rejected_by"`
	RejectionReason  *string    `gorm:"column:rejection_reason"`
	PublishedAt      *time.Time `gorm:"column:published_at"`
	PublishedBy      *string    `gorm:"column:published_by"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (BaselineVersionRecord) TableName() string { return "baseline_versions" }

// ModuleRecord is a GORM model for one module section of a baseline version.
// Exactly one record exists per (version, module type).
type ModuleRecord struct {
	ID         string          `gorm:"primaryKey;column:id;type:varchar(36)"`
	VersionID  string          `gorm:"column:version_id;uniqueIndex:idx_module_version_type,priority:1;not null"`
	ModuleType ModuleType      `gorm:"column:module_type;uniqueIndex:idx_module_version_type,priority:2;not null"`
	Payload    JSONAny         `gorm:"column:payload;type:text"`
	IsComplete bool            `gorm:"column:is_complete;not null;default:false"`
	IsValid    bool            `gorm:"column:is_valid;not null;default:false"`
	Errors     JSONStringSlice `gorm:"column:errors;type:text"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ModuleRecord) TableName() string { return "baseline_modules" }
