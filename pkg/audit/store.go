package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store provides append-only operations for audit event records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit events table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit events: %w", err)
	}
	return nil
}

// Append creates a new immutable audit event record.
func (s *Store) Append(event *EventRecord) error {
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByVersion returns paginated audit events for a baseline version,
// scoped to the given company, newest first. pageToken is an RFC3339Nano
// timestamp; events with created_at < pageToken are returned.
func (s *Store) ListByVersion(companyID, versionID string, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	return s.list("company_id = ? AND version_id = ?", []any{companyID, versionID}, pageSize, pageToken)
}

// ListByPortfolio returns paginated audit events for a portfolio, scoped to
// the given company, newest first.
func (s *Store) ListByPortfolio(companyID, portfolioID string, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	return s.list("company_id = ? AND portfolio_id = ?", []any{companyID, portfolioID}, pageSize, pageToken)
}

func (s *Store) list(cond string, args []any, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var totalSize int64
	if err := s.db.Model(&EventRecord{}).Where(cond, args...).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := s.db.Where(cond, args...).Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// DeleteOlderThan removes events created before the cutoff and returns how
// many were deleted. Used by retention pruning.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", cutoff).Delete(&EventRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
