package baseline

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store-level sentinel errors. The workflow service translates these into the
// external taxonomy; they never cross the service boundary.
var (
	// ErrStaleStatus is returned when a conditional status update matched no
	// rows: the version moved on under a concurrent request.
	ErrStaleStatus = errors.New("baseline status changed concurrently")

	// ErrDraftExists is returned when the single-draft-per-portfolio unique
	// index rejects a creation.
	ErrDraftExists = errors.New("a draft already exists for this portfolio")
)

// Store provides persistence for portfolios, members, baseline versions, and
// their modules.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the baseline tables.
func (s *Store) AutoMigrate() error {
	for _, model := range []any{
		&PortfolioRecord{},
		&PortfolioMemberRecord{},
		&BaselineVersionRecord{},
		&ModuleRecord{},
	} {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate baseline tables: %w", err)
		}
	}
	return nil
}

// CreatePortfolio inserts a portfolio record.
func (s *Store) CreatePortfolio(record *PortfolioRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("create portfolio: %w", err)
	}
	return nil
}

// GetPortfolio retrieves a portfolio by id. Returns nil, nil if no record exists.
func (s *Store) GetPortfolio(id string) (*PortfolioRecord, error) {
	var record PortfolioRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return &record, nil
}

// UpsertMember creates or replaces a portfolio membership.
func (s *Store) UpsertMember(record *PortfolioMemberRecord) error {
	err := s.db.Where(
		"portfolio_id = ? AND user_id = ?", record.PortfolioID, record.UserID,
	).Delete(&PortfolioMemberRecord{}).Error
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// GetMemberAccess returns the actor's access level on a portfolio, or nil
// when the actor holds no membership.
func (s *Store) GetMemberAccess(portfolioID, userID string) (*AccessLevel, error) {
	var record PortfolioMemberRecord
	err := s.db.Where("portfolio_id = ? AND user_id = ?", portfolioID, userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member access: %w", err)
	}
	level := record.AccessLevel
	return &level, nil
}

// ListCheckerPortfolioIDs returns the ids of portfolios where the user holds
// CHECKER access.
func (s *Store) ListCheckerPortfolioIDs(userID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&PortfolioMemberRecord{}).
		Where("user_id = ? AND access_level = ?", userID, AccessChecker).
		Pluck("portfolio_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list checker portfolios: %w", err)
	}
	return ids, nil
}

// GetVersion retrieves a baseline version by id. Returns nil, nil if no
// record exists.
func (s *Store) GetVersion(id string) (*BaselineVersionRecord, error) {
	var record BaselineVersionRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &record, nil
}

// GetModules returns all module records of a version, in fixed type order.
func (s *Store) GetModules(versionID string) ([]ModuleRecord, error) {
	var records []ModuleRecord
	err := s.db.Where("version_id = ?", versionID).Order("module_type ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("get modules: %w", err)
	}
	return records, nil
}

// GetModule returns one module record of a version. Returns nil, nil if no
// record exists.
func (s *Store) GetModule(versionID string, moduleType ModuleType) (*ModuleRecord, error) {
	var record ModuleRecord
	err := s.db.Where("version_id = ? AND module_type = ?", versionID, moduleType).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get module: %w", err)
	}
	return &record, nil
}

// GetDraft returns the portfolio's current DRAFT version, or nil, nil when
// none exists.
func (s *Store) GetDraft(portfolioID string) (*BaselineVersionRecord, error) {
	var record BaselineVersionRecord
	err := s.db.Where("portfolio_id = ? AND status = ?", portfolioID, StatusDraft).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return &record, nil
}

// CreateDraftVersion inserts a new DRAFT version and its module records in
// one transaction, assigning the next version number for the portfolio.
//
// The single-draft invariant is enforced by the unique index on
// draft_portfolio_id, not by a prior existence check, so concurrent creators
// race safely: the loser gets ErrDraftExists.
func (s *Store) CreateDraftVersion(version *BaselineVersionRecord, modules []ModuleRecord) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var maxNumber int
		row := tx.Model(&BaselineVersionRecord{}).
			Where("portfolio_id = ?", version.PortfolioID).
			Select("COALESCE(MAX(version_number), 0)").
			Row()
		if err := row.Scan(&maxNumber); err != nil {
			return fmt.Errorf("max version number: %w", err)
		}

		version.VersionNumber = maxNumber + 1
		version.Status = StatusDraft
		draftKey := version.PortfolioID
		version.DraftPortfolioID = &draftKey

		if err := tx.Create(version).Error; err != nil {
			return err
		}

		for i := range modules {
			modules[i].VersionID = version.ID
		}
		if len(modules) > 0 {
			if err := tx.Create(&modules).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDraftExists
		}
		return fmt.Errorf("create draft version: %w", err)
	}
	return nil
}

// UpdateModule replaces a module's payload and validation flags.
func (s *Store) UpdateModule(versionID string, moduleType ModuleType, payload JSONAny, result ValidationResult) error {
	res := s.db.Model(&ModuleRecord{}).
		Where("version_id = ? AND module_type = ?", versionID, moduleType).
		Updates(map[string]any{
			"payload":     payload,
			"is_complete": result.IsComplete,
			"is_valid":    result.IsValid,
			"errors":      JSONStringSlice(result.Errors),
		})
	if res.Error != nil {
		return fmt.Errorf("update module: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSubmitted transitions a version to PENDING_APPROVAL with a conditional
// update on its current status. Rejection fields are cleared in the same
// update so a resubmitted version carries no stale rejection record. The
// draft key is released so a new draft may be created while this one awaits
// review.
func (s *Store) MarkSubmitted(versionID, actor, changeSummary string) error {
	now := time.Now()
	updates := map[string]any{
		"status":             StatusPendingApproval,
		"draft_portfolio_id": nil,
		"submitted_at":       &now,
		"submitted_by":       actor,
		"rejected_at":        nil,
		"rejected_by":        nil,
		"rejection_reason":   nil,
	}
	if changeSummary != "" {
		updates["change_summary"] = changeSummary
	}
	res := s.db.Model(&BaselineVersionRecord{}).
		Where("id = ? AND status IN ?", versionID, []Status{StatusDraft, StatusRejected}).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark submitted: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// MarkRejected transitions a PENDING_APPROVAL version to REJECTED, recording
// who rejected it and why. The submission fields are left intact as the
// historical record of what was rejected.
func (s *Store) MarkRejected(versionID, actor, reason string) error {
	now := time.Now()
	res := s.db.Model(&BaselineVersionRecord{}).
		Where("id = ? AND status = ?", versionID, StatusPendingApproval).
		Updates(map[string]any{
			"status":           StatusRejected,
			"rejected_at":      &now,
			"rejected_by":      actor,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("mark rejected: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// PublishAndArchive executes the approve postconditions in one transaction:
// the version becomes PUBLISHED, the portfolio's previously active version
// (if any) becomes ARCHIVED, and the portfolio is repointed at the new
// version. Any step failing rolls the whole transaction back, so a
// half-applied approve is never observable.
//
// Every status mutation is a conditional update; under concurrent approves
// exactly one transaction wins and the rest observe ErrStaleStatus.
func (s *Store) PublishAndArchive(versionID, portfolioID, actor string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&BaselineVersionRecord{}).
			Where("id = ? AND status = ?", versionID, StatusPendingApproval).
			Updates(map[string]any{
				"status":       StatusPublished,
				"approved_at":  &now,
				"approved_by":  actor,
				"published_at": &now,
				"published_by": actor,
			})
		if res.Error != nil {
			return fmt.Errorf("publish version: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		var portfolio PortfolioRecord
		if err := tx.Where("id = ?", portfolioID).First(&portfolio).Error; err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}

		previousID := portfolio.ActiveBaselineVersionID
		if previousID != nil && *previousID != versionID {
			res := tx.Model(&BaselineVersionRecord{}).
				Where("id = ? AND status = ?", *previousID, StatusPublished).
				Update("status", StatusArchived)
			if res.Error != nil {
				return fmt.Errorf("archive previous version: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("archive previous version %s: %w", *previousID, ErrStaleStatus)
			}
		}

		repoint := tx.Model(&PortfolioRecord{}).Where("id = ?", portfolioID)
		if previousID == nil {
			repoint = repoint.Where("active_baseline_version_id IS NULL")
		} else {
			repoint = repoint.Where("active_baseline_version_id = ?", *previousID)
		}
		res = repoint.Update("active_baseline_version_id", versionID)
		if res.Error != nil {
			return fmt.Errorf("repoint portfolio: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return ErrStaleStatus
		}
		return fmt.Errorf("publish and archive: %w", err)
	}
	return nil
}

// ListVersions returns paginated versions of a portfolio, newest first.
// pageToken is the version number of the last record from the previous page;
// pass 0 for the first page.
func (s *Store) ListVersions(portfolioID string, pageSize int, pageToken int) ([]BaselineVersionRecord, int, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var totalSize int64
	if err := s.db.Model(&BaselineVersionRecord{}).Where("portfolio_id = ?", portfolioID).Count(&totalSize).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("count versions: %w", err)
	}

	query := s.db.Where("portfolio_id = ?", portfolioID).Order("version_number DESC").Limit(pageSize + 1)
	if pageToken > 0 {
		query = query.Where("version_number < ?", pageToken)
	}

	var records []BaselineVersionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("list versions: %w", err)
	}

	var nextToken int
	if len(records) > pageSize {
		nextToken = records[pageSize-1].VersionNumber
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// PendingRow is one pending-approval row with its portfolio name resolved.
type PendingRow struct {
	BaselineVersionRecord
	PortfolioName string
}

// ListPendingByCompany returns every PENDING_APPROVAL version across all of a
// company's portfolios, newest submission first.
func (s *Store) ListPendingByCompany(companyID string) ([]PendingRow, error) {
	var portfolioIDs []string
	err := s.db.Model(&PortfolioRecord{}).
		Where("company_id = ?", companyID).
		Pluck("id", &portfolioIDs).Error
	if err != nil {
		return nil, fmt.Errorf("list company portfolios: %w", err)
	}
	return s.ListPendingByPortfolios(portfolioIDs)
}

// ListPendingByPortfolios returns PENDING_APPROVAL versions scoped to the
// given portfolio ids, newest submission first. An empty id set yields an
// empty result.
func (s *Store) ListPendingByPortfolios(portfolioIDs []string) ([]PendingRow, error) {
	if len(portfolioIDs) == 0 {
		return nil, nil
	}

	var records []BaselineVersionRecord
	err := s.db.Where("portfolio_id IN ? AND status = ?", portfolioIDs, StatusPendingApproval).
		Order("submitted_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list pending by portfolios: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var portfolios []PortfolioRecord
	if err := s.db.Where("id IN ?", portfolioIDs).Find(&portfolios).Error; err != nil {
		return nil, fmt.Errorf("load portfolio names: %w", err)
	}
	names := make(map[string]string, len(portfolios))
	for _, p := range portfolios {
		names[p.ID] = p.Name
	}

	rows := make([]PendingRow, len(records))
	for i, rec := range records {
		rows[i] = PendingRow{BaselineVersionRecord: rec, PortfolioName: names[rec.PortfolioID]}
	}
	return rows, nil
}
