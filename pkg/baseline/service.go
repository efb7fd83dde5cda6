package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfolio/baseline-registry/pkg/audit"
	"github.com/quantfolio/baseline-registry/pkg/identity"
)

// Service orchestrates the baseline maker-checker workflow. Every operation
// takes the acting identity explicitly; there is no ambient actor state. All
// failures crossing this boundary are *Error values.
type Service struct {
	store     *Store
	validator ModuleValidator
	machine   *LifecycleMachine
	audit     *audit.Store
	logger    *zap.Logger
}

// NewService creates a workflow service. auditStore may be nil to disable the
// audit trail; logger may be nil.
func NewService(store *Store, validator ModuleValidator, auditStore *audit.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		validator: validator,
		machine:   NewLifecycleMachine(),
		audit:     auditStore,
		logger:    logger,
	}
}

// versionContext is the resolved state shared by the per-version operations.
type versionContext struct {
	version   *BaselineVersionRecord
	portfolio *PortfolioRecord
	access    *AccessLevel
}

// resolvePortfolio loads a portfolio scoped to the actor's company. A
// portfolio belonging to another company is reported as NotFound rather than
// leaking its existence.
func (s *Service) resolvePortfolio(actor identity.Identity, portfolioID string) (*PortfolioRecord, *AccessLevel, error) {
	portfolio, err := s.store.GetPortfolio(portfolioID)
	if err != nil {
		return nil, nil, s.internal("load portfolio", err)
	}
	if portfolio == nil || portfolio.CompanyID != actor.CompanyID {
		return nil, nil, errNotFound("Portfolio not found")
	}
	access, err := s.store.GetMemberAccess(portfolio.ID, actor.UserID)
	if err != nil {
		return nil, nil, s.internal("load membership", err)
	}
	return portfolio, access, nil
}

// resolveVersion loads a version and its portfolio scoped to the actor's company.
func (s *Service) resolveVersion(actor identity.Identity, versionID string) (*versionContext, error) {
	version, err := s.store.GetVersion(versionID)
	if err != nil {
		return nil, s.internal("load version", err)
	}
	if version == nil {
		return nil, errNotFound("Baseline version not found")
	}
	portfolio, access, err := s.resolvePortfolio(actor, version.PortfolioID)
	if err != nil {
		// Cross-company version ids resolve the same as missing ones.
		if KindOf(err) == KindNotFound {
			return nil, errNotFound("Baseline version not found")
		}
		return nil, err
	}
	return &versionContext{version: version, portfolio: portfolio, access: access}, nil
}

func companyRole(actor identity.Identity) CompanyRole {
	return CompanyRole(actor.CompanyRole)
}

// CreateDraft creates a new DRAFT version for a portfolio, optionally cloning
// module payloads from an existing version of the same portfolio. Company
// admins only. Fails with Conflict while the portfolio already has a draft.
func (s *Service) CreateDraft(ctx context.Context, actor identity.Identity, portfolioID string, req CreateDraftRequest) (*VersionResponse, error) {
	_, access, err := s.resolvePortfolio(actor, portfolioID)
	if err != nil {
		return nil, err
	}

	if !CanPerform(companyRole(actor), access, ActionCreateDraft, StatusDraft) {
		return nil, errForbidden(RequiredRoleMessage(ActionCreateDraft))
	}

	// Resolve the copy source before creating anything.
	var sourceModules map[ModuleType]JSONAny
	var parentID *string
	if req.CopyFromVersionID != "" {
		source, err := s.store.GetVersion(req.CopyFromVersionID)
		if err != nil {
			return nil, s.internal("load source version", err)
		}
		if source == nil || source.PortfolioID != portfolioID {
			return nil, errValidation("Source version not found")
		}
		mods, err := s.store.GetModules(source.ID)
		if err != nil {
			return nil, s.internal("load source modules", err)
		}
		sourceModules = make(map[ModuleType]JSONAny, len(mods))
		for _, m := range mods {
			sourceModules[m.ModuleType] = m.Payload
		}
		id := source.ID
		parentID = &id
	}

	version := &BaselineVersionRecord{
		ID:              uuid.New().String(),
		PortfolioID:     portfolioID,
		ParentVersionID: parentID,
		ChangeSummary:   req.ChangeSummary,
		CreatedBy:       actor.UserID,
	}

	// Every fixed module type is instantiated, copied or empty.
	modules := make([]ModuleRecord, 0, len(ModuleTypes))
	for _, mt := range ModuleTypes {
		payload := deepCopyPayload(sourceModules[mt])
		result := s.validator.Validate(mt, payload)
		modules = append(modules, ModuleRecord{
			ID:         uuid.New().String(),
			ModuleType: mt,
			Payload:    payload,
			IsComplete: result.IsComplete,
			IsValid:    result.IsValid,
			Errors:     JSONStringSlice(result.Errors),
		})
	}

	if err := s.store.CreateDraftVersion(version, modules); err != nil {
		if errors.Is(err, ErrDraftExists) {
			existing, lookupErr := s.store.GetDraft(portfolioID)
			existingID := ""
			if lookupErr == nil && existing != nil {
				existingID = existing.ID
			}
			return nil, errConflict("A draft baseline already exists for this portfolio", existingID)
		}
		return nil, s.internal("create draft", err)
	}

	s.appendAudit(actor, audit.EventDraftCreated, string(ActionCreateDraft), audit.OutcomeSuccess, "", version, nil, audit.JSONAny{
		"versionNumber": version.VersionNumber,
	})

	return s.respond(actor, version, access, modules)
}

// EditModule replaces one module's payload on a DRAFT or REJECTED version and
// recomputes its validation flags.
func (s *Service) EditModule(ctx context.Context, actor identity.Identity, versionID string, moduleType ModuleType, payload map[string]any) (*Module, error) {
	vc, err := s.resolveVersion(actor, versionID)
	if err != nil {
		return nil, err
	}

	if !KnownModuleType(moduleType) {
		return nil, errValidation("Unknown module type: " + string(moduleType))
	}
	if err := s.machine.ValidateEdit(vc.version.Status); err != nil {
		return nil, err
	}
	if !CanPerform(companyRole(actor), vc.access, ActionEditModules, vc.version.Status) {
		return nil, errForbidden(RequiredRoleMessage(ActionEditModules))
	}

	result := s.validator.Validate(moduleType, payload)
	if err := s.store.UpdateModule(versionID, moduleType, JSONAny(payload), result); err != nil {
		return nil, s.internal("update module", err)
	}

	s.appendAudit(actor, audit.EventModuleEdited, string(ActionEditModules), audit.OutcomeSuccess, "", vc.version, nil, audit.JSONAny{
		"moduleType": string(moduleType),
		"isComplete": result.IsComplete,
		"isValid":    result.IsValid,
	})

	return &Module{
		Type:       moduleType,
		Payload:    payload,
		IsComplete: result.IsComplete,
		IsValid:    result.IsValid,
		Errors:     result.Errors,
	}, nil
}

// Submit moves a DRAFT or REJECTED version to PENDING_APPROVAL. Any module
// with IsValid=false blocks submission; incomplete-but-valid modules do not.
// Resubmitting a REJECTED version clears its rejection fields in the same
// update.
func (s *Service) Submit(ctx context.Context, actor identity.Identity, versionID, changeSummary string) (*VersionResponse, error) {
	vc, err := s.resolveVersion(actor, versionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.machine.Transition(vc.version.Status, ActionSubmit); err != nil {
		return nil, err
	}
	if !CanPerform(companyRole(actor), vc.access, ActionSubmit, vc.version.Status) {
		return nil, errForbidden(RequiredRoleMessage(ActionSubmit))
	}

	modules, err := s.store.GetModules(versionID)
	if err != nil {
		return nil, s.internal("load modules", err)
	}
	if check := CheckSubmit(modules); !check.CanPublish {
		werr := errValidation("Baseline has invalid modules that block submission")
		werr.Blockers = check.Blockers
		return nil, werr
	}

	if err := s.store.MarkSubmitted(versionID, actor.UserID, changeSummary); err != nil {
		return nil, s.translateStale(err, ActionSubmit, versionID, "mark submitted")
	}

	s.appendAudit(actor, audit.EventSubmitted, string(ActionSubmit), audit.OutcomeSuccess, changeSummary, vc.version,
		audit.JSONAny{"status": string(vc.version.Status)},
		audit.JSONAny{"status": string(StatusPendingApproval)},
	)

	return s.reload(actor, versionID, vc.access)
}

// Approve publishes a PENDING_APPROVAL version. In one transaction the
// version becomes PUBLISHED, the portfolio's previously active version is
// archived, and the portfolio is repointed. Concurrent approvals of the same
// version resolve to exactly one winner.
func (s *Service) Approve(ctx context.Context, actor identity.Identity, versionID string) (*VersionResponse, error) {
	vc, err := s.resolveVersion(actor, versionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.machine.Transition(vc.version.Status, ActionApprove); err != nil {
		return nil, err
	}
	if !CanPerform(companyRole(actor), vc.access, ActionApprove, vc.version.Status) {
		return nil, errForbidden(RequiredRoleMessage(ActionApprove))
	}

	previousID := vc.portfolio.ActiveBaselineVersionID

	if err := s.store.PublishAndArchive(versionID, vc.portfolio.ID, actor.UserID); err != nil {
		return nil, s.translateStale(err, ActionApprove, versionID, "publish and archive")
	}

	s.appendAudit(actor, audit.EventApproved, string(ActionApprove), audit.OutcomeSuccess, "", vc.version,
		audit.JSONAny{"status": string(StatusPendingApproval)},
		audit.JSONAny{"status": string(StatusPublished)},
	)
	if previousID != nil && *previousID != versionID {
		archived := *vc.version
		archived.ID = *previousID
		s.appendAudit(actor, audit.EventArchived, string(ActionApprove), audit.OutcomeSuccess, "superseded", &archived,
			audit.JSONAny{"status": string(StatusPublished)},
			audit.JSONAny{"status": string(StatusArchived)},
		)
	}

	return s.reload(actor, versionID, vc.access)
}

// Reject moves a PENDING_APPROVAL version to REJECTED. A non-blank rejection
// reason is mandatory. Submission fields stay intact as the record of who
// submitted what was rejected.
func (s *Service) Reject(ctx context.Context, actor identity.Identity, versionID, reason string) (*VersionResponse, error) {
	vc, err := s.resolveVersion(actor, versionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.machine.Transition(vc.version.Status, ActionReject); err != nil {
		return nil, err
	}
	if !CanPerform(companyRole(actor), vc.access, ActionReject, vc.version.Status) {
		return nil, errForbidden(RequiredRoleMessage(ActionReject))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errValidation("Rejection reason is required")
	}

	if err := s.store.MarkRejected(versionID, actor.UserID, reason); err != nil {
		return nil, s.translateStale(err, ActionReject, versionID, "mark rejected")
	}

	s.appendAudit(actor, audit.EventRejected, string(ActionReject), audit.OutcomeSuccess, reason, vc.version,
		audit.JSONAny{"status": string(StatusPendingApproval)},
		audit.JSONAny{"status": string(StatusRejected)},
	)

	return s.reload(actor, versionID, vc.access)
}

// GetVersion returns a version with its modules and the caller's permission
// flags. Callers must be a member of the owning portfolio or a company admin.
func (s *Service) GetVersion(ctx context.Context, actor identity.Identity, versionID string) (*VersionResponse, error) {
	vc, err := s.resolveVersion(actor, versionID)
	if err != nil {
		return nil, err
	}
	if vc.access == nil && !IsCompanyAdmin(companyRole(actor)) {
		return nil, errForbidden("You do not have access to this portfolio")
	}
	modules, err := s.store.GetModules(versionID)
	if err != nil {
		return nil, s.internal("load modules", err)
	}
	return s.respond(actor, vc.version, vc.access, modules)
}

// ListVersions returns a page of a portfolio's versions, newest first.
func (s *Service) ListVersions(ctx context.Context, actor identity.Identity, portfolioID string, pageSize, pageToken int) (*VersionList, error) {
	_, access, err := s.resolvePortfolio(actor, portfolioID)
	if err != nil {
		return nil, err
	}
	if access == nil && !IsCompanyAdmin(companyRole(actor)) {
		return nil, errForbidden("You do not have access to this portfolio")
	}

	records, nextToken, total, err := s.store.ListVersions(portfolioID, pageSize, pageToken)
	if err != nil {
		return nil, s.internal("list versions", err)
	}

	list := &VersionList{TotalSize: total}
	if nextToken > 0 {
		list.NextPageToken = strconv.Itoa(nextToken)
	}
	for i := range records {
		list.Versions = append(list.Versions, recordToVersion(&records[i], nil))
	}
	return list, nil
}

// reload re-reads a version after a successful transition and builds the response.
func (s *Service) reload(actor identity.Identity, versionID string, access *AccessLevel) (*VersionResponse, error) {
	version, err := s.store.GetVersion(versionID)
	if err != nil || version == nil {
		return nil, s.internal("reload version", err)
	}
	modules, err := s.store.GetModules(versionID)
	if err != nil {
		return nil, s.internal("load modules", err)
	}
	return s.respond(actor, version, access, modules)
}

// respond builds a VersionResponse with the caller's permission flags.
func (s *Service) respond(actor identity.Identity, version *BaselineVersionRecord, access *AccessLevel, modules []ModuleRecord) (*VersionResponse, error) {
	return &VersionResponse{
		Version:     recordToVersion(version, modules),
		Permissions: Flags(companyRole(actor), access, version.Status),
	}, nil
}

// translateStale maps a lost conditional update onto an InvalidTransition
// error computed from the fresh row. Anything else is internal.
func (s *Service) translateStale(err error, action Action, versionID, op string) error {
	if !errors.Is(err, ErrStaleStatus) {
		return s.internal(op, err)
	}
	current, lookupErr := s.store.GetVersion(versionID)
	if lookupErr != nil || current == nil {
		return s.internal(op, err)
	}
	return errInvalidTransition(action, current.Status)
}

// internal logs the underlying failure and returns a generic internal error;
// storage detail never reaches the caller.
func (s *Service) internal(op string, err error) error {
	s.logger.Error("workflow storage failure", zap.String("op", op), zap.Error(err))
	return errInternal("An internal error occurred", err)
}

// appendAudit writes a best-effort audit event; failures are logged, never
// surfaced.
func (s *Service) appendAudit(actor identity.Identity, eventType, action, outcome, reason string, version *BaselineVersionRecord, oldValue, newValue audit.JSONAny) {
	if s.audit == nil {
		return
	}
	err := s.audit.Append(&audit.EventRecord{
		ID:          uuid.New().String(),
		CompanyID:   actor.CompanyID,
		EventType:   eventType,
		Actor:       actor.UserID,
		PortfolioID: version.PortfolioID,
		VersionID:   version.ID,
		Action:      action,
		Outcome:     outcome,
		Reason:      reason,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
	if err != nil {
		s.logger.Warn("audit append failed", zap.String("eventType", eventType), zap.Error(err))
	}
}

// deepCopyPayload clones a module payload through JSON so draft copies never
// alias the source version's data.
func deepCopyPayload(src JSONAny) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	data, err := json.Marshal(src)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
