// Package baseline implements the maker-checker approval workflow for
// versioned baseline configuration documents attached to portfolios.
package baseline

// Status represents baseline version lifecycle states.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusPublished       Status = "PUBLISHED"
	StatusRejected        Status = "REJECTED"
	StatusArchived        Status = "ARCHIVED"
)

// Action represents a workflow action on a baseline version.
type Action string

const (
	ActionCreateDraft Action = "create draft"
	ActionEditModules Action = "edit"
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
)

// CompanyRole represents a user's company-wide role.
type CompanyRole string

const (
	RoleOwner    CompanyRole = "OWNER"
	RoleOrgAdmin CompanyRole = "ORG_ADMIN"
	RoleMember   CompanyRole = "MEMBER"
)

// AccessLevel represents a user's portfolio-scoped access level.
type AccessLevel string

const (
	AccessMaker   AccessLevel = "MAKER"
	AccessChecker AccessLevel = "CHECKER"
	AccessViewer  AccessLevel = "VIEWER"
)

// ModuleType identifies one of the fixed module sections composing a version.
type ModuleType string

const (
	ModuleInvestmentThesis ModuleType = "INVESTMENT_THESIS"
	ModuleRiskManagement   ModuleType = "RISK_MANAGEMENT"
	ModuleConstraints      ModuleType = "CONSTRAINTS"
	ModuleGovernance       ModuleType = "GOVERNANCE"
	ModuleReporting        ModuleType = "REPORTING"
)

// ModuleTypes lists every fixed module type. Every new version gets exactly
// one module instance per type.
var ModuleTypes = []ModuleType{
	ModuleInvestmentThesis,
	ModuleRiskManagement,
	ModuleConstraints,
	ModuleGovernance,
	ModuleReporting,
}

// KnownModuleType reports whether t is one of the fixed module types.
func KnownModuleType(t ModuleType) bool {
	for _, mt := range ModuleTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// Module is the API-facing module section of a baseline version.
type Module struct {
	Type       ModuleType     `json:"type"`
	Payload    map[string]any `json:"payload"`
	IsComplete bool           `json:"isComplete"`
	IsValid    bool           `json:"isValid"`
	Errors     []string       `json:"errors,omitempty"`
}

// Version is the API-facing baseline version.
type Version struct {
	ID              string   `json:"id"`
	PortfolioID     string   `json:"portfolioId"`
	VersionNumber   int      `json:"versionNumber"`
	Status          Status   `json:"status"`
	ParentVersionID string   `json:"parentVersionId,omitempty"`
	ChangeSummary   string   `json:"changeSummary,omitempty"`
	Modules         []Module `json:"modules,omitempty"`
	CreatedAt       string   `json:"createdAt"`
	CreatedBy       string   `json:"createdBy"`
	SubmittedAt     string   `json:"submittedAt,omitempty"`
	SubmittedBy     string   `json:"submittedBy,omitempty"`
	ApprovedAt      string   `json:"approvedAt,omitempty"`
	ApprovedBy      string   `json:"approvedBy,omitempty"`
	RejectedAt      string   `json:"rejectedAt,omitempty"`
	RejectedBy      string   `json:"rejectedBy,omitempty"`
	RejectionReason string   `json:"rejectionReason,omitempty"`
	PublishedAt     string   `json:"publishedAt,omitempty"`
	PublishedBy     string   `json:"publishedBy,omitempty"`
}

// PermissionFlags reports which workflow actions the caller may perform on a
// version in its current status.
type PermissionFlags struct {
	CanEdit    bool `json:"canEdit"`
	CanSubmit  bool `json:"canSubmit"`
	CanApprove bool `json:"canApprove"`
	CanReject  bool `json:"canReject"`
}

// VersionResponse is the API response for GET version.
type VersionResponse struct {
	Version     Version         `json:"version"`
	Permissions PermissionFlags `json:"permissions"`
}

// VersionList is a paginated list of baseline versions.
type VersionList struct {
	Versions      []Version `json:"versions"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
	TotalSize     int       `json:"totalSize"`
}

// ApprovalItem is one entry in the pending-approvals list.
type ApprovalItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	PortfolioID   string `json:"portfolioId"`
	PortfolioName string `json:"portfolioName"`
	VersionNumber int    `json:"versionNumber"`
	SubmittedAt   string `json:"submittedAt,omitempty"`
	SubmittedBy   string `json:"submittedBy"`
}

// ApprovalItemList is the pending-approvals query response.
type ApprovalItemList struct {
	Items     []ApprovalItem `json:"items"`
	TotalSize int            `json:"totalSize"`
}

// CreateDraftRequest is the request body for creating a draft version.
type CreateDraftRequest struct {
	ChangeSummary     string `json:"changeSummary,omitempty"`
	CopyFromVersionID string `json:"copyFromVersionId,omitempty"`
}

// EditModuleRequest is the request body for editing a module payload.
type EditModuleRequest struct {
	Payload map[string]any `json:"payload"`
}

// SubmitRequest is the request body for submitting a version for approval.
type SubmitRequest struct {
	ChangeSummary string `json:"changeSummary,omitempty"`
}

// RejectRequest is the request body for rejecting a submitted version.
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason"`
}
