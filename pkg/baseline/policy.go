package baseline

import "fmt"

// IsCompanyAdmin reports whether the company role bypasses portfolio-level
// membership checks entirely.
func IsCompanyAdmin(role CompanyRole) bool {
	return role == RoleOwner || role == RoleOrgAdmin
}

// CanPerform is the single access predicate consumed by every mutating
// operation. access is nil when the actor holds no membership on the
// portfolio. It never fails; callers surface Forbidden when it returns false.
//
// Company admins (OWNER, ORG_ADMIN) are authorized for every action
// regardless of access level. Otherwise:
//
//	create draft    company admin only
//	edit modules    MAKER, status DRAFT or REJECTED
//	submit          MAKER, status DRAFT or REJECTED
//	approve         CHECKER, status PENDING_APPROVAL
//	reject          CHECKER, status PENDING_APPROVAL
//
// VIEWER and absent membership yield false for all mutating actions.
func CanPerform(role CompanyRole, access *AccessLevel, action Action, status Status) bool {
	if !statusAllows(action, status) {
		return false
	}
	if IsCompanyAdmin(role) {
		return true
	}
	if access == nil {
		return false
	}
	switch action {
	case ActionCreateDraft:
		return false
	case ActionEditModules, ActionSubmit:
		return *access == AccessMaker
	case ActionApprove, ActionReject:
		return *access == AccessChecker
	default:
		return false
	}
}

// statusAllows checks the status gate of the policy table. Create-draft has
// no status gate (the draft-exists conflict is enforced at the storage layer).
func statusAllows(action Action, status Status) bool {
	switch action {
	case ActionCreateDraft:
		return true
	case ActionEditModules, ActionSubmit:
		return status == StatusDraft || status == StatusRejected
	case ActionApprove, ActionReject:
		return status == StatusPendingApproval
	default:
		return false
	}
}

// Flags computes the permission flags for a caller against a version in its
// current status.
func Flags(role CompanyRole, access *AccessLevel, status Status) PermissionFlags {
	return PermissionFlags{
		CanEdit:    CanPerform(role, access, ActionEditModules, status),
		CanSubmit:  CanPerform(role, access, ActionSubmit, status),
		CanApprove: CanPerform(role, access, ActionApprove, status),
		CanReject:  CanPerform(role, access, ActionReject, status),
	}
}

// RequiredRoleMessage names the role(s) an action requires, for Forbidden errors.
func RequiredRoleMessage(action Action) string {
	switch action {
	case ActionCreateDraft:
		return "Only administrators can create baseline drafts"
	case ActionEditModules:
		return "Only administrators or makers can edit baseline modules"
	case ActionSubmit:
		return "Only administrators or makers can submit baselines"
	case ActionApprove:
		return "Only administrators or checkers can approve baselines"
	case ActionReject:
		return "Only administrators or checkers can reject baselines"
	default:
		return fmt.Sprintf("Action %q is not permitted", action)
	}
}
