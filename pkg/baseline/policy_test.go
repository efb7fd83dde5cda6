package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func access(level AccessLevel) *AccessLevel { return &level }

func TestCanPerform_RoleMatrix(t *testing.T) {
	tests := []struct {
		name   string
		role   CompanyRole
		access *AccessLevel
		action Action
		status Status
		want   bool
	}{
		// Maker/checker split on a portfolio.
		{"maker submits draft", RoleMember, access(AccessMaker), ActionSubmit, StatusDraft, true},
		{"maker resubmits rejected", RoleMember, access(AccessMaker), ActionSubmit, StatusRejected, true},
		{"maker edits draft", RoleMember, access(AccessMaker), ActionEditModules, StatusDraft, true},
		{"checker cannot submit draft", RoleMember, access(AccessChecker), ActionSubmit, StatusDraft, false},
		{"checker approves pending", RoleMember, access(AccessChecker), ActionApprove, StatusPendingApproval, true},
		{"checker rejects pending", RoleMember, access(AccessChecker), ActionReject, StatusPendingApproval, true},
		{"maker cannot approve pending", RoleMember, access(AccessMaker), ActionApprove, StatusPendingApproval, false},
		{"maker cannot reject pending", RoleMember, access(AccessMaker), ActionReject, StatusPendingApproval, false},

		// Company admins bypass membership entirely.
		{"owner submits without membership", RoleOwner, nil, ActionSubmit, StatusDraft, true},
		{"owner approves without membership", RoleOwner, nil, ActionApprove, StatusPendingApproval, true},
		{"org admin rejects without membership", RoleOrgAdmin, nil, ActionReject, StatusPendingApproval, true},
		{"org admin creates draft", RoleOrgAdmin, nil, ActionCreateDraft, StatusDraft, true},
		{"owner creates draft over viewer access", RoleOwner, access(AccessViewer), ActionCreateDraft, StatusDraft, true},

		// Create draft is admin-only regardless of access level.
		{"maker cannot create draft", RoleMember, access(AccessMaker), ActionCreateDraft, StatusDraft, false},
		{"checker cannot create draft", RoleMember, access(AccessChecker), ActionCreateDraft, StatusDraft, false},

		// Viewer and no membership never mutate.
		{"viewer cannot submit", RoleMember, access(AccessViewer), ActionSubmit, StatusDraft, false},
		{"viewer cannot approve", RoleMember, access(AccessViewer), ActionApprove, StatusPendingApproval, false},
		{"viewer cannot edit", RoleMember, access(AccessViewer), ActionEditModules, StatusDraft, false},
		{"no membership cannot submit", RoleMember, nil, ActionSubmit, StatusDraft, false},
		{"no membership cannot approve", RoleMember, nil, ActionApprove, StatusPendingApproval, false},

		// Status gates apply to everyone, admins included.
		{"owner cannot approve a draft", RoleOwner, nil, ActionApprove, StatusDraft, false},
		{"owner cannot submit published", RoleOwner, nil, ActionSubmit, StatusPublished, false},
		{"maker cannot edit published", RoleMember, access(AccessMaker), ActionEditModules, StatusPublished, false},
		{"maker cannot edit pending", RoleMember, access(AccessMaker), ActionEditModules, StatusPendingApproval, false},
		{"checker cannot reject archived", RoleMember, access(AccessChecker), ActionReject, StatusArchived, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanPerform(tt.role, tt.access, tt.action, tt.status)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlags(t *testing.T) {
	// Maker on a draft: edit and submit, no approve/reject.
	flags := Flags(RoleMember, access(AccessMaker), StatusDraft)
	assert.True(t, flags.CanEdit)
	assert.True(t, flags.CanSubmit)
	assert.False(t, flags.CanApprove)
	assert.False(t, flags.CanReject)

	// Checker on a pending version: approve and reject only.
	flags = Flags(RoleMember, access(AccessChecker), StatusPendingApproval)
	assert.False(t, flags.CanEdit)
	assert.False(t, flags.CanSubmit)
	assert.True(t, flags.CanApprove)
	assert.True(t, flags.CanReject)

	// Admin on a pending version: the status still gates edit/submit.
	flags = Flags(RoleOwner, nil, StatusPendingApproval)
	assert.False(t, flags.CanEdit)
	assert.False(t, flags.CanSubmit)
	assert.True(t, flags.CanApprove)
	assert.True(t, flags.CanReject)

	// Published versions are immutable for everyone.
	flags = Flags(RoleOwner, nil, StatusPublished)
	assert.Equal(t, PermissionFlags{}, flags)
}

func TestIsCompanyAdmin(t *testing.T) {
	assert.True(t, IsCompanyAdmin(RoleOwner))
	assert.True(t, IsCompanyAdmin(RoleOrgAdmin))
	assert.False(t, IsCompanyAdmin(RoleMember))
	assert.False(t, IsCompanyAdmin(CompanyRole("")))
}

func TestRequiredRoleMessage(t *testing.T) {
	assert.Equal(t, "Only administrators or checkers can approve baselines", RequiredRoleMessage(ActionApprove))
	assert.Equal(t, "Only administrators can create baseline drafts", RequiredRoleMessage(ActionCreateDraft))
}
