package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfolio/baseline-registry/pkg/identity"
)

// ListPendingApprovals lists every PENDING_APPROVAL version awaiting the
// actor's action, newest submission first. Company admins see all pending
// versions across their company's portfolios; everyone else sees only the
// portfolios where they hold CHECKER access. No access yields an empty list,
// not an error.
func (s *Service) ListPendingApprovals(ctx context.Context, actor identity.Identity) (*ApprovalItemList, error) {
	var rows []PendingRow
	var err error

	if IsCompanyAdmin(companyRole(actor)) {
		rows, err = s.store.ListPendingByCompany(actor.CompanyID)
	} else {
		var portfolioIDs []string
		portfolioIDs, err = s.store.ListCheckerPortfolioIDs(actor.UserID)
		if err == nil {
			rows, err = s.store.ListPendingByPortfolios(portfolioIDs)
		}
	}
	if err != nil {
		return nil, s.internal("list pending approvals", err)
	}

	list := &ApprovalItemList{Items: make([]ApprovalItem, 0, len(rows)), TotalSize: len(rows)}
	for i := range rows {
		list.Items = append(list.Items, pendingRowToItem(&rows[i]))
	}
	return list, nil
}

// pendingRowToItem builds one approval list entry. The submitter falls back
// to the creator when submitted_by is unset, and a missing change summary
// gets a fixed placeholder.
func pendingRowToItem(row *PendingRow) ApprovalItem {
	submittedBy := deref(row.SubmittedBy)
	if submittedBy == "" {
		submittedBy = row.CreatedBy
	}
	description := row.ChangeSummary
	if description == "" {
		description = "No description provided"
	}
	item := ApprovalItem{
		ID:            row.ID,
		Title:         fmt.Sprintf("Baseline v%d", row.VersionNumber),
		Description:   description,
		PortfolioID:   row.PortfolioID,
		PortfolioName: row.PortfolioName,
		VersionNumber: row.VersionNumber,
		SubmittedBy:   submittedBy,
	}
	if row.SubmittedAt != nil {
		item.SubmittedAt = row.SubmittedAt.Format(time.RFC3339)
	}
	return item
}
