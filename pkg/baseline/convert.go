package baseline

import (
	"time"
)

// recordToVersion converts a stored version (and optionally its modules) to
// the API-facing type.
func recordToVersion(rec *BaselineVersionRecord, modules []ModuleRecord) Version {
	v := Version{
		ID:            rec.ID,
		PortfolioID:   rec.PortfolioID,
		VersionNumber: rec.VersionNumber,
		Status:        rec.Status,
		ChangeSummary: rec.ChangeSummary,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		CreatedBy:     rec.CreatedBy,
		SubmittedAt:   formatTime(rec.SubmittedAt),
		SubmittedBy:   deref(rec.SubmittedBy),
		ApprovedAt:    formatTime(rec.ApprovedAt),
		ApprovedBy:    deref(rec.ApprovedBy),
		RejectedAt:    formatTime(rec.RejectedAt),
		RejectedBy:    deref(rec.RejectedBy),
		PublishedAt:   formatTime(rec.PublishedAt),
		PublishedBy:   deref(rec.PublishedBy),
	}
	if rec.ParentVersionID != nil {
		v.ParentVersionID = *rec.ParentVersionID
	}
	if rec.RejectionReason != nil {
		v.RejectionReason = *rec.RejectionReason
	}
	for _, m := range modules {
		v.Modules = append(v.Modules, Module{
			Type:       m.ModuleType,
			Payload:    m.Payload,
			IsComplete: m.IsComplete,
			IsValid:    m.IsValid,
			Errors:     m.Errors,
		})
	}
	return v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
