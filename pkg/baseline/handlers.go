package baseline

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quantfolio/baseline-registry/pkg/identity"
)

// errorResponse is the JSON error body. Kind goes in "error" so clients can
// branch without parsing messages.
type errorResponse struct {
	Error           ErrorKind `json:"error"`
	Message         string    `json:"message"`
	ExistingDraftID string    `json:"existingDraftId,omitempty"`
	Blockers        []Blocker `json:"blockers,omitempty"`
}

// createDraftHandler creates a new DRAFT version for a portfolio.
// POST /portfolios/{portfolioId}/versions
func createDraftHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		var req CreateDraftRequest
		if err := decodeBody(r, &req); err != nil {
			writeWorkflowError(w, err)
			return
		}
		resp, err := svc.CreateDraft(r.Context(), actor, chi.URLParam(r, "portfolioId"), req)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// listVersionsHandler lists a portfolio's versions, newest first.
// GET /portfolios/{portfolioId}/versions?pageSize=20&pageToken=...
func listVersionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		pageSize := 0
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := 0
		if pt := r.URL.Query().Get("pageToken"); pt != "" {
			if v, err := strconv.Atoi(pt); err == nil && v > 0 {
				pageToken = v
			}
		}
		list, err := svc.ListVersions(r.Context(), actor, chi.URLParam(r, "portfolioId"), pageSize, pageToken)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// getVersionHandler returns a version with modules and the caller's
// permission flags.
// GET /versions/{id}
func getVersionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		resp, err := svc.GetVersion(r.Context(), actor, chi.URLParam(r, "id"))
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// editModuleHandler replaces one module's payload.
// PUT /versions/{id}/modules/{moduleType}
func editModuleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		var req EditModuleRequest
		if err := decodeBody(r, &req); err != nil {
			writeWorkflowError(w, err)
			return
		}
		module, err := svc.EditModule(r.Context(), actor, chi.URLParam(r, "id"), ModuleType(chi.URLParam(r, "moduleType")), req.Payload)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, module)
	}
}

// submitHandler submits a version for approval.
// POST /versions/{id}/submit
func submitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		var req SubmitRequest
		if err := decodeBody(r, &req); err != nil {
			writeWorkflowError(w, err)
			return
		}
		resp, err := svc.Submit(r.Context(), actor, chi.URLParam(r, "id"), req.ChangeSummary)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// approveHandler approves and publishes a pending version.
// POST /versions/{id}/approve
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		resp, err := svc.Approve(r.Context(), actor, chi.URLParam(r, "id"))
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// rejectHandler rejects a pending version.
// POST /versions/{id}/reject
func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		var req RejectRequest
		if err := decodeBody(r, &req); err != nil {
			writeWorkflowError(w, err)
			return
		}
		resp, err := svc.Reject(r.Context(), actor, chi.URLParam(r, "id"), req.RejectionReason)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// pendingApprovalsHandler lists versions awaiting the caller's approval.
// GET /approvals/pending
func pendingApprovalsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeWorkflowError(w, errUnauthorized("no authenticated actor"))
			return
		}
		list, err := svc.ListPendingApprovals(r.Context(), actor)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// decodeBody decodes a JSON request body, tolerating an empty body.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errValidation("invalid request body")
	}
	return nil
}

// statusForKind maps the error taxonomy onto HTTP status codes.
func statusForKind(kind ErrorKind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeWorkflowError writes a taxonomy error as JSON. Unclassified errors get
// a generic body; their detail stays server-side.
func writeWorkflowError(w http.ResponseWriter, err error) {
	we := AsError(err)
	if we == nil || we.Kind == KindInternal {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   KindInternal,
			Message: "An internal error occurred",
		})
		return
	}
	writeJSON(w, statusForKind(we.Kind), errorResponse{
		Error:           we.Kind,
		Message:         we.Message,
		ExistingDraftID: we.ExistingDraftID,
		Blockers:        we.Blockers,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
