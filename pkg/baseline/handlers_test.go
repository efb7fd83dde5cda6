package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/baseline-registry/pkg/identity"
)

// do runs one request through the router with the given actor's identity
// attached, mirroring what the identity middleware does in production.
func (f *serviceFixture) do(t *testing.T, actor *identity.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req = req.WithContext(identity.WithIdentity(req.Context(), *actor))
	}

	rec := httptest.NewRecorder()
	NewRouter(f.svc).ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlers_WorkflowRoundTrip(t *testing.T) {
	f := newServiceFixture(t)

	rec := f.do(t, &f.admin, http.MethodPost, "/portfolios/"+f.portfolio.ID+"/versions",
		CreateDraftRequest{ChangeSummary: "first baseline"})
	require.Equal(t, http.StatusCreated, rec.Code)
	draft := decodeResponse[VersionResponse](t, rec)
	assert.Equal(t, StatusDraft, draft.Version.Status)
	assert.Equal(t, 1, draft.Version.VersionNumber)

	for mt, payload := range map[ModuleType]map[string]any{
		ModuleInvestmentThesis: {"objective": "growth", "horizonYears": 10},
		ModuleRiskManagement:   {"riskAppetite": "moderate", "maxDrawdownPct": 12},
		ModuleConstraints:      {"allowedAssetClasses": []string{"equity"}},
		ModuleGovernance:       {"reviewCadence": "quarterly"},
		ModuleReporting:        {"frequency": "monthly"},
	} {
		rec = f.do(t, &f.maker, http.MethodPut,
			"/versions/"+draft.Version.ID+"/modules/"+string(mt),
			EditModuleRequest{Payload: payload})
		require.Equal(t, http.StatusOK, rec.Code, string(mt))
		mod := decodeResponse[Module](t, rec)
		assert.True(t, mod.IsValid)
	}

	rec = f.do(t, &f.maker, http.MethodPost, "/versions/"+draft.Version.ID+"/submit",
		SubmitRequest{ChangeSummary: "ready for review"})
	require.Equal(t, http.StatusOK, rec.Code)
	submitted := decodeResponse[VersionResponse](t, rec)
	assert.Equal(t, StatusPendingApproval, submitted.Version.Status)

	rec = f.do(t, &f.checker, http.MethodGet, "/approvals/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeResponse[ApprovalItemList](t, rec)
	require.Equal(t, 1, pending.TotalSize)
	assert.Equal(t, "Baseline v1", pending.Items[0].Title)

	rec = f.do(t, &f.checker, http.MethodPost, "/versions/"+draft.Version.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	published := decodeResponse[VersionResponse](t, rec)
	assert.Equal(t, StatusPublished, published.Version.Status)

	rec = f.do(t, &f.viewer, http.MethodGet, "/versions/"+draft.Version.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeResponse[VersionResponse](t, rec)
	assert.Equal(t, StatusPublished, got.Version.Status)
	assert.Equal(t, PermissionFlags{}, got.Permissions)

	rec = f.do(t, &f.viewer, http.MethodGet, "/portfolios/"+f.portfolio.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeResponse[VersionList](t, rec)
	assert.Equal(t, 1, list.TotalSize)
}

func TestHandlers_ErrorMapping(t *testing.T) {
	f := newServiceFixture(t)

	t.Run("missing identity is 401", func(t *testing.T) {
		rec := f.do(t, nil, http.MethodGet, "/approvals/pending", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeResponse[errorResponse](t, rec)
		assert.Equal(t, KindUnauthorized, body.Error)
	})

	t.Run("forbidden is 403", func(t *testing.T) {
		rec := f.do(t, &f.maker, http.MethodPost, "/portfolios/"+f.portfolio.ID+"/versions", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decodeResponse[errorResponse](t, rec)
		assert.Equal(t, KindForbidden, body.Error)
		assert.Equal(t, "Only administrators can create baseline drafts", body.Message)
	})

	t.Run("unknown version is 404", func(t *testing.T) {
		rec := f.do(t, &f.maker, http.MethodGet, "/versions/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("duplicate draft is 409 with existing id", func(t *testing.T) {
		first := f.do(t, &f.admin, http.MethodPost, "/portfolios/"+f.portfolio.ID+"/versions", nil)
		require.Equal(t, http.StatusCreated, first.Code)
		created := decodeResponse[VersionResponse](t, first)

		rec := f.do(t, &f.admin, http.MethodPost, "/portfolios/"+f.portfolio.ID+"/versions", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeResponse[errorResponse](t, rec)
		assert.Equal(t, KindConflict, body.Error)
		assert.Equal(t, created.Version.ID, body.ExistingDraftID)
	})

	t.Run("invalid transition is 409", func(t *testing.T) {
		rec := f.do(t, &f.checker, http.MethodPost, "/versions/"+mustDraftID(t, f)+"/approve", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		body := decodeResponse[errorResponse](t, rec)
		assert.Equal(t, KindInvalidTransition, body.Error)
		assert.Equal(t, "Cannot approve a DRAFT baseline", body.Message)
	})

	t.Run("blank rejection reason is 400", func(t *testing.T) {
		id := mustDraftID(t, f)
		rec := f.do(t, &f.admin, http.MethodPost, "/versions/"+id+"/submit", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, &f.checker, http.MethodPost, "/versions/"+id+"/reject",
			RejectRequest{RejectionReason: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeResponse[errorResponse](t, rec)
		assert.Equal(t, KindValidation, body.Error)
		assert.Equal(t, "Rejection reason is required", body.Message)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/portfolios/"+f.portfolio.ID+"/versions",
			bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(identity.WithIdentity(req.Context(), f.admin))
		rec := httptest.NewRecorder()
		NewRouter(f.svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// mustDraftID returns the portfolio's current draft id, creating one if needed.
func mustDraftID(t *testing.T, f *serviceFixture) string {
	t.Helper()
	draft, err := f.store.GetDraft(f.portfolio.ID)
	require.NoError(t, err)
	if draft != nil {
		return draft.ID
	}
	resp, err := f.svc.CreateDraft(context.Background(), f.admin, f.portfolio.ID, CreateDraftRequest{})
	require.NoError(t, err)
	return resp.Version.ID
}
