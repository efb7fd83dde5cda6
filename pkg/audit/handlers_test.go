package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/baseline-registry/pkg/identity"
)

func doList(t *testing.T, store *Store, actor *identity.Identity, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if actor != nil {
		req = req.WithContext(identity.WithIdentity(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	NewRouter(store).ServeHTTP(rec, req)
	return rec
}

func TestListEventsHandlers(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		seedEvent(t, store, "ver-1", "port-1", base.Add(time.Duration(i)*time.Minute))
	}

	member := identity.Identity{UserID: "user-1", CompanyID: "acme", CompanyRole: identity.RoleMember}

	t.Run("by version", func(t *testing.T) {
		rec := doList(t, store, &member, "/versions/ver-1/events")

		require.Equal(t, http.StatusOK, rec.Code)
		var list EventList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, 3, list.TotalSize)
		require.Len(t, list.Events, 3)
		assert.Equal(t, EventSubmitted, list.Events[0].EventType)
		assert.Equal(t, OutcomeSuccess, list.Events[0].Outcome)
	})

	t.Run("by portfolio with page size", func(t *testing.T) {
		rec := doList(t, store, &member, "/portfolios/port-1/events?pageSize=2")

		require.Equal(t, http.StatusOK, rec.Code)
		var list EventList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, 3, list.TotalSize)
		assert.Len(t, list.Events, 2)
		assert.NotEmpty(t, list.NextPageToken)
	})

	t.Run("unknown id is empty, not an error", func(t *testing.T) {
		rec := doList(t, store, &member, "/versions/absent/events")

		require.Equal(t, http.StatusOK, rec.Code)
		var list EventList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Zero(t, list.TotalSize)
	})

	t.Run("another company's ids read as empty", func(t *testing.T) {
		outsider := identity.Identity{UserID: "spy", CompanyID: "globex", CompanyRole: identity.RoleOwner}

		for _, path := range []string{"/versions/ver-1/events", "/portfolios/port-1/events"} {
			rec := doList(t, store, &outsider, path)

			require.Equal(t, http.StatusOK, rec.Code, path)
			var list EventList
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
			assert.Zero(t, list.TotalSize, path)
			assert.Empty(t, list.Events, path)
		}
	})

	t.Run("missing identity is 401", func(t *testing.T) {
		rec := doList(t, store, nil, "/versions/ver-1/events")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
