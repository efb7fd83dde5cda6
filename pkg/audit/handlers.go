package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantfolio/baseline-registry/pkg/identity"
)

// NewRouter creates a chi router with read-only audit event routes. Queries
// are scoped to the caller's company; another tenant's ids read as empty.
func NewRouter(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/versions/{id}/events", listVersionEventsHandler(store))
	r.Get("/portfolios/{id}/events", listPortfolioEventsHandler(store))
	return r
}

// listVersionEventsHandler lists paginated audit events for a baseline version.
// GET /versions/{id}/events?pageSize=20&pageToken=...
func listVersionEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "no authenticated actor")
			return
		}
		id := chi.URLParam(r, "id")
		records, nextToken, total, err := store.ListByVersion(actor.CompanyID, id, pageSize(r), r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, toEventList(records, nextToken, total))
	}
}

// listPortfolioEventsHandler lists paginated audit events for a portfolio.
// GET /portfolios/{id}/events?pageSize=20&pageToken=...
func listPortfolioEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "no authenticated actor")
			return
		}
		id := chi.URLParam(r, "id")
		records, nextToken, total, err := store.ListByPortfolio(actor.CompanyID, id, pageSize(r), r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, toEventList(records, nextToken, total))
	}
}

func pageSize(r *http.Request) int {
	if ps := r.URL.Query().Get("pageSize"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			return v
		}
	}
	return 20
}

func toEventList(records []EventRecord, nextToken string, total int) EventList {
	events := make([]Event, len(records))
	for i, rec := range records {
		events[i] = Event{
			ID:          rec.ID,
			EventType:   rec.EventType,
			Actor:       rec.Actor,
			PortfolioID: rec.PortfolioID,
			VersionID:   rec.VersionID,
			Action:      rec.Action,
			Outcome:     rec.Outcome,
			Reason:      rec.Reason,
			OldValue:    rec.OldValue,
			NewValue:    rec.NewValue,
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
		}
	}
	return EventList{Events: events, NextPageToken: nextToken, TotalSize: total}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
