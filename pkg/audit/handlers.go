package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ListEntriesHandler handles GET /events
// Query params: actor, action, table, recordId, pageSize, pageToken
func ListEntriesHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Actor:    q.Get("actor"),
			Action:   q.Get("action"),
			Table:    q.Get("table"),
			RecordID: q.Get("recordId"),
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		entries, next, total, err := store.List(r.Context(), filter, pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit entries: %v", err))
			return
		}

		events := make([]entryResponse, len(entries))
		for i, e := range entries {
			events[i] = entryToResponse(e)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": next,
			"totalSize":     total,
		})
	}
}

// GetEntryHandler handles GET /events/{eventId}
func GetEntryHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventId")
		if eventID == "" {
			writeError(w, http.StatusBadRequest, "missing event ID")
			return
		}

		e, err := store.Get(r.Context(), eventID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get audit entry: %v", err))
			return
		}
		if e == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("audit entry %q not found", eventID))
			return
		}

		writeJSON(w, http.StatusOK, entryToResponse(*e))
	}
}

type entryResponse struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Table     string         `json:"table,omitempty"`
	RecordID  string         `json:"recordId,omitempty"`
	Outcome   string         `json:"outcome"`
	RequestID string         `json:"requestId,omitempty"`
	OldValues map[string]any `json:"oldValues,omitempty"`
	NewValues map[string]any `json:"newValues,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

func entryToResponse(e Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Actor:     e.Actor,
		Action:    e.Action,
		Table:     e.Table,
		RecordID:  e.RecordID,
		Outcome:   e.Outcome,
		RequestID: e.RequestID,
		OldValues: map[string]any(e.OldValues),
		NewValues: map[string]any(e.NewValues),
		Metadata:  map[string]any(e.Metadata),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
