package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
)

type captureRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (c *captureRecorder) Record(_ context.Context, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func newAuditedHandler(rec Recorder, cfg *AuditConfig, status int) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return authz.IdentityMiddleware()(Middleware(rec, cfg, nil)(inner))
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	rec := &captureRecorder{}
	h := newAuditedHandler(rec, DefaultAuditConfig(), http.StatusAccepted)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications/42/detect", nil)
	req.Header.Set("X-Remote-User", "officer")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusAccepted, resp.Code)
	require.Len(t, rec.entries, 1)
	e := rec.entries[0]
	assert.Equal(t, "officer", e.Actor)
	assert.Equal(t, ActionAPIRequest, e.Action)
	assert.Equal(t, "applications", e.Table)
	assert.Equal(t, "42", e.RecordID)
	assert.Equal(t, "success", e.Outcome)
	assert.Equal(t, "detect", e.Metadata["verb"])
	assert.Equal(t, http.StatusAccepted, e.Metadata["statusCode"])
}

func TestMiddlewareSkips(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		cfg    *AuditConfig
		status int
	}{
		{"get", http.MethodGet, "/api/v1/conflicts", DefaultAuditConfig(), http.StatusOK},
		{"identity check", http.MethodPost, "/api/v1/identity-check", DefaultAuditConfig(), http.StatusOK},
		{"health", http.MethodPost, "/healthz", DefaultAuditConfig(), http.StatusOK},
		{"disabled", http.MethodPost, "/api/v1/conflicts/1/resolve", &AuditConfig{Enabled: false}, http.StatusOK},
		{"denied not logged", http.MethodPost, "/api/v1/conflicts/1/resolve", &AuditConfig{Enabled: true, LogDenied: false}, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &captureRecorder{}
			h := newAuditedHandler(rec, tc.cfg, tc.status)
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, resp.Code)
			assert.Empty(t, rec.entries)
		})
	}
}

func TestMiddlewareDeniedOutcome(t *testing.T) {
	rec := &captureRecorder{}
	h := newAuditedHandler(rec, DefaultAuditConfig(), http.StatusForbidden)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/similarity/retrain", nil))

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "denied", rec.entries[0].Outcome)
	assert.Equal(t, "anonymous", rec.entries[0].Actor)
	assert.Equal(t, "similarity_models", rec.entries[0].Table)
	assert.Empty(t, rec.entries[0].RecordID)
}

func TestHelpers(t *testing.T) {
	table, id := extractResource("/api/v1/conflicts/12/resolve")
	assert.Equal(t, "conflicts", table)
	assert.Equal(t, "12", id)

	table, id = extractResource("/api/v1/jobs/abc/cancel")
	assert.Equal(t, "detection_jobs", table)
	assert.Equal(t, "abc", id)

	assert.Equal(t, "resolve", extractActionVerb("POST", "/api/v1/conflicts/12/resolve"))
	assert.Equal(t, "delete", extractActionVerb("DELETE", "/api/v1/things/1"))
	assert.Equal(t, "get", extractActionVerb("GET", "/api/v1/things"))

	assert.Equal(t, "success", outcomeFromStatus(201))
	assert.Equal(t, "failure", outcomeFromStatus(500))
}

func TestHandlers(t *testing.T) {
	store := NewStore(setupTestDB(t))
	e := &Entry{Actor: "officer", Action: ActionConflictResolved, Table: "conflicts", RecordID: "5"}
	require.NoError(t, store.Append(context.Background(), e))

	r := chi.NewRouter()
	r.Mount("/audit", Router(store, nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/audit/events?table=conflicts", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Events    []entryResponse `json:"events"`
		TotalSize int             `json:"totalSize"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.TotalSize)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "officer", body.Events[0].Actor)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/audit/events/"+e.ID, nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/audit/events/missing", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRouterRequiresPermission(t *testing.T) {
	store := NewStore(setupTestDB(t))
	r := chi.NewRouter()
	r.Use(authz.IdentityMiddleware())
	r.Mount("/audit", Router(store, authz.NewRoleAuthorizer(nil)))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/audit/events", nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	req.Header.Set("X-Remote-Group", "auditors")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
