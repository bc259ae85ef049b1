package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avenlon/sitepulse/config"
	"github.com/avenlon/sitepulse/content"
	sitetest "github.com/avenlon/sitepulse/internal/testing"
	"github.com/avenlon/sitepulse/scan"
)

// testServer wires a server over a real in-memory database. Ticks never fire
// on their own; tests drive the engine through the returned Engine directly.
func newTestServer(t *testing.T) (*Server, *scan.Engine, *content.Store) {
	t.Helper()

	dbConn := sitetest.CreateTestDB(t)
	contentStore := content.NewStore(dbConn)
	logger := zap.NewNop().Sugar()
	engine := scan.NewEngine(scan.NewStore(dbConn), contentStore, scan.NopScheduler{},
		config.ScanConfig{BatchSize: 25}, "https://example.test", logger)

	return NewServer(engine, logger), engine, contentStore
}

func seedPosts(t *testing.T, store *content.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.CreatePost(&content.Post{
			PostType: "post",
			Status:   content.StatusPublish,
			Title:    "Post",
			Content:  "<p>body</p>",
		})
		require.NoError(t, err)
	}
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHandleScanStartsScan(t *testing.T) {
	srv, _, store := newTestServer(t)
	seedPosts(t, store, 3)

	rec := doJSON(t, srv, http.MethodPost, "/api/scan", StartScanRequest{PostTypes: []string{"post"}})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var snap scan.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, scan.StatusPending, snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, []string{"post"}, snap.PostTypes)
}

func TestHandleScanConflictWhenRunning(t *testing.T) {
	srv, _, store := newTestServer(t)
	seedPosts(t, store, 1)

	rec := doJSON(t, srv, http.MethodPost, "/api/scan", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleScanBadPostTypes(t *testing.T) {
	srv, _, store := newTestServer(t)
	seedPosts(t, store, 1)

	rec := doJSON(t, srv, http.MethodPost, "/api/scan", StartScanRequest{PostTypes: []string{"bogus"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScanNoPosts(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleScanMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/scan", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleScanStatusLifecycle(t *testing.T) {
	srv, engine, store := newTestServer(t)
	seedPosts(t, store, 2)

	rec := doJSON(t, srv, http.MethodGet, "/api/scan/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status ScanStatusResponse
	decode(t, rec, &status)
	assert.False(t, status.Running)
	assert.Nil(t, status.Job)
	assert.Nil(t, status.LastScan)

	started, err := engine.Start(nil, scan.TriggerManual)
	require.NoError(t, err)

	rec = doJSON(t, srv, http.MethodGet, "/api/scan/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.True(t, status.Running)
	require.NotNil(t, status.Job)
	assert.Equal(t, started.JobID, status.Job.JobID)

	engine.Process(started.JobID)

	rec = doJSON(t, srv, http.MethodGet, "/api/scan/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status = ScanStatusResponse{}
	decode(t, rec, &status)
	assert.False(t, status.Running)
	require.NotNil(t, status.LastScan)
	assert.Equal(t, started.JobID, status.LastScan.ScanID)
	assert.Equal(t, scan.StatusCompleted, status.LastScan.Status)
}

func TestHandleScanDryRun(t *testing.T) {
	srv, engine, store := newTestServer(t)
	seedPosts(t, store, 4)

	rec := doJSON(t, srv, http.MethodPost, "/api/scan/dry-run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res scan.DryRunResult
	decode(t, rec, &res)
	assert.Equal(t, 4, res.Total)

	active, err := engine.Store().ActiveJob()
	require.NoError(t, err)
	assert.Nil(t, active)
}

func completeScan(t *testing.T, engine *scan.Engine) string {
	t.Helper()
	snap, err := engine.Start(nil, scan.TriggerManual)
	require.NoError(t, err)
	for {
		engine.Process(snap.JobID)
		active, err := engine.Store().ActiveJob()
		require.NoError(t, err)
		if active == nil {
			return snap.JobID
		}
	}
}

func TestHandleScanHistory(t *testing.T) {
	srv, engine, store := newTestServer(t)
	seedPosts(t, store, 1)

	rec := doJSON(t, srv, http.MethodGet, "/api/scan/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		History []scan.ScanRecord `json:"history"`
		Count   int               `json:"count"`
	}
	decode(t, rec, &listing)
	assert.Zero(t, listing.Count)
	assert.NotNil(t, listing.History)

	id := completeScan(t, engine)

	rec = doJSON(t, srv, http.MethodGet, "/api/scan/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, id, listing.History[0].ScanID)

	rec = doJSON(t, srv, http.MethodGet, "/api/scan/history?limit=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Zero(t, listing.Count)

	rec = doJSON(t, srv, http.MethodGet, "/api/scan/history?limit=oops", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScanHistoryRecord(t *testing.T) {
	srv, engine, store := newTestServer(t)
	seedPosts(t, store, 1)
	id := completeScan(t, engine)

	rec := doJSON(t, srv, http.MethodGet, "/api/scan/history/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var record scan.ScanRecord
	decode(t, rec, &record)
	assert.Equal(t, id, record.ScanID)

	rec = doJSON(t, srv, http.MethodGet, "/api/scan/history/SCN_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/scan/history/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Deleting the last-run record clears it from status too.
	var status ScanStatusResponse
	rec = doJSON(t, srv, http.MethodGet, "/api/scan/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.Nil(t, status.LastScan)

	rec = doJSON(t, srv, http.MethodDelete, "/api/scan/history/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSettings(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings scan.Settings
	decode(t, rec, &settings)
	assert.True(t, settings.AutoScanEnabled)
	assert.Equal(t, "00:00", settings.ScheduledTime)

	settings.ScheduledTime = "04:15"
	settings.ScheduledPostTypes = []string{"page"}
	rec = doJSON(t, srv, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &settings)
	assert.Equal(t, "04:15", settings.ScheduledTime)
	assert.Equal(t, []string{"page"}, settings.ScheduledPostTypes)
}

func TestHandleSettingsRejectsBadTime(t *testing.T) {
	srv, _, _ := newTestServer(t)

	settings := scan.DefaultSettings()
	settings.ScheduledTime = "25:99"
	rec := doJSON(t, srv, http.MethodPut, "/api/settings", settings)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}
