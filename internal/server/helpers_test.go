package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/internal/app"
	"github.com/chorushq/chorus/internal/store"
)

type testServer struct {
	handler http.Handler
	db      *sql.DB
}

func setupTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()

	db, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err, "failed to initialize test database")

	cfg := app.Config{Addr: ":0", CORSOrigin: "http://localhost:3000"}
	srv := New(cfg, db, zerolog.Nop())

	return &testServer{handler: srv.Handler(), db: db}, func() { _ = db.Close() }
}

// do issues a request against the engine and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (ts *testServer) createProject(t *testing.T, name string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/projects", map[string]any{"name": name}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func (ts *testServer) createTask(t *testing.T, projectID, name string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/projects/"+projectID+"/tasks",
		map[string]any{"name": name, "task_type": "feature"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func (ts *testServer) createSubtask(t *testing.T, parentID, name string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/tasks/"+parentID+"/subtasks",
		map[string]any{"name": name, "task_type": "feature"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func (ts *testServer) patchStatus(t *testing.T, taskID, status string) {
	t.Helper()

	rec := ts.do(t, http.MethodPatch, "/tasks/"+taskID+"/status",
		map[string]any{"status": status}, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func sizingBody() map[string]any {
	dim := func(score int) map[string]any {
		return map[string]any{"score": score, "reasoning": "because"}
	}
	return map[string]any{
		"scope_clarity":           dim(1),
		"decision_points":         dim(2),
		"context_window_demand":   dim(0),
		"verification_complexity": dim(1),
		"domain_specificity":      dim(1),
		"confidence":              4,
		"work_log_content":        "scored",
	}
}
