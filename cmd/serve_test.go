package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-cli/internal/model"
)

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	h := newRouter(newTestEnv(t, false))

	rr := doRequest(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestSchemaEndpoint(t *testing.T) {
	h := newRouter(newTestEnv(t, false))

	rr := doRequest(t, h, http.MethodGet, "/v1/schema", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var kpis []model.KPIDef
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&kpis))
	require.Len(t, kpis, 3)
	assert.Equal(t, "total_ghg_emissions", kpis[0].Code)
}

func TestExtractEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	h := newRouter(env)

	body := []byte(`{"id": "acme-2024", "pages": [{"tables": [[["Metric", "Unit", "2024"], ["Energy consumption", "MWh", "1,500"]]]}]}`)
	rr := doRequest(t, h, http.MethodPost, "/v1/extract", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report model.ExtractionReport
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
	assert.Equal(t, "acme-2024", report.DocumentID)
	assert.NotEmpty(t, report.RunID)

	energy, ok := report.Result("energy_consumption")
	require.True(t, ok)
	require.NotNil(t, energy.Value)
	assert.Equal(t, 1500.0, *energy.Value)
	assert.Equal(t, "MWh", *energy.Unit)
	assert.Equal(t, []string{"table_grid"}, energy.Source)

	// The run is persisted and visible through the runs API.
	rr = doRequest(t, h, http.MethodGet, "/v1/runs/"+report.RunID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var run model.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Report)
	assert.Len(t, run.Report.Results, 3)

	rr = doRequest(t, h, http.MethodGet, "/v1/runs?status=complete&limit=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&runs))
	assert.Len(t, runs, 1)

	// Metrics reflect the run.
	rr = doRequest(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `kpi_runs_total{status="complete"} 1`)
	assert.Contains(t, rr.Body.String(), `kpi_candidates_total{source="table_grid"}`)
}

func TestExtractEndpoint_BadBody(t *testing.T) {
	h := newRouter(newTestEnv(t, false))

	rr := doRequest(t, h, http.MethodPost, "/v1/extract", []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid document")

	rr = doRequest(t, h, http.MethodPost, "/v1/extract", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRunsEndpoints_NoStore(t *testing.T) {
	h := newRouter(newTestEnv(t, false))

	rr := doRequest(t, h, http.MethodGet, "/v1/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/v1/runs/abc", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRunsEndpoints(t *testing.T) {
	env := newTestEnv(t, true)
	h := newRouter(env)

	rr := doRequest(t, h, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = doRequest(t, h, http.MethodGet, "/v1/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/v1/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/v1/runs?offset=x", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	_, err := env.Store.CreateRun(context.Background(), "queued-doc")
	require.NoError(t, err)
	rr = doRequest(t, h, http.MethodGet, "/v1/runs?document_id=queued-doc", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusQueued, runs[0].Status)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(newTestEnv(t, false))

	req := httptest.NewRequest(http.MethodOptions, "/v1/extract", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
