package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotriangle/app"
	"gotriangle/internal/analysis/triangle"
	"gotriangle/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimsCSV = "accident_period,dev_month,paid\n2020,12,100\n2020,24,150\n2021,12,80\n2021,24,200\n"

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{Metric: "paid", OutlierZThreshold: 2.5, Workers: 1},
		Server:   config.ServerConfig{Port: "0", GinMode: "test", MaxUploadBytes: 1 << 20, DataDir: dataDir},
		Log:      config.LogConfig{Level: "ERROR"},
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims.csv"), []byte(claimsCSV), 0o644))
	srv := NewServer(testConfig(dir), nil)

	rec := postJSON(t, srv.Handler(), "/api/v1/analyze", map[string]interface{}{"csv_path": "claims.csv", "metric": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var run app.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "paid", run.Result.Metric)
	assert.Equal(t, 1.9444, *run.Result.SummaryByDevMonth[12].VolumeWeightedLinkRatio)
	assert.Empty(t, run.Result.Outliers)
}

func TestAnalyzePath_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims.csv"), []byte(claimsCSV), 0o644))
	srv := NewServer(testConfig(dir), nil)

	cases := []struct {
		name   string
		body   map[string]interface{}
		status int
		code   string
	}{
		{"missing file", map[string]interface{}{"csv_path": "nope.csv"}, http.StatusNotFound, "DATA_SOURCE_ERROR"},
		{"missing column", map[string]interface{}{"csv_path": "claims.csv", "metric": "incurred"}, http.StatusUnprocessableEntity, "SCHEMA_ERROR"},
		{"no path", map[string]interface{}{"metric": "paid"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"negative threshold", map[string]interface{}{"csv_path": "claims.csv", "outlier_z_threshold": -1}, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, srv.Handler(), "/api/v1/analyze", tc.body)
			assert.Equal(t, tc.status, rec.Code)

			var report triangle.ErrorReport
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tc.code, report.Error.Code)
		})
	}
}

func TestAnalyzePath_DisabledWithoutDataDir(t *testing.T) {
	srv := NewServer(testConfig(""), nil)

	rec := postJSON(t, srv.Handler(), "/api/v1/analyze", map[string]interface{}{"csv_path": "/etc/passwd"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "root:")

	var report triangle.ErrorReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "FORBIDDEN", report.Error.Code)
	assert.Empty(t, report.Error.Available)
}

func TestAnalyzePath_SchemaErrorListsColumns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("accident_period,paid\n2020,1\n"), 0o644))
	srv := NewServer(testConfig(dir), nil)

	rec := postJSON(t, srv.Handler(), "/api/v1/analyze", map[string]interface{}{"csv_path": "bad.csv"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var report triangle.ErrorReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, []string{"dev_month"}, report.Error.Missing)
	assert.Equal(t, []string{"accident_period", "paid"}, report.Error.Available)
}

func TestAnalyzeUpload(t *testing.T) {
	srv := NewServer(testConfig(""), nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "claims.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(claimsCSV))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("outlier_z_threshold", "0.5"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run app.AnalysisRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "claims.csv", run.Source)
	// Both ratios sit at |z| = 1, above the 0.5 threshold
	assert.Len(t, run.Result.Outliers, 2)
}

func TestAnalyzeUpload_MissingFile(t *testing.T) {
	srv := NewServer(testConfig(""), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := NewServer(testConfig(t.TempDir()), nil)
	postJSON(t, srv.Handler(), "/api/v1/analyze", map[string]interface{}{"csv_path": "missing.csv"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `triangle_analyses_total{code="DATA_SOURCE_ERROR"} 1`)
}

func TestResolvePath_StaysUnderDataDir(t *testing.T) {
	srv := NewServer(testConfig("/srv/data"), nil)
	assert.Equal(t, filepath.Join("/srv/data", "etc/passwd"), srv.resolvePath("../../etc/passwd"))
	assert.Equal(t, filepath.Join("/srv/data", "claims.csv"), srv.resolvePath("claims.csv"))
}
