// pkg/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderops/tender-ingress/pkg/config"
	"github.com/tenderops/tender-ingress/pkg/embed"
	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/pipeline"
	"github.com/tenderops/tender-ingress/pkg/search"
	"github.com/tenderops/tender-ingress/pkg/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()

	cfg := &config.Config{
		StoreBackend:       config.BackendMemory,
		ServerPort:         8080,
		CORSOrigins:        []string{"*"},
		EmbedMinTextLen:    10,
		OutlierThreshold:   1e9,
		DefaultListLimit:   50,
		MaxListLimit:       500,
		DefaultSearchLimit: 5,
		MaxSearchLimit:     100,
	}

	mem := store.NewMemory()
	embedder := embed.New()

	p, err := pipeline.New(mem, embedder, cfg.OutlierThreshold)
	require.NoError(t, err)

	searcher, err := search.NewSearcher(mem, embedder, cfg.DefaultSearchLimit, cfg.MaxSearchLimit)
	require.NoError(t, err)

	srv, err := NewServer(cfg, mem, p, searcher)
	require.NoError(t, err)
	return srv, mem
}

func uploadCSV(t *testing.T, srv *Server, csvBody string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "tenders.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

const sampleCSV = `tender_id,title,description,organization,category,value,currency,published_date,deadline,location,status
T-100,Road resurfacing,Resurface the arterial road network,Dept of Works,Construction,500000,USD,2024-01-10,2024-02-10,North,Open
T-101,Streetlight replacement,Replace streetlight columns in the east district,Dept of Works,Electrical,120000,USD,2024-01-12,2024-02-12,East,Open
T-102,Park maintenance,,Parks Board,Landscaping,80000,USD,2024-01-15,2024-02-15,Central,Open
`

func TestRootEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Tender Ingress API", body["message"])
	assert.NotEmpty(t, body["version"])
}

func TestIngestEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)

	rec := uploadCSV(t, srv, sampleCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 3, body.RecordsIngested)
	assert.Equal(t, 3, body.RecordsCleaned)
	assert.Equal(t, 0, body.RecordsSkipped)

	count, err := mem.CountCleaned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestRejectsMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestRejectsMalformedCSV(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := uploadCSV(t, srv, "tender_id,title,value\nT-1,\"unterminated,100\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTendersEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sampleCSV).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/tenders?limit=2", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var tenders []model.CleanedTender
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenders))
	assert.Len(t, tenders, 2)
}

func TestListTendersRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, q := range []string{"limit=0", "limit=-5", "limit=501", "limit=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/tenders?"+q, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sampleCSV).Code)

	body := strings.NewReader(`{"query": "Resurface the arterial road network", "limit": 2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/search", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Resurface the arterial road network", resp.Query)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "T-100", resp.Results[0].TenderID)
	assert.Greater(t, resp.Results[0].Similarity, resp.Results[1].Similarity)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query": ""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataQualityEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sampleCSV).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/data-quality", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dataQualityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// One empty description in the sample data
	require.Equal(t, 1, resp.TotalChecks)
	assert.Equal(t, model.CheckNullDescriptions, resp.Logs[0].CheckType)
	assert.Equal(t, model.SeverityHigh, resp.Logs[0].Severity)
}

func TestPipelineHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// Before any ingestion the snapshot is a placeholder
	req := httptest.NewRequest(http.MethodGet, "/api/pipeline-health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var empty model.HealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Equal(t, model.StatusNotInitialized, empty.Status)
	assert.Equal(t, 0, empty.TotalRecords)

	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sampleCSV).Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline-health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot model.HealthSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, model.StatusHealthy, snapshot.Status)
	assert.Equal(t, 3, snapshot.TotalRecords)
	assert.Equal(t, 3, snapshot.CleanRecords)
	assert.Equal(t, 90.0, snapshot.QualityScore)
	assert.NotNil(t, snapshot.LastIngestion)
}

func TestValidateEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadCSV(t, srv, sampleCSV).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	snapshot, err := mem.Health(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, 90.0, snapshot.QualityScore)
}

func TestHealthzEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
