package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/domain/repository"
	"wallet-cluster-analyzer/internal/domain/service"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	walletB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type fakeAnalysisService struct {
	started []entity.WalletAddress
	jobs    map[string]*entity.AnalysisJob
}

func (f *fakeAnalysisService) StartAnalysis(ctx context.Context, wallets []entity.WalletAddress) (string, error) {
	if len(wallets) == 0 {
		return "", fmt.Errorf("%w: no wallets", service.ErrInvalidRequest)
	}
	f.started = wallets
	return "new-id", nil
}

func (f *fakeAnalysisService) HandleRequest(ctx context.Context, req *entity.AnalysisRequest) (string, error) {
	return f.StartAnalysis(ctx, req.Wallets)
}

func (f *fakeAnalysisService) GetJob(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrAnalysisNotFound, id)
	}
	return job, nil
}

func (f *fakeAnalysisService) GetReport(ctx context.Context, id string) (*entity.AnalysisReport, error) {
	job, err := f.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != entity.AnalysisStatusCompleted {
		return nil, service.ErrAnalysisNotCompleted
	}
	return job.Report, nil
}

func (f *fakeAnalysisService) GetGraph(ctx context.Context, id string) (*entity.GraphData, error) {
	report, err := f.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.GraphData, nil
}

func (f *fakeAnalysisService) GetClusters(ctx context.Context, id string) ([]entity.Cluster, error) {
	report, err := f.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.Clusters, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeAnalysisService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	report := &entity.AnalysisReport{
		AnalysisID: "done",
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		WalletsAnalyzed: []*entity.WalletStats{{
			Address:          walletA,
			Blockchain:       "ethereum",
			TotalSentUSD:     12.5,
			TransactionCount: 3,
		}},
		GraphData: &entity.GraphData{
			Nodes: []entity.PresentationNode{{ID: walletA, Label: "0xaaaa...aaaa", Size: 21, Color: entity.AnalyzedNodeColor}},
			Edges: []entity.PresentationEdge{},
		},
		Clusters: []entity.Cluster{{ID: 0, MemberAddresses: []string{walletA, walletB}, Size: 2}},
		Summary:  "Analysis completed for 1 wallets.",
	}

	svc := &fakeAnalysisService{jobs: map[string]*entity.AnalysisJob{
		"done":    {ID: "done", Status: entity.AnalysisStatusCompleted, Progress: 100, Message: "Analysis completed", Report: report},
		"running": {ID: "running", Status: entity.AnalysisStatusProcessing, Progress: 40, Message: "Fetched wallet 2 of 5"},
		"failed":  {ID: "failed", Status: entity.AnalysisStatusError, Message: "Analysis failed", Error: "boom"},
	}}
	return NewRouter(NewHandler(svc, 1<<16, 100, logger.NewNop()), logger.NewNop()), svc
}

func do(r http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealth_Components(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&fakeAnalysisService{}, 0, 100, logger.NewNop())
	h.AddHealthCheck("nats", func(ctx context.Context) bool { return true })
	r := NewRouter(h, logger.NewNop())

	w := do(r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"nats":"up"}}`, w.Body.String())

	h.AddHealthCheck("neo4j", func(ctx context.Context) bool { return false })
	w = do(r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","components":{"nats":"up","neo4j":"down"}}`, w.Body.String())
}

func TestUploadCSV(t *testing.T) {
	r, svc := newTestRouter(t)

	body, ct := multipartCSV(t, "wallets.csv", "wallet_address,blockchain\n0x1234,ethereum\n"+walletB+",bsc\n")
	w := do(r, http.MethodPost, "/api/v1/upload-csv", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartCSV(t, "wallets.csv", "wallet_address,blockchain\n"+walletA+",ethereum\n"+walletB+",bsc\n")
	w = do(r, http.MethodPost, "/api/v1/upload-csv", body, ct)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp startAnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new-id", resp.AnalysisID)
	assert.Equal(t, 2, resp.WalletsCount)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 2, resp.Summary.TotalAddresses)
	assert.Equal(t, []entity.WalletAddress{
		{Address: walletA, Blockchain: "ethereum"},
		{Address: walletB, Blockchain: "bsc"},
	}, svc.started)
}

func TestUploadCSV_Rejections(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := multipartCSV(t, "wallets.txt", "wallet_address\n"+walletA+"\n")
	w := do(r, http.MethodPost, "/api/v1/upload-csv", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartCSV(t, "wallets.csv", "address\n"+walletA+"\n")
	w = do(r, http.MethodPost, "/api/v1/upload-csv", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "wallet_address")

	w = do(r, http.MethodPost, "/api/v1/upload-csv", bytes.NewBufferString("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := "wallet_address\n" + strings.Repeat(walletA+"\n", 2000)
	body, ct = multipartCSV(t, "wallets.csv", big)
	w = do(r, http.MethodPost, "/api/v1/upload-csv", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStartAnalysis_JSON(t *testing.T) {
	r, svc := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/analyses",
		bytes.NewBufferString(`{"wallets":[{"address":"`+walletA+`","blockchain":"polygon"}]}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []entity.WalletAddress{{Address: walletA, Blockchain: "polygon"}}, svc.started)

	w = do(r, http.MethodPost, "/api/v1/analyses", bytes.NewBufferString(`{"wallets":[]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/analyses", bytes.NewBufferString(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/analysis/running/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"analysis_id":"running","status":"processing","progress":40,"message":"Fetched wallet 2 of 5"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/analysis/failed/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"boom"`)

	w = do(r, http.MethodGet, "/api/v1/analysis/nope/status", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResultEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"report", "graph", "clusters", "download/csv", "download/json"} {
		w := do(r, http.MethodGet, "/api/v1/analysis/running/"+path, nil, "")
		assert.Equal(t, http.StatusConflict, w.Code, path)

		w = do(r, http.MethodGet, "/api/v1/analysis/nope/"+path, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}

	w := do(r, http.MethodGet, "/api/v1/analysis/done/report", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "done", report["analysis_id"])
	assert.Equal(t, "Analysis completed for 1 wallets.", report["summary"])

	w = do(r, http.MethodGet, "/api/v1/analysis/done/graph", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var graph entity.GraphData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &graph))
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, entity.AnalyzedNodeColor, graph.Nodes[0].Color)

	w = do(r, http.MethodGet, "/api/v1/analysis/done/clusters", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), walletB)
}

func TestDownload(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/v1/analysis/done/download/csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "wallet_analysis_done.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "wallet_address,blockchain,"))
	assert.True(t, strings.HasPrefix(lines[1], walletA+",ethereum,"))

	w = do(r, http.MethodGet, "/api/v1/analysis/done/download/JSON", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "wallet_analysis_done.json")

	w = do(r, http.MethodGet, "/api/v1/analysis/done/download/pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodOptions, "/api/v1/analyses", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
