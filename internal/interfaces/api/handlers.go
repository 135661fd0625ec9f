package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/domain/repository"
	"wallet-cluster-analyzer/internal/domain/service"
	"wallet-cluster-analyzer/internal/infrastructure/csvio"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) bool

// Handler serves the analysis endpoints
type Handler struct {
	analysis       service.AnalysisService
	maxUploadBytes int64
	maxWallets     int
	checks         map[string]HealthCheck
	logger         *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(analysis service.AnalysisService, maxUploadBytes int64, maxWallets int, logger *logger.Logger) *Handler {
	return &Handler{
		analysis:       analysis,
		maxUploadBytes: maxUploadBytes,
		maxWallets:     maxWallets,
		checks:         make(map[string]HealthCheck),
		logger:         logger.WithComponent("api"),
	}
}

type startAnalysisRequest struct {
	Wallets []entity.WalletAddress `json:"wallets" binding:"required"`
}

type startAnalysisResponse struct {
	AnalysisID   string         `json:"analysis_id"`
	Status       string         `json:"status"`
	Message      string         `json:"message"`
	WalletsCount int            `json:"wallets_count"`
	Summary      *csvio.Summary `json:"summary,omitempty"`
}

type statusResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// AddHealthCheck registers a dependency reported by /health
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *Handler) handleHealth(c *gin.Context) {
	if len(h.checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	status, code := "ok", http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check(c.Request.Context()) {
			components[name] = "up"
			continue
		}
		components[name] = "down"
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}

func (h *Handler) handleUploadCSV(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "a CSV file is required in the 'file' field"})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the file must be a CSV"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read the uploaded file"})
		return
	}
	defer f.Close()

	wallets, err := csvio.ParseWalletCSV(f, h.maxWallets)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := csvio.Summarize(wallets)
	h.start(c, wallets, &summary)
}

func (h *Handler) handleStartAnalysis(c *gin.Context) {
	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	h.start(c, req.Wallets, nil)
}

func (h *Handler) start(c *gin.Context, wallets []entity.WalletAddress, summary *csvio.Summary) {
	id, err := h.analysis.StartAnalysis(c.Request.Context(), wallets)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, startAnalysisResponse{
		AnalysisID:   id,
		Status:       string(entity.AnalysisStatusProcessing),
		Message:      "analysis started",
		WalletsCount: len(wallets),
		Summary:      summary,
	})
}

func (h *Handler) handleStatus(c *gin.Context) {
	job, err := h.analysis.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		AnalysisID: job.ID,
		Status:     string(job.Status),
		Progress:   job.Progress,
		Message:    job.Message,
		Error:      job.Error,
	})
}

func (h *Handler) handleReport(c *gin.Context) {
	report, err := h.analysis.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) handleGraph(c *gin.Context) {
	graph, err := h.analysis.GetGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, graph)
}

func (h *Handler) handleClusters(c *gin.Context) {
	clusters, err := h.analysis.GetClusters(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}

func (h *Handler) handleDownload(c *gin.Context) {
	id := c.Param("id")
	format := strings.ToLower(c.Param("format"))
	if format != "csv" && format != "json" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format, use csv or json"})
		return
	}

	report, err := h.analysis.GetReport(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="wallet_analysis_%s.%s"`, id, format))

	if format == "json" {
		c.JSON(http.StatusOK, report)
		return
	}

	var buf bytes.Buffer
	if err := csvio.WriteReportCSV(&buf, report); err != nil {
		h.respondError(c, fmt.Errorf("failed to render csv report: %w", err))
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// respondError maps service errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAnalysisNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
	case errors.Is(err, service.ErrAnalysisNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis has not finished yet"})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
