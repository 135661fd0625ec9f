package service

import (
	"context"
	"errors"

	"wallet-cluster-analyzer/internal/domain/entity"
)

var (
	// ErrAnalysisNotCompleted is returned when results are requested before a job finished
	ErrAnalysisNotCompleted = errors.New("analysis not completed")
	// ErrInvalidRequest is returned for requests with no wallets, too many wallets or bad rows
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// AnalysisService defines the interface for analysis operations
type AnalysisService interface {
	// StartAnalysis registers a job for the given wallets and runs it in the background
	StartAnalysis(ctx context.Context, wallets []entity.WalletAddress) (string, error)

	// HandleRequest starts an analysis for a transport request and carries its request id
	HandleRequest(ctx context.Context, req *entity.AnalysisRequest) (string, error)

	// GetJob returns the status of an analysis
	GetJob(ctx context.Context, id string) (*entity.AnalysisJob, error)

	// GetReport returns the report of a completed analysis
	GetReport(ctx context.Context, id string) (*entity.AnalysisReport, error)

	// GetGraph returns the presentation graph of a completed analysis
	GetGraph(ctx context.Context, id string) (*entity.GraphData, error)

	// GetClusters returns the clusters of a completed analysis
	GetClusters(ctx context.Context, id string) ([]entity.Cluster, error)
}

// EventPublisher announces finished analyses
type EventPublisher interface {
	PublishCompleted(ctx context.Context, event *entity.AnalysisCompletedEvent) error
}
