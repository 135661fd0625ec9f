package repository

import (
	"context"

	"wallet-cluster-analyzer/internal/domain/entity"
)

// GraphExportRepository publishes finished analysis graphs to an external graph store
type GraphExportRepository interface {
	// ExportGraph writes the graph of one analysis, scoped by analysisID
	ExportGraph(ctx context.Context, analysisID string, graph *entity.GraphData) error
}
