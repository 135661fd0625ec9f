package service

import (
	"errors"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// ErrGraphNotInitialized is returned when the graph service was not constructed with NewGraphService
var ErrGraphNotInitialized = errors.New("graph service not initialized")

// GraphServiceConfig tunes community detection
type GraphServiceConfig struct {
	// Resolution is the Louvain modularity resolution; 1 is standard modularity
	Resolution float64
	// Seed makes community detection reproducible across runs
	Seed uint64
}

// DefaultGraphServiceConfig returns standard modularity with a fixed seed
func DefaultGraphServiceConfig() GraphServiceConfig {
	return GraphServiceConfig{Resolution: 1.0, Seed: 1}
}

// GraphService builds the transaction graph of one analysis run and answers
// clustering and export queries about the most recently built graph.
//
// A GraphService is owned by a single analysis job: BuildGraph mutates it and is
// not safe to call concurrently with any other method.
type GraphService struct {
	cfg     GraphServiceConfig
	graph   *transactionGraph
	skipped int
	logger  *logger.Logger
}

// NewGraphService creates a new graph service
func NewGraphService(cfg GraphServiceConfig, logger *logger.Logger) *GraphService {
	if cfg.Resolution <= 0 {
		cfg.Resolution = 1.0
	}
	return &GraphService{
		cfg:    cfg,
		graph:  newTransactionGraph(),
		logger: logger.WithComponent("graph-service"),
	}
}

// BuildGraph rebuilds the graph from transactions. Addresses in analyzed are marked as
// analyzed nodes; every other endpoint is an external counterparty. Malformed
// transactions are logged and skipped.
func (s *GraphService) BuildGraph(transactions []*entity.TransactionRecord, analyzed []string) (*entity.GraphData, error) {
	if s == nil || s.logger == nil {
		return nil, ErrGraphNotInitialized
	}

	s.graph = newTransactionGraph()
	s.skipped = 0

	analyzedSet := make(map[string]struct{}, len(analyzed))
	for _, addr := range analyzed {
		analyzedSet[entity.NormalizeAddress(addr)] = struct{}{}
	}

	for i, tx := range transactions {
		if err := tx.Validate(); err != nil {
			s.skipped++
			s.logger.Warn("Skipping malformed transaction",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		s.graph.addTransaction(tx, analyzedSet)
	}

	s.graph.finalizeEdges()
	s.graph.calculateNodeMetrics()
	s.graph.calculateProfiles()

	s.logger.Info("Built transaction graph",
		zap.Int("transactions", len(transactions)),
		zap.Int("skipped", s.skipped),
		zap.Int("nodes", len(s.graph.nodeOrder)),
		zap.Int("edges", len(s.graph.edgeOrder)))

	return s.GraphData(), nil
}

// SkippedTransactions returns how many transactions the last build skipped
func (s *GraphService) SkippedTransactions() int {
	return s.skipped
}

// Nodes returns the nodes of the current graph in creation order
func (s *GraphService) Nodes() []*entity.GraphNode {
	if s.graph == nil {
		return []*entity.GraphNode{}
	}
	nodes := make([]*entity.GraphNode, 0, len(s.graph.nodeOrder))
	for _, addr := range s.graph.nodeOrder {
		nodes = append(nodes, s.graph.nodes[addr])
	}
	return nodes
}

// Edges returns the edges of the current graph in creation order
func (s *GraphService) Edges() []*entity.GraphEdge {
	if s.graph == nil {
		return []*entity.GraphEdge{}
	}
	edges := make([]*entity.GraphEdge, 0, len(s.graph.edgeOrder))
	for _, key := range s.graph.edgeOrder {
		edges = append(edges, s.graph.edges[key])
	}
	return edges
}

// Node returns the node for address, if present
func (s *GraphService) Node(address string) (*entity.GraphNode, bool) {
	if s.graph == nil {
		return nil, false
	}
	n, ok := s.graph.nodes[entity.NormalizeAddress(address)]
	return n, ok
}

// Edge returns the aggregated edge from -> to, if present
func (s *GraphService) Edge(from, to string) (*entity.GraphEdge, bool) {
	if s.graph == nil {
		return nil, false
	}
	e, ok := s.graph.edges[entity.EdgeKey{From: entity.NormalizeAddress(from), To: entity.NormalizeAddress(to)}]
	return e, ok
}
