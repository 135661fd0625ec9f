package database

import (
	"context"
	"fmt"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/domain/repository"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const defaultBatchSize = 500

// Neo4JGraphRepository implements GraphExportRepository interface
type Neo4JGraphRepository struct {
	client    *Neo4JClient
	batchSize int
	logger    *logger.Logger
}

// NewNeo4JGraphRepository creates a new Neo4J graph export repository
func NewNeo4JGraphRepository(client *Neo4JClient, batchSize int, logger *logger.Logger) repository.GraphExportRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Neo4JGraphRepository{
		client:    client,
		batchSize: batchSize,
		logger:    logger.WithComponent("neo4j-graph-repo"),
	}
}

// ExportGraph writes the wallets and aggregated transfers of one analysis
func (r *Neo4JGraphRepository) ExportGraph(ctx context.Context, analysisID string, graph *entity.GraphData) error {
	if graph == nil {
		return nil
	}

	session := r.client.NewSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	analysisQuery := `
		MERGE (a:Analysis {id: $analysis_id})
		SET a.exported_at = datetime($exported_at),
			a.wallets = $wallets,
			a.transfers = $transfers
	`
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, analysisQuery, map[string]interface{}{
			"analysis_id": analysisID,
			"exported_at": time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			"wallets":     int64(len(graph.Nodes)),
			"transfers":   int64(len(graph.Edges)),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to create analysis node: %w", err)
	}

	walletQuery := `
		UNWIND $wallets as wallet
		MATCH (a:Analysis {id: $analysis_id})
		MERGE (w:Wallet {analysis_id: $analysis_id, address: wallet.address})
		SET w.label = wallet.label,
			w.is_analyzed = wallet.is_analyzed,
			w.total_sent = wallet.total_sent,
			w.total_received = wallet.total_received,
			w.transaction_count = wallet.transaction_count,
			w.degree_centrality = wallet.degree_centrality
		MERGE (a)-[:INCLUDES]->(w)
	`
	for _, batch := range chunk(walletParams(graph), r.batchSize) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, walletQuery, map[string]interface{}{
				"analysis_id": analysisID,
				"wallets":     batch,
			})
		})
		if err != nil {
			return fmt.Errorf("failed to export wallets: %w", err)
		}
	}

	transferQuery := `
		UNWIND $transfers as transfer
		MATCH (from:Wallet {analysis_id: $analysis_id, address: transfer.from_address})
		MATCH (to:Wallet {analysis_id: $analysis_id, address: transfer.to_address})
		MERGE (from)-[s:SENT_TO {analysis_id: $analysis_id}]->(to)
		SET s.total_value = transfer.total_value,
			s.transaction_count = transfer.transaction_count,
			s.weight = transfer.weight,
			s.tx_hashes = transfer.tx_hashes
	`
	for _, batch := range chunk(transferParams(graph), r.batchSize) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, transferQuery, map[string]interface{}{
				"analysis_id": analysisID,
				"transfers":   batch,
			})
		})
		if err != nil {
			return fmt.Errorf("failed to export transfers: %w", err)
		}
	}

	r.logger.Info("Exported analysis graph",
		zap.String("analysis_id", analysisID),
		zap.Int("wallets", len(graph.Nodes)),
		zap.Int("transfers", len(graph.Edges)))

	return nil
}

// walletParams converts presentation nodes into driver-safe parameter maps
func walletParams(graph *entity.GraphData) []map[string]interface{} {
	params := make([]map[string]interface{}, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		params = append(params, map[string]interface{}{
			"address":           n.ID,
			"label":             n.Label,
			"is_analyzed":       boolProp(n.Properties, "is_analyzed"),
			"total_sent":        floatProp(n.Properties, "total_sent"),
			"total_received":    floatProp(n.Properties, "total_received"),
			"transaction_count": intProp(n.Properties, "transaction_count"),
			"degree_centrality": floatProp(n.Properties, "degree_centrality"),
		})
	}
	return params
}

// transferParams converts presentation edges into driver-safe parameter maps
func transferParams(graph *entity.GraphData) []map[string]interface{} {
	params := make([]map[string]interface{}, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		var hashes []string
		if txs, ok := e.Properties["transactions"].([]any); ok {
			for _, raw := range txs {
				if tx, ok := raw.(map[string]any); ok {
					if hash, ok := tx["hash"].(string); ok {
						hashes = append(hashes, hash)
					}
				}
			}
		}
		params = append(params, map[string]interface{}{
			"from_address":      e.Source,
			"to_address":        e.Target,
			"total_value":       floatProp(e.Properties, "total_value"),
			"transaction_count": intProp(e.Properties, "transaction_count"),
			"weight":            e.Weight,
			"tx_hashes":         hashes,
		})
	}
	return params
}

func chunk(items []map[string]interface{}, size int) [][]map[string]interface{} {
	var batches [][]map[string]interface{}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	v, _ := props[key].(bool)
	return v
}
