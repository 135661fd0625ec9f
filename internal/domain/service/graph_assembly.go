package service

import (
	"encoding/json"
	"fmt"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"

	"go.uber.org/zap"
)

// Node size = transactionCount/2 + baseNodeSize
const baseNodeSize = 20

// GraphData converts the current graph into its presentation form.
// Any failure during conversion yields an empty graph instead of an error.
func (s *GraphService) GraphData() (data *entity.GraphData) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Failed to assemble graph data", zap.Any("panic", r))
			data = entity.EmptyGraphData()
		}
	}()

	if s.graph == nil {
		return entity.EmptyGraphData()
	}

	data = &entity.GraphData{
		Nodes: make([]entity.PresentationNode, 0, len(s.graph.nodeOrder)),
		Edges: make([]entity.PresentationEdge, 0, len(s.graph.edgeOrder)),
	}
	for _, addr := range s.graph.nodeOrder {
		data.Nodes = append(data.Nodes, toPresentationNode(s.graph.nodes[addr]))
	}
	for _, key := range s.graph.edgeOrder {
		data.Edges = append(data.Edges, toPresentationEdge(s.graph.edges[key]))
	}
	return data
}

// ExportSerializable returns the presentation graph as a tree of maps, slices and scalars
func (s *GraphService) ExportSerializable() map[string]any {
	return GraphDataToMap(s.GraphData())
}

// ExportJSON encodes the presentation graph as JSON
func (s *GraphService) ExportJSON() ([]byte, error) {
	b, err := json.Marshal(s.GraphData())
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return b, nil
}

// GraphDataToMap converts presentation data into a generic tree.
// Property maps and slices are copied, so the tree shares no state with data.
func GraphDataToMap(data *entity.GraphData) map[string]any {
	if data == nil {
		data = entity.EmptyGraphData()
	}

	nodes := make([]any, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		nodes = append(nodes, map[string]any{
			"id":         n.ID,
			"label":      n.Label,
			"size":       n.Size,
			"color":      n.Color,
			"properties": copyProperties(n.Properties),
		})
	}

	edges := make([]any, 0, len(data.Edges))
	for _, e := range data.Edges {
		edges = append(edges, map[string]any{
			"source":     e.Source,
			"target":     e.Target,
			"weight":     e.Weight,
			"properties": copyProperties(e.Properties),
		})
	}

	return map[string]any{
		"nodes": nodes,
		"edges": edges,
	}
}

func copyProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyProperties(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func toPresentationNode(node *entity.GraphNode) entity.PresentationNode {
	color := entity.ExternalNodeColor
	if node.IsAnalyzed {
		color = entity.AnalyzedNodeColor
	}

	hours := make([]any, 0, entity.HoursPerDay)
	for _, c := range node.Profile.InteractionHours {
		hours = append(hours, c)
	}

	return entity.PresentationNode{
		ID:    node.Address,
		Label: node.DisplayLabel,
		Size:  int(node.TransactionCount/2) + baseNodeSize,
		Color: color,
		Properties: map[string]any{
			"address":                 node.Address,
			"label":                   node.DisplayLabel,
			"is_analyzed":             node.IsAnalyzed,
			"total_sent":              node.TotalSentUSD,
			"total_received":          node.TotalReceivedUSD,
			"transaction_count":       node.TransactionCount,
			"degree_centrality":       node.DegreeCentrality,
			"interaction_hours":       hours,
			"most_frequent_contracts": stringsToAny(node.Profile.MostFrequentContracts),
			"unique_tokens":           stringsToAny(node.Profile.UniqueTokens),
		},
	}
}

func toPresentationEdge(edge *entity.GraphEdge) entity.PresentationEdge {
	txs := make([]any, 0, len(edge.Transactions))
	for _, tx := range edge.Transactions {
		txs = append(txs, map[string]any{
			"hash":          tx.Hash,
			"value":         tx.USDValue,
			"timestamp":     tx.Timestamp.UTC().Format(time.RFC3339),
			"token":         tx.TokenSymbol,
			"token_address": tx.TokenAddress,
		})
	}

	return entity.PresentationEdge{
		Source: edge.FromAddress,
		Target: edge.ToAddress,
		Weight: edge.Weight,
		Properties: map[string]any{
			"transactions":      txs,
			"total_value":       edge.TotalValueUSD,
			"transaction_count": edge.TransactionCount,
			"weight":            edge.Weight,
		},
	}
}

func stringsToAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
