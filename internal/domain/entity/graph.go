package entity

import (
	"time"
)

// Node colors used by the visualization layer
const (
	AnalyzedNodeColor = "#ff7675"
	ExternalNodeColor = "#74b9ff"
)

// GraphNode represents one address in the transaction graph
type GraphNode struct {
	Address          string        `json:"address"`
	DisplayLabel     string        `json:"label"`
	IsAnalyzed       bool          `json:"is_analyzed"`
	TotalSentUSD     float64       `json:"total_sent"`
	TotalReceivedUSD float64       `json:"total_received"`
	TransactionCount int64         `json:"transaction_count"`
	DegreeCentrality float64       `json:"degree_centrality"`
	Profile          WalletProfile `json:"profile"`
}

// EdgeKey identifies an ordered (from, to) pair
type EdgeKey struct {
	From string
	To   string
}

// EdgeTransaction is one transaction aggregated into an edge
type EdgeTransaction struct {
	Hash         string    `json:"hash"`
	USDValue     float64   `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
	TokenSymbol  string    `json:"token"`
	TokenAddress string    `json:"token_address,omitempty"`
}

// GraphEdge aggregates all transactions sent from one address to another
type GraphEdge struct {
	FromAddress      string            `json:"from_address"`
	ToAddress        string            `json:"to_address"`
	Transactions     []EdgeTransaction `json:"transactions"`
	TotalValueUSD    float64           `json:"total_value"`
	TransactionCount int64             `json:"transaction_count"`
	Weight           float64           `json:"weight"`
}

// Key returns the ordered pair the edge aggregates
func (e *GraphEdge) Key() EdgeKey {
	return EdgeKey{From: e.FromAddress, To: e.ToAddress}
}

// Cluster represents a community of possibly related wallets
type Cluster struct {
	ID                       int      `json:"id"`
	MemberAddresses          []string `json:"wallets"`
	Size                     int      `json:"size"`
	TotalVolumeUSD           float64  `json:"total_volume"`
	InternalTransactionCount int64    `json:"internal_transactions"`
	SimilarityScore          float64  `json:"similarity_score"`
}

// PresentationNode is a node ready for a graph visualization library
type PresentationNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Size       int            `json:"size"`
	Color      string         `json:"color"`
	Properties map[string]any `json:"properties"`
}

// PresentationEdge is an edge ready for a graph visualization library
type PresentationEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Weight     float64        `json:"weight"`
	Properties map[string]any `json:"properties"`
}

// GraphData is the presentation form of a transaction graph
type GraphData struct {
	Nodes []PresentationNode `json:"nodes"`
	Edges []PresentationEdge `json:"edges"`
}

// EmptyGraphData returns a graph with non-nil, empty node and edge lists
func EmptyGraphData() *GraphData {
	return &GraphData{
		Nodes: []PresentationNode{},
		Edges: []PresentationEdge{},
	}
}
