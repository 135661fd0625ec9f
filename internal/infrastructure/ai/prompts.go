package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
)

const (
	promptContracts = 5
	promptTokens    = 3
	promptEdges     = 50
)

const walletSystemPrompt = `You are a blockchain analyst specialised in behavioral patterns of wallets.
Analyse the activity of one wallet and:
1. Identify its behavior pattern
2. Classify the entity type (individual, business, exchange, mixer, smart_contract, bot, unknown)
3. Assign a risk score between 0 and 1
4. List relevant observations
5. List possibly related entities

Answer with a single JSON object with the fields behavior_pattern, entity_type, risk_score,
observations (array of strings) and related_entities (array of strings).`

const relationshipSystemPrompt = `You are a blockchain analyst specialised in relationships between wallets.
Analyse several wallets, their transaction graph and the detected clusters to:
1. Identify groups of wallets that may belong to the same entity
2. Detect similar behavior patterns
3. Flag suspicious or unusual relationships
4. Explain every relationship you report

Answer with a JSON array of relationships, each with the fields wallets_involved (array),
relationship_type, confidence_score (0 to 1) and explanation.`

func walletPrompt(s *entity.WalletStats) string {
	contracts := s.MostFrequentContracts
	if len(contracts) > promptContracts {
		contracts = contracts[:promptContracts]
	}
	hours, _ := json.Marshal(s.InteractionHours)

	var b strings.Builder
	b.WriteString("Analyse the following wallet:\n\n")
	fmt.Fprintf(&b, "Address: %s\n", s.Address)
	fmt.Fprintf(&b, "Blockchain: %s\n", s.Blockchain)
	fmt.Fprintf(&b, "Total sent (USD): %.2f\n", s.TotalSentUSD)
	fmt.Fprintf(&b, "Total received (USD): %.2f\n", s.TotalReceivedUSD)
	fmt.Fprintf(&b, "Transactions: %d\n\n", s.TransactionCount)
	fmt.Fprintf(&b, "Unique tokens: %d\n", len(s.UniqueTokens))
	fmt.Fprintf(&b, "Most frequent contracts: %s\n\n", strings.Join(contracts, ", "))
	fmt.Fprintf(&b, "First transaction: %s\n", formatTime(s.FirstTransactionDate))
	fmt.Fprintf(&b, "Last transaction: %s\n\n", formatTime(s.LastTransactionDate))
	fmt.Fprintf(&b, "Hourly activity (UTC, hour 0 first): %s\n", hours)
	return b.String()
}

type promptEdge struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Value float64 `json:"total_value_usd"`
	Count any     `json:"transactions"`
}

type promptCluster struct {
	Wallets    []string `json:"wallets"`
	Similarity float64  `json:"similarity_score"`
	Internal   int64    `json:"internal_transactions"`
}

func relationshipPrompt(stats []*entity.WalletStats, graph *entity.GraphData, clusters []entity.Cluster) string {
	var b strings.Builder
	b.WriteString("Analyse the following wallets and their relationships:\n")

	for _, s := range stats {
		if s == nil {
			continue
		}
		symbols := make([]string, 0, promptTokens)
		for i, t := range s.UniqueTokens {
			if i == promptTokens {
				break
			}
			symbols = append(symbols, t.Symbol)
		}
		fmt.Fprintf(&b, "\nWallet: %s\n", s.Address)
		fmt.Fprintf(&b, "- Total moved (USD): %.2f\n", s.TotalVolumeUSD())
		fmt.Fprintf(&b, "- Transactions: %d\n", s.TransactionCount)
		fmt.Fprintf(&b, "- Main tokens: %s\n", strings.Join(symbols, ", "))
	}

	if graph != nil && len(graph.Edges) > 0 {
		edges := make([]entity.PresentationEdge, len(graph.Edges))
		copy(edges, graph.Edges)
		sort.SliceStable(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
		if len(edges) > promptEdges {
			edges = edges[:promptEdges]
		}
		summary := make([]promptEdge, 0, len(edges))
		for _, e := range edges {
			value, _ := e.Properties["total_value"].(float64)
			summary = append(summary, promptEdge{
				From:  e.Source,
				To:    e.Target,
				Value: value,
				Count: e.Properties["transaction_count"],
			})
		}
		raw, _ := json.MarshalIndent(summary, "", "  ")
		b.WriteString("\nStrongest transaction relationships:\n")
		b.Write(raw)
		b.WriteString("\n")
	}

	if len(clusters) > 0 {
		summary := make([]promptCluster, 0, len(clusters))
		for _, c := range clusters {
			summary = append(summary, promptCluster{
				Wallets:    c.MemberAddresses,
				Similarity: c.SimilarityScore,
				Internal:   c.InternalTransactionCount,
			})
		}
		raw, _ := json.MarshalIndent(summary, "", "  ")
		b.WriteString("\nDetected clusters:\n")
		b.Write(raw)
		b.WriteString("\n")
	}

	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
