package service

import (
	"wallet-cluster-analyzer/internal/domain/entity"
)

// transactionGraph is a directed graph with one aggregated edge per ordered address pair.
// Nodes and edges remember their creation order so every pass is deterministic.
type transactionGraph struct {
	nodes     map[string]*entity.GraphNode
	nodeOrder []string
	edges     map[entity.EdgeKey]*entity.GraphEdge
	edgeOrder []entity.EdgeKey
	outgoing  map[string][]entity.EdgeKey
	incoming  map[string][]entity.EdgeKey
}

func newTransactionGraph() *transactionGraph {
	return &transactionGraph{
		nodes:    make(map[string]*entity.GraphNode),
		edges:    make(map[entity.EdgeKey]*entity.GraphEdge),
		outgoing: make(map[string][]entity.EdgeKey),
		incoming: make(map[string][]entity.EdgeKey),
	}
}

// addTransaction records a validated transaction
func (g *transactionGraph) addTransaction(tx *entity.TransactionRecord, analyzed map[string]struct{}) {
	from := entity.NormalizeAddress(tx.FromAddress)
	to := entity.NormalizeAddress(tx.ToAddress)

	g.ensureNode(from, analyzed)
	g.ensureNode(to, analyzed)

	key := entity.EdgeKey{From: from, To: to}
	edge, exists := g.edges[key]
	if !exists {
		// Totals stay zero until finalizeEdges
		edge = &entity.GraphEdge{
			FromAddress:  from,
			ToAddress:    to,
			Transactions: []entity.EdgeTransaction{},
		}
		g.edges[key] = edge
		g.edgeOrder = append(g.edgeOrder, key)
		g.outgoing[from] = append(g.outgoing[from], key)
		g.incoming[to] = append(g.incoming[to], key)
	}

	edge.Transactions = append(edge.Transactions, entity.EdgeTransaction{
		Hash:         tx.Hash,
		USDValue:     tx.USDValue,
		Timestamp:    tx.Timestamp,
		TokenSymbol:  tx.TokenSymbol,
		TokenAddress: entity.NormalizeAddress(tx.TokenAddress),
	})
}

func (g *transactionGraph) ensureNode(address string, analyzed map[string]struct{}) {
	if _, exists := g.nodes[address]; exists {
		return
	}
	_, isAnalyzed := analyzed[address]
	g.nodes[address] = &entity.GraphNode{
		Address:      address,
		DisplayLabel: FormatAddress(address, DefaultAddressLabelLength),
		IsAnalyzed:   isAnalyzed,
	}
	g.nodeOrder = append(g.nodeOrder, address)
}

// finalizeEdges derives totals from the constituent transactions, summing in insertion order
func (g *transactionGraph) finalizeEdges() {
	for _, key := range g.edgeOrder {
		edge := g.edges[key]
		total := 0.0
		for _, tx := range edge.Transactions {
			total += tx.USDValue
		}
		edge.TotalValueUSD = total
		edge.TransactionCount = int64(len(edge.Transactions))
		edge.Weight = edge.TotalValueUSD * float64(edge.TransactionCount)
	}
}

// calculateNodeMetrics computes centrality, totals and transaction counts.
// A self-loop counts towards both sent and received and once per direction in TransactionCount.
func (g *transactionGraph) calculateNodeMetrics() {
	others := len(g.nodeOrder) - 1

	for _, addr := range g.nodeOrder {
		node := g.nodes[addr]
		neighbors := make(map[string]struct{})

		node.TotalSentUSD = 0
		node.TotalReceivedUSD = 0
		node.TransactionCount = 0

		for _, key := range g.outgoing[addr] {
			edge := g.edges[key]
			node.TotalSentUSD += edge.TotalValueUSD
			node.TransactionCount += edge.TransactionCount
			if key.To != addr {
				neighbors[key.To] = struct{}{}
			}
		}
		for _, key := range g.incoming[addr] {
			edge := g.edges[key]
			node.TotalReceivedUSD += edge.TotalValueUSD
			node.TransactionCount += edge.TransactionCount
			if key.From != addr {
				neighbors[key.From] = struct{}{}
			}
		}

		if others <= 0 {
			node.DegreeCentrality = 0
		} else {
			node.DegreeCentrality = float64(len(neighbors)) / float64(others)
		}
	}
}

// calculateProfiles derives each node's behavioral profile from its incident transactions
func (g *transactionGraph) calculateProfiles() {
	accumulators := make(map[string]*walletAccumulator, len(g.nodeOrder))
	for _, addr := range g.nodeOrder {
		accumulators[addr] = newWalletAccumulator(addr)
	}

	for _, key := range g.edgeOrder {
		for _, tx := range g.edges[key].Transactions {
			accumulators[key.From].observe(key.To, true, tx.USDValue, tx.Timestamp, tx.TokenAddress, tx.TokenSymbol)
			if key.To != key.From {
				accumulators[key.To].observe(key.From, false, tx.USDValue, tx.Timestamp, tx.TokenAddress, tx.TokenSymbol)
			}
		}
	}

	for _, addr := range g.nodeOrder {
		g.nodes[addr].Profile = accumulators[addr].profile()
	}
}
