package service

import (
	"math/rand/v2"
	"sort"

	"wallet-cluster-analyzer/internal/domain/entity"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// DetectClusters partitions the undirected projection of the graph into Louvain
// communities. Singleton communities are dropped and the rest are ordered by
// similarity score, highest first. Failures yield an empty result.
func (s *GraphService) DetectClusters() (clusters []entity.Cluster) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cluster detection failed", zap.Any("panic", r))
			clusters = []entity.Cluster{}
		}
	}()

	clusters = []entity.Cluster{}
	if s.graph == nil || len(s.graph.nodeOrder) == 0 {
		return clusters
	}

	undirected, edgeCount := s.graph.undirectedProjection()
	if edgeCount == 0 {
		return clusters
	}

	reduced := community.Modularize(undirected, s.cfg.Resolution, rand.NewPCG(s.cfg.Seed, s.cfg.Seed))

	for _, members := range reduced.Communities() {
		if len(members) < 2 {
			continue
		}
		addresses := make([]string, 0, len(members))
		for _, n := range members {
			addresses = append(addresses, s.graph.nodeOrder[n.ID()])
		}
		sort.Strings(addresses)
		clusters = append(clusters, s.graph.describeCluster(addresses))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].SimilarityScore > clusters[j].SimilarityScore
	})
	for i := range clusters {
		clusters[i].ID = i
	}

	s.logger.Debug("Detected clusters",
		zap.Int("communities", len(reduced.Communities())),
		zap.Int("clusters", len(clusters)))

	return clusters
}

// undirectedProjection maps node i of the creation order to graph id i.
// Self-loops are dropped; direction is ignored and parallel directions collapse.
func (g *transactionGraph) undirectedProjection() (*simple.UndirectedGraph, int) {
	ids := make(map[string]int64, len(g.nodeOrder))
	ug := simple.NewUndirectedGraph()
	for i, addr := range g.nodeOrder {
		ids[addr] = int64(i)
		ug.AddNode(simple.Node(i))
	}

	edgeCount := 0
	for _, key := range g.edgeOrder {
		if key.From == key.To {
			continue
		}
		from, to := ids[key.From], ids[key.To]
		if ug.HasEdgeBetween(from, to) {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		edgeCount++
	}
	return ug, edgeCount
}

func (g *transactionGraph) describeCluster(members []string) entity.Cluster {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}

	var volume float64
	var internal int64
	for _, m := range members {
		node := g.nodes[m]
		volume += node.TotalSentUSD + node.TotalReceivedUSD
		for _, key := range g.outgoing[m] {
			if _, ok := memberSet[key.To]; ok {
				internal += g.edges[key].TransactionCount
			}
		}
	}

	return entity.Cluster{
		MemberAddresses:          members,
		Size:                     len(members),
		TotalVolumeUSD:           volume,
		InternalTransactionCount: internal,
		SimilarityScore:          g.clusterSimilarity(members),
	}
}

// clusterSimilarity is the mean pairwise similarity over unordered member pairs
func (g *transactionGraph) clusterSimilarity(members []string) float64 {
	if len(members) < 2 {
		return 0
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += PairwiseSimilarity(g.nodes[members[i]], g.nodes[members[j]])
			pairs++
		}
	}
	return total / float64(pairs)
}
