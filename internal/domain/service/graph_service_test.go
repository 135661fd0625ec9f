package service

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	walletA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	walletB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	walletC = "0xcccccccccccccccccccccccccccccccccccccccc"
	walletD = "0xdddddddddddddddddddddddddddddddddddddddd"
	walletE = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	walletF = "0xffffffffffffffffffffffffffffffffffffffff"
)

var baseTime = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func newTestGraphService(t *testing.T) *GraphService {
	t.Helper()
	return NewGraphService(DefaultGraphServiceConfig(), logger.New(zaptest.NewLogger(t)))
}

func tx(hash, from, to string, usd float64) *entity.TransactionRecord {
	return &entity.TransactionRecord{
		Hash:         hash,
		FromAddress:  from,
		ToAddress:    to,
		USDValue:     usd,
		Timestamp:    baseTime,
		TokenSymbol:  "USDC",
		TokenAddress: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	}
}

func TestBuildGraph_Scenario(t *testing.T) {
	svc := newTestGraphService(t)

	data, err := svc.BuildGraph([]*entity.TransactionRecord{
		tx("0x1", walletA, walletB, 100),
		tx("0x2", walletA, walletB, 50),
		tx("0x3", walletB, walletC, 200),
	}, []string{walletA})
	require.NoError(t, err)
	require.Len(t, data.Nodes, 3)
	require.Len(t, data.Edges, 2)

	ab, ok := svc.Edge(walletA, walletB)
	require.True(t, ok)
	assert.Equal(t, int64(2), ab.TransactionCount)
	assert.Equal(t, 150.0, ab.TotalValueUSD)
	assert.Equal(t, 300.0, ab.Weight)

	bc, ok := svc.Edge(walletB, walletC)
	require.True(t, ok)
	assert.Equal(t, int64(1), bc.TransactionCount)
	assert.Equal(t, 200.0, bc.TotalValueUSD)
	assert.Equal(t, 200.0, bc.Weight)

	a, _ := svc.Node(walletA)
	b, _ := svc.Node(walletB)
	c, _ := svc.Node(walletC)
	assert.True(t, a.IsAnalyzed)
	assert.False(t, b.IsAnalyzed)
	assert.False(t, c.IsAnalyzed)

	assert.Equal(t, 150.0, a.TotalSentUSD)
	assert.Equal(t, 200.0, b.TotalSentUSD)
	assert.Equal(t, 150.0, b.TotalReceivedUSD)
	assert.Equal(t, int64(3), b.TransactionCount)
	assert.Equal(t, 1.0, b.DegreeCentrality)
	assert.Equal(t, 0.5, a.DegreeCentrality)

	assert.Equal(t, entity.AnalyzedNodeColor, data.Nodes[0].Color)
	assert.Equal(t, entity.ExternalNodeColor, data.Nodes[1].Color)
	assert.Equal(t, "0xaaaa...aaaa", data.Nodes[0].Label)
}

func TestBuildGraph_EmptyInput(t *testing.T) {
	svc := newTestGraphService(t)

	data, err := svc.BuildGraph(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, data.Nodes)
	assert.Empty(t, data.Edges)
	assert.NotNil(t, data.Nodes)
	assert.NotNil(t, data.Edges)
	assert.Equal(t, []entity.Cluster{}, svc.DetectClusters())

	exported := svc.ExportSerializable()
	assert.Equal(t, []any{}, exported["nodes"])
	assert.Equal(t, []any{}, exported["edges"])
}

func TestBuildGraph_NotInitialized(t *testing.T) {
	var svc *GraphService
	_, err := svc.BuildGraph(nil, nil)
	assert.ErrorIs(t, err, ErrGraphNotInitialized)

	_, err = (&GraphService{}).BuildGraph(nil, nil)
	assert.ErrorIs(t, err, ErrGraphNotInitialized)
}

func TestBuildGraph_SkipsMalformedTransactions(t *testing.T) {
	svc := newTestGraphService(t)

	missingHash := tx("", walletA, walletB, 10)
	missingTo := tx("0x2", walletA, "", 10)
	negative := tx("0x3", walletA, walletB, -5)

	data, err := svc.BuildGraph([]*entity.TransactionRecord{
		nil,
		missingHash,
		missingTo,
		negative,
		tx("0x4", walletA, walletB, 25),
	}, nil)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, 2)
	assert.Len(t, data.Edges, 1)
	assert.Equal(t, 4, svc.SkippedTransactions())
}

func TestBuildGraph_NodeCountMatchesDistinctAddresses(t *testing.T) {
	svc := newTestGraphService(t)

	txs := []*entity.TransactionRecord{
		tx("0x1", walletA, walletB, 1),
		tx("0x2", walletB, walletA, 2),
		tx("0x3", walletC, walletD, 3),
		tx("0x4", walletD, walletD, 4),
		tx("0x5", "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", walletE, 5),
	}
	distinct := map[string]struct{}{}
	for _, r := range txs {
		distinct[entity.NormalizeAddress(r.FromAddress)] = struct{}{}
		distinct[entity.NormalizeAddress(r.ToAddress)] = struct{}{}
	}

	data, err := svc.BuildGraph(txs, nil)
	require.NoError(t, err)
	assert.Len(t, data.Nodes, len(distinct))
}

func TestBuildGraph_DirectedEdgesNeverMerge(t *testing.T) {
	svc := newTestGraphService(t)

	_, err := svc.BuildGraph([]*entity.TransactionRecord{
		tx("0x1", walletA, walletB, 10),
		tx("0x2", walletB, walletA, 30),
		tx("0x3", walletB, walletA, 5),
	}, nil)
	require.NoError(t, err)

	ab, ok := svc.Edge(walletA, walletB)
	require.True(t, ok)
	ba, ok := svc.Edge(walletB, walletA)
	require.True(t, ok)

	assert.Equal(t, int64(1), ab.TransactionCount)
	assert.Equal(t, 10.0, ab.TotalValueUSD)
	assert.Equal(t, int64(2), ba.TransactionCount)
	assert.Equal(t, 35.0, ba.TotalValueUSD)

	// Clustering must not alter directed metrics
	svc.DetectClusters()
	a, _ := svc.Node(walletA)
	assert.Equal(t, 10.0, a.TotalSentUSD)
	assert.Equal(t, 35.0, a.TotalReceivedUSD)
	assert.Equal(t, int64(3), a.TransactionCount)
}

func TestBuildGraph_EdgeTotalsFollowInsertionOrder(t *testing.T) {
	svc := newTestGraphService(t)

	values := []float64{0.1, 0.2, 0.3, 1e16, -0, 1.5}
	var txs []*entity.TransactionRecord
	expected := 0.0
	for i, v := range values {
		txs = append(txs, tx(fmt.Sprintf("0x%d", i), walletA, walletB, v))
		expected += v
	}

	_, err := svc.BuildGraph(txs, nil)
	require.NoError(t, err)

	edge, ok := svc.Edge(walletA, walletB)
	require.True(t, ok)
	assert.Equal(t, int64(len(values)), edge.TransactionCount)
	assert.Equal(t, expected, edge.TotalValueUSD)

	for _, e := range svc.Edges() {
		assert.Equal(t, e.TotalValueUSD*float64(e.TransactionCount), e.Weight)
	}
}

func TestBuildGraph_SelfLoop(t *testing.T) {
	svc := newTestGraphService(t)

	_, err := svc.BuildGraph([]*entity.TransactionRecord{
		tx("0x1", walletA, walletA, 40),
		tx("0x2", walletA, walletB, 10),
	}, []string{walletA})
	require.NoError(t, err)

	a, _ := svc.Node(walletA)
	assert.Equal(t, 50.0, a.TotalSentUSD)
	assert.Equal(t, 40.0, a.TotalReceivedUSD)
	assert.Equal(t, int64(3), a.TransactionCount)
	assert.Equal(t, 1.0, a.DegreeCentrality)
	assert.Equal(t, []string{walletB}, a.Profile.MostFrequentContracts)
	assert.Equal(t, 2, a.Profile.InteractionHours[14])
}

func TestBuildGraph_SingleNodeCentralityIsZero(t *testing.T) {
	svc := newTestGraphService(t)

	_, err := svc.BuildGraph([]*entity.TransactionRecord{tx("0x1", walletA, walletA, 1)}, nil)
	require.NoError(t, err)

	a, ok := svc.Node(walletA)
	require.True(t, ok)
	assert.Equal(t, 0.0, a.DegreeCentrality)
}

func TestBuildGraph_RebuildClearsState(t *testing.T) {
	svc := newTestGraphService(t)

	_, err := svc.BuildGraph([]*entity.TransactionRecord{tx("0x1", walletA, walletB, 1)}, nil)
	require.NoError(t, err)

	data, err := svc.BuildGraph([]*entity.TransactionRecord{tx("0x2", walletC, walletD, 1)}, nil)
	require.NoError(t, err)
	require.Len(t, data.Nodes, 2)
	_, ok := svc.Node(walletA)
	assert.False(t, ok)
}

func TestGraphData_NodeSize(t *testing.T) {
	svc := newTestGraphService(t)

	var txs []*entity.TransactionRecord
	for i := 0; i < 5; i++ {
		txs = append(txs, tx(fmt.Sprintf("0x%d", i), walletA, walletB, 1))
	}
	data, err := svc.BuildGraph(txs, nil)
	require.NoError(t, err)

	// 5 transactions: floor(5/2) + 20
	assert.Equal(t, 22, data.Nodes[0].Size)
	assert.Equal(t, 22, data.Nodes[1].Size)
}

func TestExportSerializable_IsJSONCompatible(t *testing.T) {
	svc := newTestGraphService(t)

	_, err := svc.BuildGraph([]*entity.TransactionRecord{
		tx("0x1", walletA, walletB, 100),
		tx("0x2", walletB, walletC, 200),
	}, []string{walletA})
	require.NoError(t, err)

	tree := svc.ExportSerializable()
	nodes, ok := tree["nodes"].([]any)
	require.True(t, ok)
	require.Len(t, nodes, 3)

	first := nodes[0].(map[string]any)
	assert.Equal(t, walletA, first["id"])
	assert.Equal(t, entity.AnalyzedNodeColor, first["color"])

	edges := tree["edges"].([]any)
	require.Len(t, edges, 2)
	props := edges[0].(map[string]any)["properties"].(map[string]any)
	txs := props["transactions"].([]any)
	require.Len(t, txs, 1)
	assert.Equal(t, "0x1", txs[0].(map[string]any)["hash"])

	_, err = json.Marshal(tree)
	require.NoError(t, err)

	raw, err := svc.ExportJSON()
	require.NoError(t, err)
	var decoded entity.GraphData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Nodes, 3)
	assert.Equal(t, walletB, decoded.Edges[0].Target)
}

func TestGraphData_RecoversToEmpty(t *testing.T) {
	svc := newTestGraphService(t)

	_, err := svc.BuildGraph([]*entity.TransactionRecord{tx("0x1", walletA, walletB, 1)}, nil)
	require.NoError(t, err)

	// A node listed in order but missing from the index makes conversion fault
	svc.graph.nodeOrder = append(svc.graph.nodeOrder, walletC)

	data := svc.GraphData()
	assert.Empty(t, data.Nodes)
	assert.Empty(t, data.Edges)
}

func TestGraphService_ZeroValueQueries(t *testing.T) {
	var svc GraphService

	assert.Empty(t, svc.Nodes())
	assert.Empty(t, svc.Edges())
	_, ok := svc.Node(walletA)
	assert.False(t, ok)
	_, ok = svc.Edge(walletA, walletB)
	assert.False(t, ok)
	assert.Equal(t, []entity.Cluster{}, svc.DetectClusters())
	assert.Empty(t, svc.GraphData().Nodes)
}

func TestGraphDataToMap_DetachedFromSource(t *testing.T) {
	svc := newTestGraphService(t)

	data, err := svc.BuildGraph([]*entity.TransactionRecord{tx("0x1", walletA, walletB, 100)}, []string{walletA})
	require.NoError(t, err)

	label := data.Nodes[0].Properties["label"]
	tree := GraphDataToMap(data)
	nodeProps := tree["nodes"].([]any)[0].(map[string]any)["properties"].(map[string]any)
	nodeProps["label"] = "changed"
	nodeProps["interaction_hours"].([]any)[0] = 99

	edgeProps := tree["edges"].([]any)[0].(map[string]any)["properties"].(map[string]any)
	edgeProps["transactions"].([]any)[0].(map[string]any)["hash"] = "0xdead"

	assert.Equal(t, label, data.Nodes[0].Properties["label"])
	assert.Equal(t, 0, data.Nodes[0].Properties["interaction_hours"].([]any)[0])
	assert.Equal(t, "0x1", data.Edges[0].Properties["transactions"].([]any)[0].(map[string]any)["hash"])
}
