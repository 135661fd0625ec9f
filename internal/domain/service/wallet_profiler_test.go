package service

import (
	"testing"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletProfiler_Profile(t *testing.T) {
	profiler := NewWalletProfiler(logger.NewNop())

	early := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	late := time.Date(2024, 2, 1, 23, 30, 0, 0, time.UTC)

	txs := []*entity.TransactionRecord{
		{Hash: "0x1", FromAddress: walletA, ToAddress: walletB, USDValue: 10, Timestamp: late, TokenAddress: "0xT1", TokenSymbol: "T1"},
		{Hash: "0x2", FromAddress: walletA, ToAddress: walletB, USDValue: 20, Timestamp: early, TokenAddress: "0xt1", TokenSymbol: "T1"},
		{Hash: "0x3", FromAddress: walletA, ToAddress: walletC, USDValue: 5, Timestamp: early},
		{Hash: "0x4", FromAddress: walletD, ToAddress: walletA, USDValue: 100, Timestamp: early, TokenAddress: "0xt2", TokenSymbol: "T2"},
		// not touching the wallet
		{Hash: "0x5", FromAddress: walletB, ToAddress: walletC, USDValue: 1000, Timestamp: early},
		// malformed
		{Hash: "0x6", FromAddress: walletA, ToAddress: walletB, USDValue: 1},
	}

	stats := profiler.Profile("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "ethereum", txs)
	require.NotNil(t, stats)

	assert.Equal(t, walletA, stats.Address)
	assert.Equal(t, "ethereum", stats.Blockchain)
	assert.Equal(t, 35.0, stats.TotalSentUSD)
	assert.Equal(t, 100.0, stats.TotalReceivedUSD)
	assert.Equal(t, 135.0, stats.TotalVolumeUSD())
	assert.Equal(t, int64(4), stats.TransactionCount)
	assert.Equal(t, early, stats.FirstTransactionDate)
	assert.Equal(t, late, stats.LastTransactionDate)
	assert.Equal(t, []string{walletB, walletC}, stats.MostFrequentContracts)
	assert.Equal(t, 3, stats.InteractionHours[3])
	assert.Equal(t, 1, stats.InteractionHours[23])

	require.Len(t, stats.UniqueTokens, 2)
	assert.Equal(t, "0xt1", stats.UniqueTokens[0].Address)
	assert.Equal(t, 30.0, stats.UniqueTokens[0].TotalValueUSD)
	assert.Equal(t, int64(2), stats.UniqueTokens[0].TransactionCount)
	assert.Equal(t, "0xt2", stats.UniqueTokens[1].Address)
}

func TestWalletProfiler_TopContractsCapped(t *testing.T) {
	profiler := NewWalletProfiler(logger.NewNop())

	var txs []*entity.TransactionRecord
	for i := 0; i < entity.MaxFrequentContracts+5; i++ {
		to := "0x" + string(rune('a'+i)) + "000000000000000000000000000000000000000"
		for j := 0; j <= i; j++ {
			txs = append(txs, &entity.TransactionRecord{
				Hash: "0xh", FromAddress: walletF, ToAddress: to, USDValue: 1, Timestamp: baseTime,
			})
		}
	}

	stats := profiler.Profile(walletF, "bsc", txs)
	require.Len(t, stats.MostFrequentContracts, entity.MaxFrequentContracts)
	// the most used counterparty received the most transfers
	assert.Equal(t, "0xo000000000000000000000000000000000000000", stats.MostFrequentContracts[0])
}

func TestWalletProfiler_EmptyHistory(t *testing.T) {
	profiler := NewWalletProfiler(logger.NewNop())

	stats := profiler.Profile(walletA, "polygon", nil)
	assert.Equal(t, int64(0), stats.TransactionCount)
	assert.Empty(t, stats.UniqueTokens)
	assert.Empty(t, stats.MostFrequentContracts)
	assert.True(t, stats.FirstTransactionDate.IsZero())
}

func TestWalletProfiler_ContractOrdering(t *testing.T) {
	profiler := NewWalletProfiler(logger.NewNop())

	out := func(hash, to string) *entity.TransactionRecord {
		return &entity.TransactionRecord{Hash: hash, FromAddress: walletA, ToAddress: to, USDValue: 1, Timestamp: baseTime}
	}
	txs := []*entity.TransactionRecord{
		out("0x1", walletD),
		out("0x2", walletC),
		out("0x3", walletB),
		out("0x4", walletB),
		out("0x5", walletA),
		// incoming transfers do not count toward contracts
		{Hash: "0x6", FromAddress: walletE, ToAddress: walletA, USDValue: 1, Timestamp: baseTime},
		{Hash: "0x7", FromAddress: walletE, ToAddress: walletA, USDValue: 1, Timestamp: baseTime},
		{Hash: "0x8", FromAddress: walletE, ToAddress: walletA, USDValue: 1, Timestamp: baseTime},
	}

	stats := profiler.Profile(walletA, "ethereum", txs)
	// most used first, then ties by address; self-transfers excluded
	assert.Equal(t, []string{walletB, walletC, walletD}, stats.MostFrequentContracts)
}
