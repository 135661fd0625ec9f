package service

import (
	"sort"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// WalletProfiler computes per-wallet behavioral statistics from a wallet's own history
type WalletProfiler struct {
	logger *logger.Logger
}

// NewWalletProfiler creates a new wallet profiler
func NewWalletProfiler(logger *logger.Logger) *WalletProfiler {
	return &WalletProfiler{
		logger: logger.WithComponent("wallet-profiler"),
	}
}

// Profile aggregates the transactions of one wallet into WalletStats.
// Transactions that do not touch the wallet or fail validation are skipped.
func (p *WalletProfiler) Profile(address, blockchain string, transactions []*entity.TransactionRecord) *entity.WalletStats {
	address = entity.NormalizeAddress(address)
	acc := newWalletAccumulator(address)

	skipped := 0
	for _, tx := range transactions {
		if err := tx.Validate(); err != nil {
			skipped++
			continue
		}
		from := entity.NormalizeAddress(tx.FromAddress)
		to := entity.NormalizeAddress(tx.ToAddress)

		switch address {
		case from:
			acc.observe(to, true, tx.USDValue, tx.Timestamp, tx.TokenAddress, tx.TokenSymbol)
		case to:
			acc.observe(from, false, tx.USDValue, tx.Timestamp, tx.TokenAddress, tx.TokenSymbol)
		default:
			skipped++
		}
	}

	if skipped > 0 {
		p.logger.Debug("Skipped transactions while profiling wallet",
			zap.String("address", address),
			zap.Int("skipped", skipped))
	}

	return acc.stats(blockchain)
}

// walletAccumulator incrementally collects the statistics of one address.
// It is shared by the profiler and the graph builder so both produce the same fingerprint.
type walletAccumulator struct {
	address        string
	totalSent      float64
	totalReceived  float64
	txCount        int64
	hours          [entity.HoursPerDay]int
	contractCounts map[string]int
	tokens         []*entity.TokenInfo
	tokenIndex     map[string]*entity.TokenInfo
	first          time.Time
	last           time.Time
}

func newWalletAccumulator(address string) *walletAccumulator {
	return &walletAccumulator{
		address:        address,
		contractCounts: make(map[string]int),
		tokenIndex:     make(map[string]*entity.TokenInfo),
	}
}

// observe records one transaction seen from the accumulated address
func (a *walletAccumulator) observe(counterparty string, outgoing bool, usdValue float64, ts time.Time, tokenAddress, tokenSymbol string) {
	a.txCount++
	if outgoing {
		a.totalSent += usdValue
		if counterparty != "" && counterparty != a.address {
			a.contractCounts[counterparty]++
		}
	} else {
		a.totalReceived += usdValue
	}

	a.hours[ts.UTC().Hour()]++

	if tokenAddress = entity.NormalizeAddress(tokenAddress); tokenAddress != "" {
		token, ok := a.tokenIndex[tokenAddress]
		if !ok {
			token = &entity.TokenInfo{Address: tokenAddress, Symbol: tokenSymbol}
			a.tokenIndex[tokenAddress] = token
			a.tokens = append(a.tokens, token)
		}
		token.TotalValueUSD += usdValue
		token.TransactionCount++
	}

	if a.first.IsZero() || ts.Before(a.first) {
		a.first = ts
	}
	if a.last.IsZero() || ts.After(a.last) {
		a.last = ts
	}
}

// topContracts returns the most frequent outgoing counterparties, ties broken by address
func (a *walletAccumulator) topContracts() []string {
	contracts := make([]string, 0, len(a.contractCounts))
	for c := range a.contractCounts {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool {
		ci, cj := a.contractCounts[contracts[i]], a.contractCounts[contracts[j]]
		if ci != cj {
			return ci > cj
		}
		return contracts[i] < contracts[j]
	})
	if len(contracts) > entity.MaxFrequentContracts {
		contracts = contracts[:entity.MaxFrequentContracts]
	}
	return contracts
}

func (a *walletAccumulator) tokenAddresses() []string {
	addrs := make([]string, 0, len(a.tokens))
	for _, t := range a.tokens {
		addrs = append(addrs, t.Address)
	}
	return addrs
}

func (a *walletAccumulator) profile() entity.WalletProfile {
	return entity.WalletProfile{
		InteractionHours:      a.hours,
		MostFrequentContracts: a.topContracts(),
		UniqueTokens:          a.tokenAddresses(),
	}
}

func (a *walletAccumulator) stats(blockchain string) *entity.WalletStats {
	tokens := make([]entity.TokenInfo, 0, len(a.tokens))
	for _, t := range a.tokens {
		tokens = append(tokens, *t)
	}
	return &entity.WalletStats{
		Address:               a.address,
		Blockchain:            blockchain,
		TotalSentUSD:          a.totalSent,
		TotalReceivedUSD:      a.totalReceived,
		TransactionCount:      a.txCount,
		UniqueTokens:          tokens,
		FirstTransactionDate:  a.first,
		LastTransactionDate:   a.last,
		MostFrequentContracts: a.topContracts(),
		InteractionHours:      a.hours,
	}
}
