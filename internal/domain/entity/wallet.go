package entity

import (
	"time"
)

// HoursPerDay is the number of buckets in an hourly activity histogram
const HoursPerDay = 24

// MaxFrequentContracts caps the most-frequent-contracts list of a wallet profile
const MaxFrequentContracts = 10

// DefaultChain is used when a request row names no chain
const DefaultChain = "ethereum"

// SupportedChains lists the chains an analysis can run against
var SupportedChains = []string{"ethereum", "bsc", "polygon"}

// IsSupportedChain reports whether chain is one of SupportedChains
func IsSupportedChain(chain string) bool {
	for _, c := range SupportedChains {
		if c == chain {
			return true
		}
	}
	return false
}

// WalletAddress is one row of an analysis request
type WalletAddress struct {
	Address    string `json:"address"`
	Blockchain string `json:"blockchain"`
}

// TokenInfo summarizes a wallet's activity in one token
type TokenInfo struct {
	Address          string  `json:"address"`
	Symbol           string  `json:"symbol"`
	TotalValueUSD    float64 `json:"total_value_usd"`
	TransactionCount int64   `json:"transaction_count"`
}

// WalletProfile is the behavioral fingerprint used for similarity scoring
type WalletProfile struct {
	InteractionHours      [HoursPerDay]int `json:"interaction_hours"`
	MostFrequentContracts []string         `json:"most_frequent_contracts"`
	UniqueTokens          []string         `json:"unique_tokens"`
}

// WalletStats represents statistics for an analyzed wallet
type WalletStats struct {
	Address               string           `json:"address"`
	Blockchain            string           `json:"blockchain"`
	TotalSentUSD          float64          `json:"total_sent_usd"`
	TotalReceivedUSD      float64          `json:"total_received_usd"`
	TransactionCount      int64            `json:"transaction_count"`
	UniqueTokens          []TokenInfo      `json:"unique_tokens"`
	FirstTransactionDate  time.Time        `json:"first_transaction_date"`
	LastTransactionDate   time.Time        `json:"last_transaction_date"`
	MostFrequentContracts []string         `json:"most_frequent_contracts"`
	InteractionHours      [HoursPerDay]int `json:"interaction_hours"`
}

// TotalVolumeUSD returns sent plus received volume
func (w *WalletStats) TotalVolumeUSD() float64 {
	return w.TotalSentUSD + w.TotalReceivedUSD
}
