package entity

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMalformedTransaction is returned when a transaction record lacks a required field
// or carries a value that cannot be used for graph construction
var ErrMalformedTransaction = errors.New("malformed transaction")

// TransactionRecord represents a normalized transaction fetched from the indexing API
type TransactionRecord struct {
	Hash          string    `json:"hash"`
	FromAddress   string    `json:"from_address"`
	ToAddress     string    `json:"to_address"`
	Value         string    `json:"value"`
	USDValue      float64   `json:"usd_value"`
	Timestamp     time.Time `json:"timestamp"`
	TokenAddress  string    `json:"token_address,omitempty"`
	TokenSymbol   string    `json:"token_symbol,omitempty"`
	TokenDecimals int       `json:"token_decimals,omitempty"`
	Network       string    `json:"network"`
}

// Validate checks the fields graph construction depends on
func (t *TransactionRecord) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil record", ErrMalformedTransaction)
	}
	if strings.TrimSpace(t.Hash) == "" {
		return fmt.Errorf("%w: missing hash", ErrMalformedTransaction)
	}
	if strings.TrimSpace(t.FromAddress) == "" {
		return fmt.Errorf("%w: missing from address (tx %s)", ErrMalformedTransaction, t.Hash)
	}
	if strings.TrimSpace(t.ToAddress) == "" {
		return fmt.Errorf("%w: missing to address (tx %s)", ErrMalformedTransaction, t.Hash)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp (tx %s)", ErrMalformedTransaction, t.Hash)
	}
	if math.IsNaN(t.USDValue) || math.IsInf(t.USDValue, 0) || t.USDValue < 0 {
		return fmt.Errorf("%w: invalid usd value %v (tx %s)", ErrMalformedTransaction, t.USDValue, t.Hash)
	}
	return nil
}

// DedupKey identifies a transfer across the per-wallet histories of several wallets.
// A native transfer and the ERC20 transfers it triggers share a hash, so the token is part of the key.
func (t *TransactionRecord) DedupKey() string {
	return strings.Join([]string{
		strings.ToLower(t.Hash),
		NormalizeAddress(t.FromAddress),
		NormalizeAddress(t.ToAddress),
		NormalizeAddress(t.TokenAddress),
	}, "|")
}

// NormalizeAddress returns the canonical (trimmed, lowercased) form of an address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
