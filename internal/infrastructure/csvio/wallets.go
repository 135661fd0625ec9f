// Package csvio reads wallet lists and writes analysis reports as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"wallet-cluster-analyzer/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addressColumn    = "wallet_address"
	blockchainColumn = "blockchain"

	// maxReportedInvalid caps how many offending values an error message lists
	maxReportedInvalid = 5
)

var (
	ErrEmptyFile        = errors.New("csv file is empty")
	ErrMissingColumn    = errors.New("csv file must contain a 'wallet_address' column")
	ErrUnsupportedChain = errors.New("unsupported blockchain")
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrTooManyWallets   = errors.New("too many wallets")
)

// Summary describes the content of a parsed wallet list
type Summary struct {
	TotalAddresses   int            `json:"total_addresses"`
	AddressesByChain map[string]int `json:"addresses_by_chain"`
	ValidationStatus string         `json:"validation_status"`
}

// ParseWalletCSV reads a wallet list with a required wallet_address column and an
// optional blockchain column. Addresses are lowercased and de-duplicated per chain;
// the result keeps first-seen order. maxWallets <= 0 disables the limit.
func ParseWalletCSV(r io.Reader, maxWallets int) ([]entity.WalletAddress, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	addrIdx, chainIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))) {
		case addressColumn:
			addrIdx = i
		case blockchainColumn:
			chainIdx = i
		}
	}
	if addrIdx < 0 {
		return nil, ErrMissingColumn
	}

	var (
		wallets        []entity.WalletAddress
		seen           = make(map[entity.WalletAddress]struct{})
		invalidAddrs   []string
		invalidChains  []string
		reportedChains = make(map[string]struct{})
	)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		raw := field(record, addrIdx)
		if raw == "" {
			continue
		}

		chain := strings.ToLower(field(record, chainIdx))
		if chain == "" {
			chain = entity.DefaultChain
		}
		if !entity.IsSupportedChain(chain) {
			if _, ok := reportedChains[chain]; !ok {
				reportedChains[chain] = struct{}{}
				invalidChains = append(invalidChains, chain)
			}
			continue
		}

		if !common.IsHexAddress(raw) {
			invalidAddrs = append(invalidAddrs, raw)
			continue
		}

		wallet := entity.WalletAddress{Address: entity.NormalizeAddress(raw), Blockchain: chain}
		if _, dup := seen[wallet]; dup {
			continue
		}
		seen[wallet] = struct{}{}
		wallets = append(wallets, wallet)
	}

	if len(invalidChains) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, strings.Join(invalidChains, ", "))
	}
	if len(invalidAddrs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, listSome(invalidAddrs))
	}
	if len(wallets) == 0 {
		return nil, ErrEmptyFile
	}
	if maxWallets > 0 && len(wallets) > maxWallets {
		return nil, fmt.Errorf("%w: %d wallets, limit is %d", ErrTooManyWallets, len(wallets), maxWallets)
	}

	return wallets, nil
}

// GroupByChain groups wallet addresses by blockchain, keeping first-seen order
func GroupByChain(wallets []entity.WalletAddress) map[string][]string {
	grouped := make(map[string][]string)
	for _, w := range wallets {
		grouped[w.Blockchain] = append(grouped[w.Blockchain], w.Address)
	}
	return grouped
}

// Summarize counts wallets per chain
func Summarize(wallets []entity.WalletAddress) Summary {
	grouped := GroupByChain(wallets)
	summary := Summary{
		TotalAddresses:   len(wallets),
		AddressesByChain: make(map[string]int, len(grouped)),
		ValidationStatus: "success",
	}
	for chain, addresses := range grouped {
		summary.AddressesByChain[chain] = len(addresses)
	}
	return summary
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func listSome(values []string) string {
	if len(values) <= maxReportedInvalid {
		return strings.Join(values, ", ")
	}
	return strings.Join(values[:maxReportedInvalid], ", ") + fmt.Sprintf(" and %d more", len(values)-maxReportedInvalid)
}
