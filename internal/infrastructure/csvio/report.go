package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
)

// reportContracts is how many frequent contracts a report row lists
const reportContracts = 5

var reportHeader = []string{
	"wallet_address",
	"blockchain",
	"total_sent_usd",
	"total_received_usd",
	"transaction_count",
	"first_transaction",
	"last_transaction",
	"unique_tokens_count",
	"most_frequent_contracts",
}

// WriteReportCSV writes one row per analyzed wallet
func WriteReportCSV(w io.Writer, report *entity.AnalysisReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, stats := range report.WalletsAnalyzed {
		if stats == nil {
			continue
		}
		contracts := stats.MostFrequentContracts
		if len(contracts) > reportContracts {
			contracts = contracts[:reportContracts]
		}
		row := []string{
			stats.Address,
			stats.Blockchain,
			strconv.FormatFloat(stats.TotalSentUSD, 'f', -1, 64),
			strconv.FormatFloat(stats.TotalReceivedUSD, 'f', -1, 64),
			strconv.FormatInt(stats.TransactionCount, 10),
			formatDate(stats.FirstTransactionDate),
			formatDate(stats.LastTransactionDate),
			strconv.Itoa(len(stats.UniqueTokens)),
			strings.Join(contracts, ","),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", stats.Address, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
