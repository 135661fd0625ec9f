package service

import (
	"context"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
)

// TransactionSource fetches the transaction history of one wallet
type TransactionSource interface {
	// GetWalletTransactions returns transactions touching address on chain since the given time.
	// A zero since means the full available history.
	GetWalletTransactions(ctx context.Context, address, chain string, since time.Time) ([]*entity.TransactionRecord, error)
}

// NarrativeAnalyzer produces narrative risk assessments from computed statistics
type NarrativeAnalyzer interface {
	AnalyzeWallet(ctx context.Context, stats *entity.WalletStats) (*entity.AIAnalysis, error)
	AnalyzeRelationships(ctx context.Context, stats []*entity.WalletStats, graph *entity.GraphData, clusters []entity.Cluster) ([]entity.WalletRelation, error)
	Enabled() bool
}
