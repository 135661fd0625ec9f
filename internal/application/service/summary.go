package service

import (
	"fmt"
	"strings"

	"wallet-cluster-analyzer/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// Summarize renders the human readable summary of a report
func Summarize(stats []*entity.WalletStats, relations []entity.WalletRelation, insights []*entity.AIAnalysis, clusters []entity.Cluster) string {
	volume := decimal.Zero
	for _, s := range stats {
		if s == nil {
			continue
		}
		volume = volume.Add(decimal.NewFromFloat(s.TotalVolumeUSD()))
	}

	highRisk := 0
	for _, in := range insights {
		if in != nil && in.RiskScore > entity.HighRiskThreshold {
			highRisk++
		}
	}

	strong := 0
	for _, rel := range relations {
		if rel.ConfidenceScore > entity.StrongRelationshipThreshold {
			strong++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis completed for %d wallets.\n", len(stats))
	fmt.Fprintf(&b, "Total volume analyzed: $%s USD\n", formatUSD(volume))
	fmt.Fprintf(&b, "High risk wallets identified: %d\n", highRisk)
	fmt.Fprintf(&b, "Strong relationships detected: %d\n", strong)
	fmt.Fprintf(&b, "Clusters detected: %d", len(clusters))
	return b.String()
}

// formatUSD renders an amount with two decimals and thousands separators
func formatUSD(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
