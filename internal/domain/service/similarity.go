package service

import (
	"math"

	"wallet-cluster-analyzer/internal/domain/entity"
)

// Similarity weights; they sum to 1.0
const (
	timePatternWeight     = 0.3
	contractOverlapWeight = 0.3
	valuePatternWeight    = 0.2
	tokenOverlapWeight    = 0.2
)

// DefaultAddressLabelLength is the longest address shown untruncated
const DefaultAddressLabelLength = 12

// FormatAddress shortens an address for display as first 6 + "..." + last 4 characters.
// Strings shorter than either slice are used whole on that side.
func FormatAddress(address string, maxLen int) string {
	if len(address) <= maxLen {
		return address
	}
	head := address[:min(6, len(address))]
	tail := address[max(0, len(address)-4):]
	return head + "..." + tail
}

// PairwiseSimilarity scores how alike two wallets behave, in [0, 1]
func PairwiseSimilarity(a, b *entity.GraphNode) float64 {
	if a == nil || b == nil {
		return 0
	}

	score := CompareTimePatterns(a.Profile.InteractionHours, b.Profile.InteractionHours) * timePatternWeight
	score += CompareContractOverlap(a.Profile.MostFrequentContracts, b.Profile.MostFrequentContracts) * contractOverlapWeight
	score += CompareValuePatterns(a.TotalSentUSD, b.TotalSentUSD) * valuePatternWeight
	score += CompareTokenOverlap(a.Profile.UniqueTokens, b.Profile.UniqueTokens) * tokenOverlapWeight

	return math.Min(1.0, math.Max(0.0, score))
}

// CompareTimePatterns compares two hourly histograms. Hours active on both sides contribute
// min/max of their counts; the sum is divided by 24, not by the number of shared hours.
func CompareTimePatterns(hoursA, hoursB [entity.HoursPerDay]int) float64 {
	if isEmptyHistogram(hoursA) || isEmptyHistogram(hoursB) {
		return 0
	}

	similarity := 0.0
	for hour := 0; hour < entity.HoursPerDay; hour++ {
		countA, countB := hoursA[hour], hoursB[hour]
		if countA > 0 && countB > 0 {
			similarity += float64(min(countA, countB)) / float64(max(countA, countB))
		}
	}
	return similarity / entity.HoursPerDay
}

// CompareContractOverlap is the Jaccard index of two contract address lists
func CompareContractOverlap(contractsA, contractsB []string) float64 {
	return jaccard(contractsA, contractsB)
}

// CompareValuePatterns compares total sent volumes as min/max
func CompareValuePatterns(valueA, valueB float64) float64 {
	if valueA == 0 || valueB == 0 {
		return 0
	}
	return math.Min(valueA, valueB) / math.Max(valueA, valueB)
}

// CompareTokenOverlap is the Jaccard index of two token address lists
func CompareTokenOverlap(tokensA, tokensB []string) float64 {
	return jaccard(tokensA, tokensB)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}

	intersection := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func isEmptyHistogram(h [entity.HoursPerDay]int) bool {
	for _, c := range h {
		if c != 0 {
			return false
		}
	}
	return true
}
