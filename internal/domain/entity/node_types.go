package entity

// EntityType is the kind of actor a wallet is judged to belong to
type EntityType string

const (
	EntityTypeIndividual EntityType = "individual"
	EntityTypeBusiness   EntityType = "business"
	EntityTypeExchange   EntityType = "exchange"
	EntityTypeMixer      EntityType = "mixer"
	EntityTypeContract   EntityType = "smart_contract"
	EntityTypeBot        EntityType = "bot"
	EntityTypeUnknown    EntityType = "unknown"
)

// ParseEntityType maps free text from the narrative service onto a known entity type
func ParseEntityType(s string) EntityType {
	switch EntityType(s) {
	case EntityTypeIndividual, EntityTypeBusiness, EntityTypeExchange, EntityTypeMixer,
		EntityTypeContract, EntityTypeBot:
		return EntityType(s)
	case "contract":
		return EntityTypeContract
	default:
		return EntityTypeUnknown
	}
}

// RiskLevel represents the risk band of a wallet
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
	RiskLevelUnknown  RiskLevel = "UNKNOWN"
)

// HighRiskThreshold is the risk score above which a wallet is reported as high risk
const HighRiskThreshold = 0.7

// StrongRelationshipThreshold is the confidence above which a relation is reported as strong
const StrongRelationshipThreshold = 0.8

// RiskLevelFromScore buckets a 0..1 risk score
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score < 0 || score > 1:
		return RiskLevelUnknown
	case score > 0.9:
		return RiskLevelCritical
	case score > HighRiskThreshold:
		return RiskLevelHigh
	case score > 0.4:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// IsHighRisk checks if the level is high or critical
func (l RiskLevel) IsHighRisk() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}

// RelationshipType describes how two wallets are related
type RelationshipType string

const (
	RelationshipFrequentTransfer RelationshipType = "frequent_transfer"
	RelationshipSimilarPattern   RelationshipType = "similar_pattern"
	RelationshipSameEntity       RelationshipType = "same_entity"
	RelationshipCluster          RelationshipType = "cluster"
	RelationshipSuspicious       RelationshipType = "suspicious"
)
