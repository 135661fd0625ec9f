package entity

import (
	"time"
)

// AIAnalysis is the narrative judgment about a single wallet
type AIAnalysis struct {
	WalletAddress   string     `json:"wallet_address"`
	BehaviorPattern string     `json:"behavior_pattern"`
	EntityType      EntityType `json:"entity_type"`
	RiskScore       float64    `json:"risk_score"`
	RiskLevel       RiskLevel  `json:"risk_level"`
	Observations    []string   `json:"observations"`
	RelatedEntities []string   `json:"related_entities"`
}

// UnknownAnalysis is the judgment used when the narrative service is unavailable or fails
func UnknownAnalysis(address string) *AIAnalysis {
	return &AIAnalysis{
		WalletAddress:   address,
		BehaviorPattern: "analysis unavailable",
		EntityType:      EntityTypeUnknown,
		RiskScore:       0,
		RiskLevel:       RiskLevelUnknown,
		Observations:    []string{},
		RelatedEntities: []string{},
	}
}

// WalletRelation is a relationship between wallets reported by the narrative service
type WalletRelation struct {
	Wallets          []string         `json:"wallets_involved"`
	RelationshipType RelationshipType `json:"relationship_type"`
	ConfidenceScore  float64          `json:"confidence_score"`
	Explanation      string           `json:"explanation"`
}

// AnalysisReport is the final output of one analysis run
type AnalysisReport struct {
	AnalysisID      string           `json:"analysis_id"`
	Timestamp       time.Time        `json:"timestamp"`
	WalletsAnalyzed []*WalletStats   `json:"wallets_analyzed"`
	Relationships   []WalletRelation `json:"relationships"`
	GraphData       *GraphData       `json:"graph_data"`
	Clusters        []Cluster        `json:"clusters"`
	AIInsights      []*AIAnalysis    `json:"ai_insights"`
	Summary         string           `json:"summary"`
}

// AnalysisStatus is the lifecycle state of an analysis job
type AnalysisStatus string

const (
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusError      AnalysisStatus = "error"
)

// AnalysisJob tracks a background analysis
type AnalysisJob struct {
	ID          string          `json:"analysis_id"`
	Status      AnalysisStatus  `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message"`
	Error       string          `json:"error,omitempty"`
	WalletCount int             `json:"wallets_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Report      *AnalysisReport `json:"-"`
}

// Clone returns a shallow copy; the report is shared and treated as immutable once set
func (j *AnalysisJob) Clone() *AnalysisJob {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// AnalysisRequest is the transport-neutral form of a request to analyze wallets
type AnalysisRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	Wallets   []WalletAddress `json:"wallets"`
}

// AnalysisCompletedEvent is published when a job finishes
type AnalysisCompletedEvent struct {
	AnalysisID  string         `json:"analysis_id"`
	RequestID   string         `json:"request_id,omitempty"`
	Status      AnalysisStatus `json:"status"`
	WalletCount int            `json:"wallets"`
	Clusters    int            `json:"clusters"`
	Error       string         `json:"error,omitempty"`
	FinishedAt  time.Time      `json:"finished_at"`
}
