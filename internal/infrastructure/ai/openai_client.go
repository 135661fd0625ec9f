package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/config"
	"wallet-cluster-analyzer/internal/infrastructure/logger"
	"wallet-cluster-analyzer/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

const (
	openAIService    = "openai"
	maxErrorBodySize = 512
)

var (
	// ErrDisabled is returned when no API key is configured
	ErrDisabled = errors.New("narrative analysis disabled")
	// ErrNoJSON is returned when a completion carries no JSON document
	ErrNoJSON = errors.New("no JSON in completion")
)

// OpenAIClient produces narrative wallet assessments through an OpenAI compatible chat API
type OpenAIClient struct {
	cfg        config.OpenAIConfig
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg config.OpenAIConfig, m *metrics.Metrics, logger *logger.Logger) *OpenAIClient {
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
		logger:     logger.WithComponent("openai-client"),
	}
}

// Enabled reports whether an API key is configured
func (c *OpenAIClient) Enabled() bool {
	return c.cfg.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type walletAssessment struct {
	BehaviorPattern string   `json:"behavior_pattern"`
	EntityType      string   `json:"entity_type"`
	RiskScore       float64  `json:"risk_score"`
	Observations    []string `json:"observations"`
	RelatedEntities []string `json:"related_entities"`
}

// AnalyzeWallet asks the model to classify one wallet
func (c *OpenAIClient) AnalyzeWallet(ctx context.Context, stats *entity.WalletStats) (*entity.AIAnalysis, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if stats == nil {
		return nil, fmt.Errorf("nil wallet stats")
	}

	content, err := c.complete(ctx, walletSystemPrompt, walletPrompt(stats))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze wallet %s: %w", stats.Address, err)
	}

	var assessment walletAssessment
	if err := decodeLenient(content, &assessment); err != nil {
		return nil, fmt.Errorf("failed to parse assessment for %s: %w", stats.Address, err)
	}

	return assessment.toAnalysis(stats.Address), nil
}

// AnalyzeRelationships asks the model which wallets are related
func (c *OpenAIClient) AnalyzeRelationships(ctx context.Context, stats []*entity.WalletStats, graph *entity.GraphData, clusters []entity.Cluster) ([]entity.WalletRelation, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if len(stats) < 2 {
		return []entity.WalletRelation{}, nil
	}

	content, err := c.complete(ctx, relationshipSystemPrompt, relationshipPrompt(stats, graph, clusters))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze relationships: %w", err)
	}

	relations, err := parseRelations(content)
	if err != nil {
		return nil, err
	}
	return relations, nil
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	content, err := c.do(req)
	c.metrics.RecordUpstream(openAIService, time.Since(start).Seconds(), err)
	return content, err
}

func (c *OpenAIClient) do(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	c.logger.Debug("Chat completion received", zap.Int("length", len(out.Choices[0].Message.Content)))
	return out.Choices[0].Message.Content, nil
}

func (a walletAssessment) toAnalysis(address string) *entity.AIAnalysis {
	score := a.RiskScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	pattern := a.BehaviorPattern
	if pattern == "" {
		pattern = "Unknown"
	}
	observations := a.Observations
	if observations == nil {
		observations = []string{}
	}
	related := a.RelatedEntities
	if related == nil {
		related = []string{}
	}
	return &entity.AIAnalysis{
		WalletAddress:   address,
		BehaviorPattern: pattern,
		EntityType:      entity.ParseEntityType(strings.ToLower(strings.TrimSpace(a.EntityType))),
		RiskScore:       score,
		RiskLevel:       entity.RiskLevelFromScore(score),
		Observations:    observations,
		RelatedEntities: related,
	}
}

type relationPayload struct {
	Wallets          []string `json:"wallets_involved"`
	RelationshipType string   `json:"relationship_type"`
	ConfidenceScore  *float64 `json:"confidence_score"`
	Explanation      string   `json:"explanation"`
}

// parseRelations accepts a bare array or an object wrapping it under "relationships".
// Entries missing a required field are dropped.
func parseRelations(content string) ([]entity.WalletRelation, error) {
	var payload []relationPayload
	if err := decodeLenient(content, &payload); err != nil {
		var wrapped struct {
			Relationships []relationPayload `json:"relationships"`
		}
		if werr := decodeLenient(content, &wrapped); werr != nil {
			return nil, fmt.Errorf("failed to parse relationships: %w", err)
		}
		payload = wrapped.Relationships
	}

	relations := make([]entity.WalletRelation, 0, len(payload))
	for _, p := range payload {
		if len(p.Wallets) == 0 || p.RelationshipType == "" || p.ConfidenceScore == nil || p.Explanation == "" {
			continue
		}
		wallets := make([]string, 0, len(p.Wallets))
		for _, w := range p.Wallets {
			wallets = append(wallets, entity.NormalizeAddress(w))
		}
		relations = append(relations, entity.WalletRelation{
			Wallets:          wallets,
			RelationshipType: entity.RelationshipType(strings.ToLower(p.RelationshipType)),
			ConfidenceScore:  *p.ConfidenceScore,
			Explanation:      p.Explanation,
		})
	}
	return relations, nil
}

// decodeLenient decodes the outermost JSON value of content, ignoring prose or code fences around it
func decodeLenient(content string, out any) error {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ErrNoJSON
	}
	closing := byte('}')
	if content[start] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(content, closing)
	if end < start {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(content[start:end+1]), out)
}
