package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/config"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher publishes analysis completion events
type NATSPublisher struct {
	conn   *nats.Conn
	config *config.NATSConfig
	logger *logger.Logger
}

// NewNATSPublisher creates a new NATS publisher
func NewNATSPublisher(cfg *config.NATSConfig, logger *logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		config: cfg,
		logger: logger.WithComponent("nats-publisher"),
	}
}

// Connect connects to NATS server
func (p *NATSPublisher) Connect(ctx context.Context) error {
	if !p.config.Enabled {
		p.logger.Info("NATS is disabled, completion events will not be published")
		return nil
	}

	conn, err := connect(p.config, "wallet-cluster-analyzer-publisher", p.logger)
	if err != nil {
		return err
	}
	p.conn = conn
	return nil
}

// PublishCompleted publishes a completion event. It is a no-op when NATS is disabled.
func (p *NATSPublisher) PublishCompleted(ctx context.Context, event *entity.AnalysisCompletedEvent) error {
	if p.conn == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode completion event: %w", err)
	}

	subject := p.config.CompletedSubject()
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("Published completion event",
		zap.String("subject", subject),
		zap.String("analysis_id", event.AnalysisID),
		zap.String("status", string(event.Status)))
	return nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	return err
}
