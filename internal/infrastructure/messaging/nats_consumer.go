package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/config"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Replies sent to requesters that used request-reply
var (
	replyAccepted = []byte("ACCEPTED")
	replyInvalid  = []byte("ERROR: invalid analysis request")
	replyBusy     = []byte("ERROR: analyzer busy")
)

// NATSConsumer receives analysis requests over a NATS queue subscription
type NATSConsumer struct {
	mu        sync.Mutex
	conn      *nats.Conn
	sub       *nats.Subscription
	config    *config.NATSConfig
	logger    *logger.Logger
	msgChan   chan *entity.AnalysisRequest
	isRunning bool
	closed    bool
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(cfg *config.NATSConfig, logger *logger.Logger) *NATSConsumer {
	size := cfg.MaxPendingMessages
	if size <= 0 {
		size = 1
	}
	return &NATSConsumer{
		config:  cfg,
		logger:  logger.WithComponent("nats-consumer"),
		msgChan: make(chan *entity.AnalysisRequest, size),
	}
}

// Connect connects to NATS server and subscribes to the request subject
func (n *NATSConsumer) Connect(ctx context.Context) error {
	if !n.config.Enabled {
		n.logger.Info("NATS is disabled, skipping connection")
		return nil
	}

	conn, err := connect(n.config, "wallet-cluster-analyzer-consumer", n.logger)
	if err != nil {
		return err
	}

	subject := n.config.RequestSubject()
	queueGroup := n.config.ConsumerGroup

	n.logger.Info("Setting up NATS subscription",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	sub, err := conn.QueueSubscribe(subject, queueGroup, n.handleMessage)
	if err != nil {
		conn.Close()
		n.logger.Error("Failed to subscribe to subject", zap.Error(err))
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.sub = sub
	n.isRunning = true
	n.mu.Unlock()

	n.logger.Info("Successfully subscribed to analysis requests",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))

	return nil
}

// handleMessage decodes one analysis request and queues it for processing
func (n *NATSConsumer) handleMessage(msg *nats.Msg) {
	var req entity.AnalysisRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || len(req.Wallets) == 0 {
		n.logger.Error("Rejected analysis request",
			zap.Int("wallets", len(req.Wallets)),
			zap.Error(err))
		respond(msg, replyInvalid)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		respond(msg, replyBusy)
		return
	}

	select {
	case n.msgChan <- &req:
		n.logger.Debug("Queued analysis request",
			zap.String("request_id", req.RequestID),
			zap.Int("wallets", len(req.Wallets)))
		respond(msg, replyAccepted)
	default:
		n.logger.Warn("Request channel is full, dropping request", zap.String("request_id", req.RequestID))
		respond(msg, replyBusy)
	}
}

func respond(msg *nats.Msg, data []byte) {
	if msg.Reply == "" || msg.Sub == nil {
		return
	}
	_ = msg.Respond(data)
}

// Disconnect unsubscribes and closes the connection. The request channel is closed;
// requests arriving afterwards are refused.
func (n *NATSConsumer) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sub != nil {
		_ = n.sub.Unsubscribe()
		n.sub = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	n.isRunning = false
	if !n.closed {
		n.closed = true
		close(n.msgChan)
	}
	n.logger.Info("Disconnected from NATS")
	return nil
}

// IsConnected checks if connected to NATS
func (n *NATSConsumer) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.isRunning && n.conn != nil && n.conn.IsConnected()
}

// GetMessageChannel returns the request channel
func (n *NATSConsumer) GetMessageChannel() <-chan *entity.AnalysisRequest {
	return n.msgChan
}
