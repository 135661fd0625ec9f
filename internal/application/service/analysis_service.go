package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/domain/repository"
	"wallet-cluster-analyzer/internal/domain/service"
	"wallet-cluster-analyzer/internal/infrastructure/config"
	"wallet-cluster-analyzer/internal/infrastructure/logger"
	"wallet-cluster-analyzer/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress checkpoints of a job
const (
	fetchProgressShare = 80
	graphProgress      = 85
	narrativeProgress  = 90
	reportProgress     = 95
	doneProgress       = 100
)

// AnalysisApplicationService implements AnalysisService
type AnalysisApplicationService struct {
	cfg       config.AnalysisConfig
	lookback  time.Duration
	repo      repository.AnalysisRepository
	source    service.TransactionSource
	narrator  service.NarrativeAnalyzer
	exporter  repository.GraphExportRepository
	publisher service.EventPublisher
	profiler  *service.WalletProfiler
	metrics   *metrics.Metrics
	logger    *logger.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewAnalysisApplicationService creates a new analysis application service.
// exporter and publisher may be nil.
func NewAnalysisApplicationService(
	cfg *config.Config,
	repo repository.AnalysisRepository,
	source service.TransactionSource,
	narrator service.NarrativeAnalyzer,
	exporter repository.GraphExportRepository,
	publisher service.EventPublisher,
	m *metrics.Metrics,
	logger *logger.Logger,
) *AnalysisApplicationService {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &AnalysisApplicationService{
		cfg:       cfg.Analysis,
		lookback:  time.Duration(cfg.Moralis.LookbackDays) * 24 * time.Hour,
		repo:      repo,
		source:    source,
		narrator:  narrator,
		exporter:  exporter,
		publisher: publisher,
		profiler:  service.NewWalletProfiler(logger),
		metrics:   m,
		logger:    logger.WithComponent("analysis-service"),
		baseCtx:   baseCtx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// StartAnalysis registers a job and runs it in the background
func (s *AnalysisApplicationService) StartAnalysis(ctx context.Context, wallets []entity.WalletAddress) (string, error) {
	return s.start(ctx, wallets, "")
}

// HandleRequest starts an analysis for a request received over a transport
func (s *AnalysisApplicationService) HandleRequest(ctx context.Context, req *entity.AnalysisRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: empty request", service.ErrInvalidRequest)
	}
	return s.start(ctx, req.Wallets, req.RequestID)
}

func (s *AnalysisApplicationService) start(ctx context.Context, wallets []entity.WalletAddress, requestID string) (string, error) {
	wallets, err := s.normalizeWallets(wallets)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	job := &entity.AnalysisJob{
		ID:          uuid.NewString(),
		Status:      entity.AnalysisStatusProcessing,
		Progress:    0,
		Message:     "Starting analysis",
		WalletCount: len(wallets),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return "", fmt.Errorf("failed to register analysis: %w", err)
	}
	s.metrics.SetStoredAnalyses(s.repo.Len())
	s.metrics.RecordAnalysisStarted(len(wallets))

	s.logger.Info("Analysis started",
		zap.String("analysis_id", job.ID),
		zap.String("request_id", requestID),
		zap.Int("wallets", len(wallets)))

	s.wg.Add(1)
	go s.run(job.ID, requestID, wallets)

	return job.ID, nil
}

// normalizeWallets lowercases addresses, defaults the chain and drops repeated (chain, address) pairs
func (s *AnalysisApplicationService) normalizeWallets(wallets []entity.WalletAddress) ([]entity.WalletAddress, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("%w: no wallets", service.ErrInvalidRequest)
	}

	seen := make(map[string]struct{}, len(wallets))
	out := make([]entity.WalletAddress, 0, len(wallets))
	for _, w := range wallets {
		addr := entity.NormalizeAddress(w.Address)
		if addr == "" {
			return nil, fmt.Errorf("%w: empty wallet address", service.ErrInvalidRequest)
		}
		chain := w.Blockchain
		if chain == "" {
			chain = entity.DefaultChain
		}
		if !entity.IsSupportedChain(chain) {
			return nil, fmt.Errorf("%w: unsupported chain %q", service.ErrInvalidRequest, chain)
		}
		key := chain + ":" + addr
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entity.WalletAddress{Address: addr, Blockchain: chain})
	}

	if len(out) > s.cfg.MaxWalletsPerRequest {
		return nil, fmt.Errorf("%w: %d wallets exceeds the limit of %d",
			service.ErrInvalidRequest, len(out), s.cfg.MaxWalletsPerRequest)
	}
	return out, nil
}

// run executes one job. It owns every status transition after registration.
func (s *AnalysisApplicationService) run(id, requestID string, wallets []entity.WalletAddress) {
	defer s.wg.Done()

	start := s.now()
	log := s.logger.WithAnalysis(id)

	ctx := s.baseCtx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	report, err := s.analyzeSafely(ctx, id, wallets, log)
	if err != nil {
		log.Error("Analysis failed", zap.Error(err))
		s.update(id, func(job *entity.AnalysisJob) {
			job.Status = entity.AnalysisStatusError
			job.Error = err.Error()
			job.Message = "Analysis failed"
		})
		s.metrics.RecordAnalysisFinished(string(entity.AnalysisStatusError), s.now().Sub(start).Seconds())
		s.publish(id, requestID, entity.AnalysisStatusError, len(wallets), 0, err.Error(), log)
		return
	}

	s.update(id, func(job *entity.AnalysisJob) {
		job.Status = entity.AnalysisStatusCompleted
		job.Progress = doneProgress
		job.Message = "Analysis completed"
		job.Report = report
	})
	s.metrics.RecordAnalysisFinished(string(entity.AnalysisStatusCompleted), s.now().Sub(start).Seconds())

	log.Info("Analysis completed",
		zap.Int("wallets", len(report.WalletsAnalyzed)),
		zap.Int("nodes", len(report.GraphData.Nodes)),
		zap.Int("edges", len(report.GraphData.Edges)),
		zap.Int("clusters", len(report.Clusters)),
		zap.Duration("duration", s.now().Sub(start)))

	s.exportGraph(ctx, id, report.GraphData, log)
	s.publish(id, requestID, entity.AnalysisStatusCompleted, len(wallets), len(report.Clusters), "", log)
}

func (s *AnalysisApplicationService) analyzeSafely(ctx context.Context, id string, wallets []entity.WalletAddress, log *logger.Logger) (report *entity.AnalysisReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()
	return s.analyze(ctx, id, wallets, log)
}

func (s *AnalysisApplicationService) analyze(ctx context.Context, id string, wallets []entity.WalletAddress, log *logger.Logger) (*entity.AnalysisReport, error) {
	histories, err := s.fetchHistories(ctx, id, wallets, log)
	if err != nil {
		return nil, err
	}

	stats := make([]*entity.WalletStats, len(wallets))
	analyzed := make([]string, len(wallets))
	for i, w := range wallets {
		stats[i] = s.profiler.Profile(w.Address, w.Blockchain, histories[i])
		analyzed[i] = w.Address
	}

	s.progress(id, graphProgress, "Building transaction graph")
	merged := mergeTransactions(histories)

	graphStart := s.now()
	graphSvc := service.NewGraphService(service.GraphServiceConfig{
		Resolution: s.cfg.LouvainResolution,
		Seed:       s.cfg.LouvainSeed,
	}, log)
	graphData, err := graphSvc.BuildGraph(merged, analyzed)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction graph: %w", err)
	}
	clusters := graphSvc.DetectClusters()
	s.metrics.RecordGraph(len(graphData.Nodes), graphSvc.SkippedTransactions(), len(clusters), s.now().Sub(graphStart).Seconds())

	log.Info("Transaction graph built",
		zap.Int("transactions", len(merged)),
		zap.Int("skipped", graphSvc.SkippedTransactions()),
		zap.Int("nodes", len(graphData.Nodes)),
		zap.Int("edges", len(graphData.Edges)),
		zap.Int("clusters", len(clusters)))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	s.progress(id, narrativeProgress, "Running narrative analysis")
	insights, relations := s.narrate(ctx, stats, graphData, clusters, log)

	s.progress(id, reportProgress, "Generating report")
	return &entity.AnalysisReport{
		AnalysisID:      id,
		Timestamp:       s.now().UTC(),
		WalletsAnalyzed: stats,
		Relationships:   relations,
		GraphData:       graphData,
		Clusters:        clusters,
		AIInsights:      insights,
		Summary:         Summarize(stats, relations, insights, clusters),
	}, nil
}

// fetchHistories fetches every wallet's history with bounded concurrency.
// A failing wallet degrades to an empty history.
func (s *AnalysisApplicationService) fetchHistories(ctx context.Context, id string, wallets []entity.WalletAddress, log *logger.Logger) ([][]*entity.TransactionRecord, error) {
	histories := make([][]*entity.TransactionRecord, len(wallets))
	total := len(wallets)

	var since time.Time
	if s.lookback > 0 {
		since = s.now().Add(-s.lookback)
	}

	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.FetchConcurrency, 1))

	for i, w := range wallets {
		g.Go(func() error {
			txs, err := s.source.GetWalletTransactions(gctx, w.Address, w.Blockchain, since)
			if err != nil {
				log.Warn("Failed to fetch wallet transactions",
					zap.String("address", w.Address),
					zap.String("blockchain", w.Blockchain),
					zap.Error(err))
				txs = nil
			}
			histories[i] = txs

			done := processed.Add(1)
			s.progress(id, int(done)*fetchProgressShare/total,
				fmt.Sprintf("Fetched wallet %d of %d", done, total))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted while fetching transactions: %w", err)
	}
	return histories, nil
}

// mergeTransactions concatenates histories in wallet order, dropping transactions already seen
func mergeTransactions(histories [][]*entity.TransactionRecord) []*entity.TransactionRecord {
	var n int
	for _, h := range histories {
		n += len(h)
	}

	seen := make(map[string]struct{}, n)
	merged := make([]*entity.TransactionRecord, 0, n)
	for _, h := range histories {
		for _, tx := range h {
			if tx == nil {
				continue
			}
			key := tx.DedupKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, tx)
		}
	}
	return merged
}

// narrate collects per-wallet judgments and relationships, falling back to unknown results
func (s *AnalysisApplicationService) narrate(ctx context.Context, stats []*entity.WalletStats, graph *entity.GraphData, clusters []entity.Cluster, log *logger.Logger) ([]*entity.AIAnalysis, []entity.WalletRelation) {
	insights := make([]*entity.AIAnalysis, len(stats))
	relations := []entity.WalletRelation{}

	if s.narrator == nil || !s.narrator.Enabled() {
		for i, st := range stats {
			insights[i] = entity.UnknownAnalysis(st.Address)
		}
		return insights, relations
	}

	for i, st := range stats {
		analysis, err := s.narrator.AnalyzeWallet(ctx, st)
		if err != nil || analysis == nil {
			log.Warn("Wallet narrative unavailable", zap.String("address", st.Address), zap.Error(err))
			analysis = entity.UnknownAnalysis(st.Address)
		}
		insights[i] = analysis
	}

	rels, err := s.narrator.AnalyzeRelationships(ctx, stats, graph, clusters)
	if err != nil {
		log.Warn("Relationship narrative unavailable", zap.Error(err))
	} else if rels != nil {
		relations = rels
	}
	return insights, relations
}

func (s *AnalysisApplicationService) exportGraph(ctx context.Context, id string, graph *entity.GraphData, log *logger.Logger) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.ExportGraph(ctx, id, graph); err != nil {
		log.Error("Failed to export graph", zap.Error(err))
	}
}

func (s *AnalysisApplicationService) publish(id, requestID string, status entity.AnalysisStatus, wallets, clusters int, errMsg string, log *logger.Logger) {
	if s.publisher == nil {
		return
	}
	event := &entity.AnalysisCompletedEvent{
		AnalysisID:  id,
		RequestID:   requestID,
		Status:      status,
		WalletCount: wallets,
		Clusters:    clusters,
		Error:       errMsg,
		FinishedAt:  s.now().UTC(),
	}
	if err := s.publisher.PublishCompleted(s.baseCtx, event); err != nil {
		log.Error("Failed to publish completion event", zap.Error(err))
	}
}

func (s *AnalysisApplicationService) progress(id string, progress int, message string) {
	s.update(id, func(job *entity.AnalysisJob) {
		if job.Status != entity.AnalysisStatusProcessing {
			return
		}
		// fetch workers finish out of order
		if progress > job.Progress {
			job.Progress = progress
		}
		job.Message = message
	})
}

func (s *AnalysisApplicationService) update(id string, fn func(job *entity.AnalysisJob)) {
	if err := s.repo.Update(context.Background(), id, fn); err != nil {
		s.logger.Warn("Failed to update analysis", zap.String("analysis_id", id), zap.Error(err))
	}
}

// GetJob returns the status of an analysis
func (s *AnalysisApplicationService) GetJob(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	return s.repo.Get(ctx, id)
}

// GetReport returns the report of a completed analysis
func (s *AnalysisApplicationService) GetReport(ctx context.Context, id string) (*entity.AnalysisReport, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != entity.AnalysisStatusCompleted || job.Report == nil {
		return nil, fmt.Errorf("%w: analysis %s is %s", service.ErrAnalysisNotCompleted, id, job.Status)
	}
	return job.Report, nil
}

// GetGraph returns the presentation graph of a completed analysis
func (s *AnalysisApplicationService) GetGraph(ctx context.Context, id string) (*entity.GraphData, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.GraphData == nil {
		return entity.EmptyGraphData(), nil
	}
	return report.GraphData, nil
}

// GetClusters returns the clusters of a completed analysis
func (s *AnalysisApplicationService) GetClusters(ctx context.Context, id string) ([]entity.Cluster, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Clusters == nil {
		return []entity.Cluster{}, nil
	}
	return report.Clusters, nil
}

// Wait blocks until every running job has finished
func (s *AnalysisApplicationService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels running jobs and waits for them until ctx expires
func (s *AnalysisApplicationService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timed out waiting for running analyses")
	}
}

// ProcessRequests starts an analysis for every request on ch until it is closed or ctx is done
func (s *AnalysisApplicationService) ProcessRequests(ctx context.Context, ch <-chan *entity.AnalysisRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-ch:
			if !ok {
				return
			}
			id, err := s.HandleRequest(ctx, req)
			if err != nil {
				s.logger.Error("Failed to start analysis from request",
					zap.String("request_id", req.RequestID),
					zap.Error(err))
				continue
			}
			s.logger.Info("Accepted analysis request",
				zap.String("request_id", req.RequestID),
				zap.String("analysis_id", id))
		}
	}
}
